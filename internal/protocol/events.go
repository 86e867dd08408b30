package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names every inbound client event the hub routes. The names are
// transport-agnostic: the websocket layer carries them as JSON frames but
// nothing below the connection wrapper knows that.
type EventType string

const (
	EventMessageSend   EventType = "message.send"
	EventMessageEdit   EventType = "message.edit"
	EventMessageDelete EventType = "message.delete"
	EventMessageReact  EventType = "message.react"

	EventRoomJoin   EventType = "room.join"
	EventRoomLeave  EventType = "room.leave"
	EventRoomCreate EventType = "room.create"
	EventRoomKick   EventType = "room.kick"
	EventRoomBan    EventType = "room.ban"

	EventPresenceUpdate EventType = "presence.update"
	EventTypingStart    EventType = "typing.start"
	EventTypingStop     EventType = "typing.stop"

	EventCrisisAlert        EventType = "crisis.alert"
	EventCrisisRequestHelp  EventType = "crisis.request_help"
	EventCrisisRespond      EventType = "crisis.respond"
	EventCrisisResolve      EventType = "crisis.resolve"
	EventCounselorAvailable EventType = "crisis.counselor_available"
	EventCounselorBusy      EventType = "crisis.counselor_busy"

	EventNotificationAck EventType = "notification.acknowledge"
	EventHeartbeat       EventType = "system.heartbeat"
)

// Server push event names, written to clients without a correlation id.
const (
	PushMessageNew        = "message.new"
	PushMessageEdited     = "message.edited"
	PushMessageDeleted    = "message.deleted"
	PushMessageReacted    = "message.reacted"
	PushMemberJoined      = "room.member_joined"
	PushMemberLeft        = "room.member_left"
	PushMemberKicked      = "room.member_kicked"
	PushMemberBanned      = "room.member_banned"
	PushTyping            = "room.typing"
	PushPresenceChanged   = "presence.changed"
	PushQueuedMessages    = "queue.flush"
	PushNotification      = "notification"
	PushCrisisResponse    = "crisis.response"
	PushCrisisAssigned    = "crisis.assigned"
	PushCrisisEscalated   = "crisis.escalated"
	PushCrisisResolved    = "crisis.resolved"
	PushSupervisorAlert   = "crisis.supervisor_alert"
	PushEmergencyProtocol = "crisis.emergency_protocol"
)

// Frame is one inbound client frame. ID is an opaque correlation token the
// client picks; the matching Ack echoes it back.
type Frame struct {
	ID      string          `json:"id"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Ack is the uniform reply to every inbound frame: success with data, or
// failure with a structured error. Exactly one Ack per Frame.
type Ack struct {
	ID        string    `json:"id"`
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *Error    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Push is a server-initiated event fanned out to clients.
type Push struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPush(eventType string, payload any) Push {
	return Push{Type: eventType, Payload: payload, Timestamp: time.Now()}
}

// Request payloads, one per inbound event type.

type SendMessage struct {
	RoomID      uuid.UUID `json:"room_id"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type,omitempty"`
}

type EditMessage struct {
	RoomID    uuid.UUID `json:"room_id"`
	MessageID uuid.UUID `json:"message_id"`
	Content   string    `json:"content"`
}

type DeleteMessage struct {
	RoomID    uuid.UUID `json:"room_id"`
	MessageID uuid.UUID `json:"message_id"`
}

type ReactMessage struct {
	RoomID    uuid.UUID `json:"room_id"`
	MessageID uuid.UUID `json:"message_id"`
	Emoji     string    `json:"emoji"`
}

type JoinRoom struct {
	RoomID uuid.UUID `json:"room_id"`
}

type LeaveRoom struct {
	RoomID uuid.UUID `json:"room_id"`
}

type CreateRoom struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Private  bool   `json:"private"`
}

type KickMember struct {
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason,omitempty"`
}

type BanMember struct {
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason,omitempty"`
}

type PresenceUpdate struct {
	Status string `json:"status"`
}

type Typing struct {
	RoomID uuid.UUID `json:"room_id"`
}

type CrisisAlertRequest struct {
	Severity string   `json:"severity,omitempty"`
	Triggers []string `json:"triggers,omitempty"`
}

type RequestHelp struct {
	Message string `json:"message,omitempty"`
}

type CrisisRespond struct {
	AlertID uuid.UUID `json:"alert_id"`
	Kind    string    `json:"kind"`
}

type CrisisResolve struct {
	AlertID uuid.UUID `json:"alert_id"`
	Note    string    `json:"note,omitempty"`
}

type NotificationAck struct {
	NotificationID uuid.UUID `json:"notification_id"`
}
