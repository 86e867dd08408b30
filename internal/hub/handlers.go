package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/classify"
	"github.com/astralcore/haven/internal/crisis"
	"github.com/astralcore/haven/internal/models"
	"github.com/astralcore/haven/internal/protocol"
	"github.com/astralcore/haven/internal/ratelimit"
	"github.com/astralcore/haven/internal/room"
)

// requiredCapability gates events on the role-derived permission set
// before any handler runs. Kick and ban are absent on purpose: room-level
// moderators may hold those powers without the global capability, so the
// handlers check both.
var requiredCapability = map[protocol.EventType]models.Capability{
	protocol.EventMessageSend:   models.CapSendMessage,
	protocol.EventMessageEdit:   models.CapEditOwnMessage,
	protocol.EventMessageDelete: models.CapDeleteOwnMessage,
	protocol.EventMessageReact:  models.CapReact,

	protocol.EventRoomJoin:   models.CapJoinRoom,
	protocol.EventRoomLeave:  models.CapJoinRoom,
	protocol.EventRoomCreate: models.CapCreateRoom,

	protocol.EventCrisisAlert:       models.CapRequestCrisisHelp,
	protocol.EventCrisisRequestHelp: models.CapRequestCrisisHelp,

	protocol.EventCrisisRespond:      models.CapRespondCrisis,
	protocol.EventCrisisResolve:      models.CapRespondCrisis,
	protocol.EventCounselorAvailable: models.CapRespondCrisis,
	protocol.EventCounselorBusy:      models.CapRespondCrisis,
}

func (h *Hub) handleFrame(conn *Connection, data []byte) {
	var frame protocol.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.ack(conn, "", nil, protocol.ValidationError("frame", "malformed frame"))
		return
	}
	h.Route(conn, frame)
}

// Route dispatches one inbound frame and writes exactly one ack back on
// the originating connection.
func (h *Hub) Route(conn *Connection, frame protocol.Frame) {
	data, perr := h.dispatch(conn, frame)

	if h.metrics != nil {
		outcome := "ok"
		if perr != nil {
			outcome = "error"
		}
		h.metrics.EventsRouted.WithLabelValues(string(frame.Type), outcome).Inc()
	}
	if perr != nil {
		h.logger.Debug("event rejected",
			zap.String("event", string(frame.Type)),
			zap.String("user_id", conn.UserID.String()),
			zap.String("code", string(perr.Code)),
		)
	}

	h.ack(conn, frame.ID, data, perr)
}

func (h *Hub) ack(conn *Connection, id string, data any, perr *protocol.Error) {
	ack := protocol.Ack{
		ID:        id,
		Success:   perr == nil,
		Data:      data,
		Error:     perr,
		Timestamp: time.Now(),
	}
	if !conn.enqueue(ack) {
		go h.Disconnect(conn.ID)
	}
}

func (h *Hub) dispatch(conn *Connection, frame protocol.Frame) (any, *protocol.Error) {
	if need, ok := requiredCapability[frame.Type]; ok && !conn.Permissions.Has(need) {
		return nil, protocol.NewError(protocol.CodeUnauthorized,
			fmt.Sprintf("role %q may not perform %s", conn.Role, frame.Type))
	}

	switch frame.Type {
	case protocol.EventMessageSend:
		return h.handleMessageSend(conn, frame.Payload)
	case protocol.EventMessageEdit:
		return h.handleMessageEdit(conn, frame.Payload)
	case protocol.EventMessageDelete:
		return h.handleMessageDelete(conn, frame.Payload)
	case protocol.EventMessageReact:
		return h.handleMessageReact(conn, frame.Payload)
	case protocol.EventRoomJoin:
		return h.handleRoomJoin(conn, frame.Payload)
	case protocol.EventRoomLeave:
		return h.handleRoomLeave(conn, frame.Payload)
	case protocol.EventRoomCreate:
		return h.handleRoomCreate(conn, frame.Payload)
	case protocol.EventRoomKick:
		return h.handleRoomKick(conn, frame.Payload)
	case protocol.EventRoomBan:
		return h.handleRoomBan(conn, frame.Payload)
	case protocol.EventPresenceUpdate:
		return h.handlePresenceUpdate(conn, frame.Payload)
	case protocol.EventTypingStart:
		return h.handleTyping(conn, frame.Payload, true)
	case protocol.EventTypingStop:
		return h.handleTyping(conn, frame.Payload, false)
	case protocol.EventCrisisAlert:
		return h.handleCrisisAlert(conn, frame.Payload)
	case protocol.EventCrisisRequestHelp:
		return h.handleRequestHelp(conn, frame.Payload)
	case protocol.EventCrisisRespond:
		return h.handleCrisisRespond(conn, frame.Payload)
	case protocol.EventCrisisResolve:
		return h.handleCrisisResolve(conn, frame.Payload)
	case protocol.EventCounselorAvailable:
		return h.handleCounselorAvailability(conn, true)
	case protocol.EventCounselorBusy:
		return h.handleCounselorAvailability(conn, false)
	case protocol.EventNotificationAck:
		return h.handleNotificationAck(conn, frame.Payload)
	case protocol.EventHeartbeat:
		return h.handleHeartbeat(conn)
	default:
		return nil, protocol.ValidationError("type", fmt.Sprintf("unknown event type %q", frame.Type))
	}
}

func decode[T any](payload json.RawMessage) (T, *protocol.Error) {
	var req T
	if len(payload) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, protocol.ValidationError("payload", "malformed payload")
	}
	return req, nil
}

func (h *Hub) rateLimit(conn *Connection, category ratelimit.Category) *protocol.Error {
	decision := h.limiter.CheckAndConsume(conn.UserID.String(), category)
	if decision.Allowed {
		return nil
	}
	if h.metrics != nil {
		h.metrics.RateLimited.WithLabelValues(string(category)).Inc()
	}
	perr := &protocol.Error{
		Code:              protocol.CodeRateLimited,
		Message:           fmt.Sprintf("too many %s actions", category),
		RetryAfterSeconds: int(decision.RetryAfter.Seconds()) + 1,
	}
	if category == ratelimit.CategoryCrisisAlert {
		// A denied crisis action still has to point somewhere safe.
		perr.Fallback = crisis.EmergencyFallback
	}
	return perr
}

func roomError(err error) *protocol.Error {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return protocol.NewError(protocol.CodeNotFound, "room not found")
	case errors.Is(err, room.ErrRoomInactive):
		return protocol.NewError(protocol.CodeNotFound, "room is no longer active")
	case errors.Is(err, room.ErrRoomFull):
		return protocol.NewError(protocol.CodeRoomFull, "room is at capacity")
	case errors.Is(err, room.ErrBanned):
		return protocol.NewError(protocol.CodeBanned, "you are banned from this room")
	case errors.Is(err, room.ErrNotMember):
		return protocol.NewError(protocol.CodeNotFound, "user is not a member of this room")
	default:
		return protocol.AsError(err)
	}
}

func (h *Hub) handleMessageSend(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.SendMessage](payload)
	if perr != nil {
		return nil, perr
	}
	if req.RoomID == uuid.Nil {
		return nil, protocol.ValidationError("room_id", "room_id is required")
	}
	if req.Content == "" {
		return nil, protocol.ValidationError("content", "content must not be empty")
	}
	if len(req.Content) > h.cfg.MaxMessageLength {
		return nil, protocol.ValidationError("content",
			fmt.Sprintf("content exceeds %d characters", h.cfg.MaxMessageLength))
	}
	if !h.rooms.Active(req.RoomID) {
		return nil, protocol.NewError(protocol.CodeNotFound, "room not found")
	}
	if !h.rooms.IsMember(req.RoomID, conn.UserID) {
		return nil, protocol.NewError(protocol.CodeUnauthorized, "not a member of this room")
	}

	if perr := h.rateLimit(conn, ratelimit.CategoryMessage); perr != nil {
		return nil, perr
	}

	// Classifier failure must not block delivery; the message goes out
	// unflagged and the failure is logged for the moderation backlog.
	result, err := h.classifier.Classify(context.Background(), req.Content)
	if err != nil {
		h.logger.Error("classifier failed, delivering unmoderated",
			zap.String("user_id", conn.UserID.String()),
			zap.Error(err),
		)
		result = classify.Result{}
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = "text"
	}
	msg := models.Message{
		ID:        uuid.New(),
		RoomID:    req.RoomID,
		AuthorID:  conn.UserID,
		Content:   req.Content,
		Type:      msgType,
		Timestamp: time.Now(),
		Delivered: true,
	}
	h.messages.add(msg)

	h.PublishToRoom(req.RoomID, protocol.PushMessageNew, msg)
	if h.metrics != nil {
		h.metrics.MessagesDelivered.WithLabelValues("live").Inc()
	}
	h.recorder.RecordMessage(msg)

	if result.CrisisDetected && h.coordinator != nil {
		if alert, created := h.coordinator.HandlePotentialCrisis(conn.UserID, result); created {
			h.presence.SetStatus(conn.UserID, models.StatusInCrisis)
			h.logger.Warn("crisis signal in room message",
				zap.String("alert_id", alert.ID.String()),
				zap.String("room_id", req.RoomID.String()),
				zap.String("severity", string(alert.Severity)),
			)
		}
	}

	return msg, nil
}

// canModerate reports whether the connection can act on another user's
// message or membership in the room.
func (h *Hub) canModerate(conn *Connection, roomID uuid.UUID) bool {
	return models.IsModeratorRole(conn.Role) || h.rooms.IsModerator(roomID, conn.UserID)
}

func (h *Hub) handleMessageEdit(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.EditMessage](payload)
	if perr != nil {
		return nil, perr
	}
	if req.Content == "" {
		return nil, protocol.ValidationError("content", "content must not be empty")
	}
	if len(req.Content) > h.cfg.MaxMessageLength {
		return nil, protocol.ValidationError("content",
			fmt.Sprintf("content exceeds %d characters", h.cfg.MaxMessageLength))
	}

	existing, ok := h.messages.get(req.MessageID)
	if !ok {
		return nil, protocol.NewError(protocol.CodeNotFound, "message not found")
	}
	if existing.Deleted {
		return nil, protocol.NewError(protocol.CodeNotFound, "message was deleted")
	}
	if existing.AuthorID != conn.UserID && !h.canModerate(conn, existing.RoomID) {
		return nil, protocol.NewError(protocol.CodeUnauthorized, "only the author or a moderator may edit")
	}

	updated, _ := h.messages.mutate(req.MessageID, func(m *models.Message) {
		m.Content = req.Content
		m.Revision++
	})
	h.recorder.RecordMessageRevision(updated)
	h.PublishToRoom(existing.RoomID, protocol.PushMessageEdited, updated)
	return updated, nil
}

func (h *Hub) handleMessageDelete(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.DeleteMessage](payload)
	if perr != nil {
		return nil, perr
	}

	existing, ok := h.messages.get(req.MessageID)
	if !ok {
		return nil, protocol.NewError(protocol.CodeNotFound, "message not found")
	}
	if existing.AuthorID != conn.UserID && !h.canModerate(conn, existing.RoomID) {
		return nil, protocol.NewError(protocol.CodeUnauthorized, "only the author or a moderator may delete")
	}

	// Tombstone, not removal: the id and ordering survive for clients.
	updated, _ := h.messages.mutate(req.MessageID, func(m *models.Message) {
		m.Deleted = true
		m.Content = ""
		m.Revision++
	})
	h.recorder.RecordMessageRevision(updated)
	h.PublishToRoom(existing.RoomID, protocol.PushMessageDeleted, map[string]any{
		"message_id": req.MessageID,
		"room_id":    existing.RoomID,
	})
	return map[string]any{"message_id": req.MessageID, "deleted": true}, nil
}

func (h *Hub) handleMessageReact(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.ReactMessage](payload)
	if perr != nil {
		return nil, perr
	}
	if req.Emoji == "" {
		return nil, protocol.ValidationError("emoji", "emoji is required")
	}

	existing, ok := h.messages.get(req.MessageID)
	if !ok {
		return nil, protocol.NewError(protocol.CodeNotFound, "message not found")
	}
	if existing.Deleted {
		return nil, protocol.NewError(protocol.CodeNotFound, "message was deleted")
	}
	if !h.rooms.IsMember(existing.RoomID, conn.UserID) {
		return nil, protocol.NewError(protocol.CodeUnauthorized, "not a member of this room")
	}

	// Reacting twice with the same emoji removes the reaction.
	updated, _ := h.messages.mutate(req.MessageID, func(m *models.Message) {
		for i, r := range m.Reactions {
			if r.Emoji == req.Emoji && r.UserID == conn.UserID {
				m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
				return
			}
		}
		m.Reactions = append(m.Reactions, models.Reaction{Emoji: req.Emoji, UserID: conn.UserID})
	})
	h.recorder.RecordMessageRevision(updated)
	h.PublishToRoom(existing.RoomID, protocol.PushMessageReacted, updated)
	return updated, nil
}

func (h *Hub) handleRoomCreate(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.CreateRoom](payload)
	if perr != nil {
		return nil, perr
	}
	if req.Name == "" {
		return nil, protocol.ValidationError("name", "name is required")
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = 50
	}
	if capacity < 2 || capacity > 500 {
		return nil, protocol.ValidationError("capacity", "capacity must be between 2 and 500")
	}

	if perr := h.rateLimit(conn, ratelimit.CategoryRoomOp); perr != nil {
		return nil, perr
	}

	created := h.rooms.Create(req.Name, capacity, conn.UserID, models.RoomSettings{Private: req.Private})
	conn.addRoom(created.ID)
	h.recorder.RecordRoom(created)
	h.recorder.RecordMembership(created.ID, conn.UserID, true)
	return created, nil
}

func (h *Hub) handleRoomJoin(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.JoinRoom](payload)
	if perr != nil {
		return nil, perr
	}
	if req.RoomID == uuid.Nil {
		return nil, protocol.ValidationError("room_id", "room_id is required")
	}

	if perr := h.rateLimit(conn, ratelimit.CategoryRoomOp); perr != nil {
		return nil, perr
	}

	if err := h.rooms.Join(req.RoomID, conn.UserID); err != nil {
		return nil, roomError(err)
	}

	for _, c := range h.connectionsForUser(conn.UserID) {
		c.addRoom(req.RoomID)
	}
	h.presence.SetCurrentRoom(conn.UserID, req.RoomID)
	h.recorder.RecordMembership(req.RoomID, conn.UserID, true)
	h.PublishToRoom(req.RoomID, protocol.PushMemberJoined, map[string]any{
		"room_id": req.RoomID,
		"user_id": conn.UserID,
	}, conn.UserID)

	snapshot, err := h.rooms.Snapshot(req.RoomID)
	if err != nil {
		return nil, roomError(err)
	}
	return snapshot, nil
}

func (h *Hub) handleRoomLeave(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.LeaveRoom](payload)
	if perr != nil {
		return nil, perr
	}

	if err := h.rooms.Leave(req.RoomID, conn.UserID); err != nil {
		return nil, roomError(err)
	}
	for _, c := range h.connectionsForUser(conn.UserID) {
		c.removeRoom(req.RoomID)
	}
	h.recorder.RecordMembership(req.RoomID, conn.UserID, false)
	h.PublishToRoom(req.RoomID, protocol.PushMemberLeft, map[string]any{
		"room_id": req.RoomID,
		"user_id": conn.UserID,
	})
	return map[string]any{"room_id": req.RoomID, "left": true}, nil
}

func (h *Hub) handleRoomKick(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.KickMember](payload)
	if perr != nil {
		return nil, perr
	}
	if !conn.Permissions.Has(models.CapKickMember) && !h.canModerate(conn, req.RoomID) {
		return nil, protocol.NewError(protocol.CodeUnauthorized, "moderator capability required")
	}

	if perr := h.rateLimit(conn, ratelimit.CategoryRoomOp); perr != nil {
		return nil, perr
	}

	if err := h.rooms.Kick(req.RoomID, req.UserID); err != nil {
		return nil, roomError(err)
	}
	h.forceOutOfRoom(req.RoomID, req.UserID)
	h.recorder.RecordMembership(req.RoomID, req.UserID, false)
	h.recorder.RecordAudit(conn.UserID, "room.kick", req.UserID, req.Reason)

	h.DeliverToUser(req.UserID, protocol.PushMemberKicked, map[string]any{
		"room_id": req.RoomID,
		"reason":  req.Reason,
	})
	h.PublishToRoom(req.RoomID, protocol.PushMemberKicked, map[string]any{
		"room_id": req.RoomID,
		"user_id": req.UserID,
	})
	return map[string]any{"room_id": req.RoomID, "user_id": req.UserID, "kicked": true}, nil
}

func (h *Hub) handleRoomBan(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.BanMember](payload)
	if perr != nil {
		return nil, perr
	}
	if !conn.Permissions.Has(models.CapBanMember) && !h.canModerate(conn, req.RoomID) {
		return nil, protocol.NewError(protocol.CodeUnauthorized, "moderator capability required")
	}

	if perr := h.rateLimit(conn, ratelimit.CategoryRoomOp); perr != nil {
		return nil, perr
	}

	if err := h.rooms.Ban(req.RoomID, req.UserID); err != nil {
		return nil, roomError(err)
	}
	h.forceOutOfRoom(req.RoomID, req.UserID)
	h.recorder.RecordMembership(req.RoomID, req.UserID, false)
	h.recorder.RecordAudit(conn.UserID, "room.ban", req.UserID, req.Reason)

	h.DeliverToUser(req.UserID, protocol.PushMemberBanned, map[string]any{
		"room_id": req.RoomID,
		"reason":  req.Reason,
	})
	h.PublishToRoom(req.RoomID, protocol.PushMemberBanned, map[string]any{
		"room_id": req.RoomID,
		"user_id": req.UserID,
	})
	return map[string]any{"room_id": req.RoomID, "user_id": req.UserID, "banned": true}, nil
}

// forceOutOfRoom drops the room from the target's connections. The
// transport stays up; only room scope is revoked.
func (h *Hub) forceOutOfRoom(roomID, userID uuid.UUID) {
	for _, c := range h.connectionsForUser(userID) {
		c.removeRoom(roomID)
	}
}

func (h *Hub) handlePresenceUpdate(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.PresenceUpdate](payload)
	if perr != nil {
		return nil, perr
	}

	status := models.PresenceStatus(req.Status)
	switch status {
	case models.StatusOnline, models.StatusAway, models.StatusBusy:
	default:
		return nil, protocol.ValidationError("status", "status must be online, away, or busy")
	}
	if !h.presence.SetStatus(conn.UserID, status) {
		return nil, protocol.ValidationError("status", "cannot set status without a live device")
	}

	for _, roomID := range conn.rooms() {
		h.PublishToRoom(roomID, protocol.PushPresenceChanged, map[string]any{
			"user_id": conn.UserID,
			"status":  status,
		}, conn.UserID)
	}
	return map[string]any{"status": status}, nil
}

func (h *Hub) handleTyping(conn *Connection, payload json.RawMessage, typing bool) (any, *protocol.Error) {
	req, perr := decode[protocol.Typing](payload)
	if perr != nil {
		return nil, perr
	}
	if !h.rooms.IsMember(req.RoomID, conn.UserID) {
		return nil, protocol.NewError(protocol.CodeUnauthorized, "not a member of this room")
	}

	h.presence.SetTyping(conn.UserID, req.RoomID, typing)
	h.PublishToRoom(req.RoomID, protocol.PushTyping, map[string]any{
		"room_id": req.RoomID,
		"user_id": conn.UserID,
		"typing":  typing,
	}, conn.UserID)
	return map[string]any{"typing": typing}, nil
}

func (h *Hub) handleCrisisAlert(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.CrisisAlertRequest](payload)
	if perr != nil {
		return nil, perr
	}

	severity := models.Severity(req.Severity)
	if req.Severity == "" {
		severity = models.SeverityHigh
	} else if !models.ValidSeverity(severity) {
		return nil, protocol.ValidationError("severity", "severity must be low, medium, high, or critical")
	}

	if perr := h.rateLimit(conn, ratelimit.CategoryCrisisAlert); perr != nil {
		return nil, perr
	}

	triggers := req.Triggers
	if len(triggers) == 0 {
		triggers = []string{"self_reported"}
	}
	alert := h.coordinator.CreateAlert(conn.UserID, severity, triggers)
	h.presence.SetStatus(conn.UserID, models.StatusInCrisis)
	return alert, nil
}

func (h *Hub) handleRequestHelp(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.RequestHelp](payload)
	if perr != nil {
		return nil, perr
	}

	if perr := h.rateLimit(conn, ratelimit.CategoryCrisisAlert); perr != nil {
		return nil, perr
	}

	triggers := []string{"help_requested"}
	if req.Message != "" {
		triggers = append(triggers, req.Message)
	}
	alert := h.coordinator.CreateAlert(conn.UserID, models.SeverityMedium, triggers)
	h.presence.SetStatus(conn.UserID, models.StatusInCrisis)
	return alert, nil
}

func (h *Hub) handleCrisisRespond(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.CrisisRespond](payload)
	if perr != nil {
		return nil, perr
	}

	kind := crisis.ResponseKind(req.Kind)
	if err := h.coordinator.Respond(req.AlertID, conn.UserID, kind); err != nil {
		return nil, crisisError(err)
	}
	alert, _ := h.coordinator.Get(req.AlertID)
	if alert.Status == models.AlertInProgress {
		h.presence.SetStatus(conn.UserID, models.StatusInSession)
		h.presence.SetStatus(alert.UserID, models.StatusInSession)
	}
	return alert, nil
}

func (h *Hub) handleCrisisResolve(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.CrisisResolve](payload)
	if perr != nil {
		return nil, perr
	}

	if err := h.coordinator.Resolve(req.AlertID, conn.UserID, req.Note); err != nil {
		return nil, crisisError(err)
	}
	alert, _ := h.coordinator.Get(req.AlertID)
	h.presence.SetStatus(alert.UserID, models.StatusOnline)
	h.presence.SetStatus(conn.UserID, models.StatusOnline)
	return alert, nil
}

func crisisError(err error) *protocol.Error {
	switch {
	case errors.Is(err, crisis.ErrAlertNotFound):
		return protocol.NewError(protocol.CodeNotFound, "alert not found")
	case errors.Is(err, crisis.ErrAlertClosed):
		return protocol.NewError(protocol.CodeNotFound, "alert is already resolved")
	case errors.Is(err, crisis.ErrUnknownResponseKind):
		return protocol.ValidationError("kind", "kind must be acknowledge, accept, or transfer")
	default:
		return protocol.AsError(err)
	}
}

func (h *Hub) handleCounselorAvailability(conn *Connection, available bool) (any, *protocol.Error) {
	h.coordinator.SetCounselorAvailability(conn.UserID, conn.Role, available)
	return map[string]any{"available": available}, nil
}

func (h *Hub) handleNotificationAck(conn *Connection, payload json.RawMessage) (any, *protocol.Error) {
	req, perr := decode[protocol.NotificationAck](payload)
	if perr != nil {
		return nil, perr
	}
	h.logger.Debug("notification acknowledged",
		zap.String("user_id", conn.UserID.String()),
		zap.String("notification_id", req.NotificationID.String()),
	)
	return map[string]any{"acknowledged": true}, nil
}

func (h *Hub) handleHeartbeat(conn *Connection) (any, *protocol.Error) {
	h.presence.UpdateLastSeen(conn.UserID)
	return map[string]any{"server_time": time.Now()}, nil
}
