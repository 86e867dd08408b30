package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus is the computed availability of a user across devices.
type PresenceStatus string

const (
	StatusOnline    PresenceStatus = "online"
	StatusAway      PresenceStatus = "away"
	StatusBusy      PresenceStatus = "busy"
	StatusOffline   PresenceStatus = "offline"
	StatusInCrisis  PresenceStatus = "in_crisis"
	StatusInSession PresenceStatus = "in_session"
)

// DeviceInfo records one live connection of a user. A user with zero
// devices is offline by definition.
type DeviceInfo struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Label        string    `json:"label,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
}

// Presence is the read model PresenceTracker maintains per user.
type Presence struct {
	UserID      uuid.UUID      `json:"user_id"`
	Status      PresenceStatus `json:"status"`
	LastSeen    time.Time      `json:"last_seen"`
	CurrentRoom uuid.UUID      `json:"current_room,omitempty"`
	Devices     []DeviceInfo   `json:"devices"`
}

// RoomSettings are per-room behavior flags.
type RoomSettings struct {
	Private       bool `json:"private"`
	SlowMode      bool `json:"slow_mode"`
	HelpersOnly   bool `json:"helpers_only"`
}

// Room groups connections for broadcast delivery. Membership obeys two
// invariants at all times: len(Members) <= Capacity, and no banned user is
// a member. Rooms are soft-deactivated, never hard-deleted, once messages
// reference them.
type Room struct {
	ID         uuid.UUID          `json:"id"`
	Name       string             `json:"name"`
	Capacity   int                `json:"capacity"`
	Members    map[uuid.UUID]bool `json:"-"`
	Moderators map[uuid.UUID]bool `json:"-"`
	Banned     map[uuid.UUID]bool `json:"-"`
	Settings   RoomSettings       `json:"settings"`
	CreatedBy  uuid.UUID          `json:"created_by"`
	CreatedAt  time.Time          `json:"created_at"`
	Active     bool               `json:"active"`
}

// Reaction is one (emoji, user) pair on a message.
type Reaction struct {
	Emoji  string    `json:"emoji"`
	UserID uuid.UUID `json:"user_id"`
}

// Message is a room message. After delivery it only changes through
// edit/delete/react, which bump Revision or set the tombstone.
type Message struct {
	ID        uuid.UUID  `json:"id"`
	RoomID    uuid.UUID  `json:"room_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	Content   string     `json:"content"`
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Reactions []Reaction `json:"reactions,omitempty"`
	Revision  int        `json:"revision,omitempty"`
	Deleted   bool       `json:"deleted,omitempty"`
	Delivered bool       `json:"delivered"`
	Read      bool       `json:"read"`
}

// QueuedMessage holds a message for a user with zero live connections.
// It exists until drained on reconnect or until ExpiresAt, whichever
// comes first.
type QueuedMessage struct {
	Message   Message   `json:"message"`
	QueuedAt  time.Time `json:"queued_at"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notification is an out-of-band item pushed to a user (or handed to the
// external push/SMS channel when the user is offline).
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Priority  string    `json:"priority,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntry records a sensitive action for asynchronous persistence.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Action    string    `json:"action"`
	TargetID  uuid.UUID `json:"target_id"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
