package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/astralcore/haven/internal/models"
)

// Persistence is always asynchronous with respect to delivery: the hub
// and the crisis coordinator never wait on these calls in the hot path.
// Every method takes ctx so a shutdown can cut writes short.

// MessageRepository persists delivered room messages and their revisions.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) error

	// UpdateRevision records an edit, delete tombstone, or reaction
	// change against an already-persisted message.
	UpdateRevision(ctx context.Context, msg models.Message) error
}

// RoomRepository persists room metadata and membership changes.
type RoomRepository interface {
	Create(ctx context.Context, room models.Room) error
	SetActive(ctx context.Context, roomID uuid.UUID, active bool) error
	AddMember(ctx context.Context, roomID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error
}

// AlertRepository persists the crisis-alert lifecycle. Alerts are never
// deleted; Update rewrites the mutable fields on each transition.
type AlertRepository interface {
	Create(ctx context.Context, alert models.CrisisAlert) error
	Update(ctx context.Context, alert models.CrisisAlert) error
}

// AuditRepository appends audit entries for sensitive actions.
type AuditRepository interface {
	Create(ctx context.Context, entry models.AuditEntry) error
}
