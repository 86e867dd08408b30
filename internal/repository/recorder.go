package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/models"
)

// Recorder is the asynchronous persistence front used by the hub and the
// crisis coordinator. Every method returns immediately; the write happens
// on its own goroutine with a bounded timeout. A failed write is logged,
// never surfaced to the client, and never undoes an in-memory operation.
// Crisis-alert writes get one retry because a persisted alert trail
// matters more than a message row.
//
// Any nil repository turns its methods into no-ops, which is how tests
// and storage-less development run.
type Recorder struct {
	messages MessageRepository
	rooms    RoomRepository
	alerts   AlertRepository
	audits   AuditRepository

	logger       *zap.Logger
	writeTimeout time.Duration
	retryDelay   time.Duration
}

func NewRecorder(messages MessageRepository, rooms RoomRepository, alerts AlertRepository, audits AuditRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		messages:     messages,
		rooms:        rooms,
		alerts:       alerts,
		audits:       audits,
		logger:       logger,
		writeTimeout: 5 * time.Second,
		retryDelay:   2 * time.Second,
	}
}

func (r *Recorder) run(what string, write func(ctx context.Context) error, retry bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		err := write(ctx)
		cancel()
		if err == nil {
			return
		}
		r.logger.Warn("async persistence failed",
			zap.String("write", what),
			zap.Error(err),
		)
		if !retry {
			return
		}

		time.Sleep(r.retryDelay)
		ctx, cancel = context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			r.logger.Error("async persistence retry failed",
				zap.String("write", what),
				zap.Error(err),
			)
		}
	}()
}

func (r *Recorder) RecordMessage(msg models.Message) {
	if r.messages == nil {
		return
	}
	r.run("message.create", func(ctx context.Context) error {
		return r.messages.Create(ctx, msg)
	}, false)
}

func (r *Recorder) RecordMessageRevision(msg models.Message) {
	if r.messages == nil {
		return
	}
	r.run("message.revision", func(ctx context.Context) error {
		return r.messages.UpdateRevision(ctx, msg)
	}, false)
}

func (r *Recorder) RecordRoom(room models.Room) {
	if r.rooms == nil {
		return
	}
	r.run("room.create", func(ctx context.Context) error {
		return r.rooms.Create(ctx, room)
	}, false)
}

func (r *Recorder) RecordRoomActive(roomID uuid.UUID, active bool) {
	if r.rooms == nil {
		return
	}
	r.run("room.set_active", func(ctx context.Context) error {
		return r.rooms.SetActive(ctx, roomID, active)
	}, false)
}

func (r *Recorder) RecordMembership(roomID, userID uuid.UUID, joined bool) {
	if r.rooms == nil {
		return
	}
	r.run("room.membership", func(ctx context.Context) error {
		if joined {
			return r.rooms.AddMember(ctx, roomID, userID)
		}
		return r.rooms.RemoveMember(ctx, roomID, userID)
	}, false)
}

func (r *Recorder) RecordAlertCreated(alert models.CrisisAlert) {
	if r.alerts == nil {
		return
	}
	r.run("alert.create", func(ctx context.Context) error {
		return r.alerts.Create(ctx, alert)
	}, true)
}

func (r *Recorder) RecordAlertUpdated(alert models.CrisisAlert) {
	if r.alerts == nil {
		return
	}
	r.run("alert.update", func(ctx context.Context) error {
		return r.alerts.Update(ctx, alert)
	}, true)
}

func (r *Recorder) RecordAudit(actorID uuid.UUID, action string, targetID uuid.UUID, detail string) {
	if r.audits == nil {
		return
	}
	entry := models.AuditEntry{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	r.run("audit.create", func(ctx context.Context) error {
		return r.audits.Create(ctx, entry)
	}, false)
}
