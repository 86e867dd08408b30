package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/models"
)

// DepthGauge receives the total queued-message count after every change.
// The prometheus gauge satisfies it; tests pass nil.
type DepthGauge interface {
	Set(float64)
}

// Queue holds messages for users with no live connections. Per-user
// storage is bounded: the oldest entry is evicted when a new message
// arrives at capacity. Entries expire after the configured TTL whether or
// not the user returns.
type Queue struct {
	mu      sync.Mutex
	perUser map[uuid.UUID][]models.QueuedMessage

	capPerUser int
	ttl        time.Duration

	logger *zap.Logger
	depth  DepthGauge
	now    func() time.Time
}

func New(capPerUser int, ttl time.Duration, logger *zap.Logger, depth DepthGauge) *Queue {
	return &Queue{
		perUser:    make(map[uuid.UUID][]models.QueuedMessage),
		capPerUser: capPerUser,
		ttl:        ttl,
		logger:     logger,
		depth:      depth,
		now:        time.Now,
	}
}

// Enqueue stores a message for an offline user. A message id already
// queued for the user is not queued twice.
func (q *Queue) Enqueue(userID uuid.UUID, msg models.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.perUser[userID]
	for _, item := range items {
		if item.Message.ID == msg.ID {
			return
		}
	}

	now := q.now()
	if len(items) >= q.capPerUser {
		evicted := items[0]
		items = items[1:]
		q.logger.Debug("offline queue full, evicting oldest",
			zap.String("user_id", userID.String()),
			zap.String("message_id", evicted.Message.ID.String()),
		)
	}
	q.perUser[userID] = append(items, models.QueuedMessage{
		Message:   msg,
		QueuedAt:  now,
		ExpiresAt: now.Add(q.ttl),
	})
	q.publishDepth()
}

// Drain returns and clears every non-expired message held for the user,
// oldest first, deduplicated by message id.
func (q *Queue) Drain(userID uuid.UUID) []models.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, ok := q.perUser[userID]
	if !ok {
		return nil
	}
	delete(q.perUser, userID)
	q.publishDepth()

	now := q.now()
	seen := make(map[uuid.UUID]bool, len(items))
	messages := make([]models.Message, 0, len(items))
	for _, item := range items {
		if now.After(item.ExpiresAt) || seen[item.Message.ID] {
			continue
		}
		seen[item.Message.ID] = true
		messages = append(messages, item.Message)
	}
	return messages
}

// Len reports how many messages are held for the user.
func (q *Queue) Len(userID uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.perUser[userID])
}

// Depth reports the total number of queued messages across users.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

func (q *Queue) depthLocked() int {
	total := 0
	for _, items := range q.perUser {
		total += len(items)
	}
	return total
}

func (q *Queue) publishDepth() {
	if q.depth != nil {
		q.depth.Set(float64(q.depthLocked()))
	}
}

// Sweep removes expired entries independent of drains.
func (q *Queue) Sweep() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for userID, items := range q.perUser {
		kept := items[:0]
		for _, item := range items {
			if !now.After(item.ExpiresAt) {
				kept = append(kept, item)
			}
		}
		if len(kept) == 0 {
			delete(q.perUser, userID)
			continue
		}
		q.perUser[userID] = kept
	}
	q.publishDepth()
}

// Run sweeps on the given interval until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.Sweep()
		case <-ctx.Done():
			q.logger.Debug("queue sweep stopped")
			return
		}
	}
}
