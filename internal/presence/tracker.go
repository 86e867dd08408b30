package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/models"
)

type entry struct {
	status   models.PresenceStatus
	manual   bool
	lastSeen time.Time
	current  uuid.UUID
	devices  map[uuid.UUID]models.DeviceInfo
}

// Tracker maintains per-user presence across devices. A user is offline
// iff they have zero live devices; that invariant holds through every
// mutation here, and only this package mutates presence.
type Tracker struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]*entry
	typing map[uuid.UUID]map[uuid.UUID]bool // roomID -> userIDs

	logger *zap.Logger
	now    func() time.Time
}

func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		users:  make(map[uuid.UUID]*entry),
		typing: make(map[uuid.UUID]map[uuid.UUID]bool),
		logger: logger,
		now:    time.Now,
	}
}

// SetOnline registers a device connection for the user. Re-registering
// the same connection id refreshes its record.
func (t *Tracker) SetOnline(userID, connectionID uuid.UUID, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e, ok := t.users[userID]
	if !ok {
		e = &entry{devices: make(map[uuid.UUID]models.DeviceInfo)}
		t.users[userID] = e
	}
	e.devices[connectionID] = models.DeviceInfo{
		ConnectionID: connectionID,
		Label:        label,
		ConnectedAt:  now,
	}
	e.lastSeen = now
	if !e.manual || e.status == models.StatusOffline {
		e.status = models.StatusOnline
		e.manual = false
	}
}

// SetOffline drops one device, or every device when connectionID is
// uuid.Nil. Safe to call for unknown users or already-removed devices.
func (t *Tracker) SetOffline(userID, connectionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.users[userID]
	if !ok {
		return
	}
	if connectionID == uuid.Nil {
		e.devices = make(map[uuid.UUID]models.DeviceInfo)
	} else {
		delete(e.devices, connectionID)
	}
	if len(e.devices) == 0 {
		e.status = models.StatusOffline
		e.manual = false
		e.lastSeen = t.now()
		e.current = uuid.Nil
	}
}

// UpdateLastSeen records a heartbeat. An away user is promoted back to
// online unless their status was set manually.
func (t *Tracker) UpdateLastSeen(userID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.users[userID]
	if !ok || len(e.devices) == 0 {
		return
	}
	e.lastSeen = t.now()
	if e.status == models.StatusAway && !e.manual {
		e.status = models.StatusOnline
	}
}

// SetStatus applies a user- or coordinator-chosen status. Offline cannot
// be forced while devices are live, and no status can be applied to a
// user with no devices.
func (t *Tracker) SetStatus(userID uuid.UUID, status models.PresenceStatus) bool {
	if status == models.StatusOffline {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.users[userID]
	if !ok || len(e.devices) == 0 {
		return false
	}
	e.status = status
	e.manual = true
	e.lastSeen = t.now()
	return true
}

// SetCurrentRoom records which room the user is focused on.
func (t *Tracker) SetCurrentRoom(userID, roomID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.users[userID]; ok {
		e.current = roomID
	}
}

// SetTyping toggles the room-scoped typing indicator for the user.
func (t *Tracker) SetTyping(userID, roomID uuid.UUID, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.typing[roomID]
	if !ok {
		if !typing {
			return
		}
		set = make(map[uuid.UUID]bool)
		t.typing[roomID] = set
	}
	if typing {
		set[userID] = true
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(t.typing, roomID)
	}
}

// TypingUsers returns who is currently typing in the room.
func (t *Tracker) TypingUsers(roomID uuid.UUID) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.typing[roomID]
	users := make([]uuid.UUID, 0, len(set))
	for id := range set {
		users = append(users, id)
	}
	return users
}

// Get returns a copy of the user's presence.
func (t *Tracker) Get(userID uuid.UUID) (models.Presence, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.users[userID]
	if !ok {
		return models.Presence{}, false
	}
	return t.snapshot(userID, e), true
}

// IsOnline reports whether the user has at least one live device.
func (t *Tracker) IsOnline(userID uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.users[userID]
	return ok && len(e.devices) > 0
}

// OnlineCount returns the number of users with at least one live device.
func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, e := range t.users {
		if len(e.devices) > 0 {
			n++
		}
	}
	return n
}

func (t *Tracker) snapshot(userID uuid.UUID, e *entry) models.Presence {
	devices := make([]models.DeviceInfo, 0, len(e.devices))
	for _, d := range e.devices {
		devices = append(devices, d)
	}
	return models.Presence{
		UserID:      userID,
		Status:      e.status,
		LastSeen:    e.lastSeen,
		CurrentRoom: e.current,
		Devices:     devices,
	}
}

// Sweep demotes online users without a recent heartbeat to away and
// purges entries untouched for purgeAfter.
func (t *Tracker) Sweep(awayAfter, purgeAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for userID, e := range t.users {
		idle := now.Sub(e.lastSeen)
		if e.status == models.StatusOnline && !e.manual && idle > awayAfter {
			e.status = models.StatusAway
		}
		if len(e.devices) == 0 && idle > purgeAfter {
			delete(t.users, userID)
		}
	}
}

// Run sweeps on the given interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, interval, awayAfter, purgeAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Sweep(awayAfter, purgeAfter)
		case <-ctx.Done():
			t.logger.Debug("presence sweep stopped")
			return
		}
	}
}
