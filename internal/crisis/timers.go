package crisis

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// timerRegistry schedules escalation timers keyed by alert id. Each
// schedule bumps a per-alert generation token; a fired callback must
// claim its token before running, so a Cancel that raced with the fire
// always wins and the stale callback becomes a no-op.
type timerRegistry struct {
	mu     sync.Mutex
	seq    map[uuid.UUID]uint64
	timers map[uuid.UUID]*time.Timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{
		seq:    make(map[uuid.UUID]uint64),
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// Schedule arranges fire() after delay, superseding any earlier timer for
// the alert.
func (r *timerRegistry) Schedule(alertID uuid.UUID, delay time.Duration, fire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[alertID]; ok {
		t.Stop()
	}
	r.seq[alertID]++
	token := r.seq[alertID]
	r.timers[alertID] = time.AfterFunc(delay, func() {
		if !r.claim(alertID, token) {
			return
		}
		fire()
	})
}

func (r *timerRegistry) claim(alertID uuid.UUID, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq[alertID] != token {
		return false
	}
	delete(r.timers, alertID)
	return true
}

// Cancel stops any pending timer and invalidates a callback that already
// fired but has not yet claimed its token.
func (r *timerRegistry) Cancel(alertID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[alertID]; ok {
		t.Stop()
		delete(r.timers, alertID)
	}
	r.seq[alertID]++
}

// Pending reports whether a timer is currently scheduled for the alert.
func (r *timerRegistry) Pending(alertID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[alertID]
	return ok
}
