package crisis

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTimerFires(t *testing.T) {
	r := newTimerRegistry()
	alertID := uuid.New()

	fired := make(chan struct{})
	r.Schedule(alertID, 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if r.Pending(alertID) {
		t.Fatal("timer still pending after fire")
	}
}

func TestCancelBeatsFire(t *testing.T) {
	r := newTimerRegistry()
	alertID := uuid.New()

	var mu sync.Mutex
	fired := 0
	r.Schedule(alertID, 5*time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	r.Cancel(alertID)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Fatalf("cancelled timer fired %d times", fired)
	}
}

func TestRescheduleSupersedesOldTimer(t *testing.T) {
	r := newTimerRegistry()
	alertID := uuid.New()

	var mu sync.Mutex
	var order []string
	record := func(tag string) func() {
		return func() {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		}
	}

	r.Schedule(alertID, 5*time.Millisecond, record("old"))
	r.Schedule(alertID, 20*time.Millisecond, record("new"))

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 1 || order[0] != "new" {
		t.Fatalf("fired callbacks = %v, want only the superseding timer", order)
	}
}

func TestCancelIsIdempotentAndUnknownSafe(t *testing.T) {
	r := newTimerRegistry()
	alertID := uuid.New()

	r.Cancel(alertID)
	r.Schedule(alertID, time.Hour, func() {})
	r.Cancel(alertID)
	r.Cancel(alertID)
	if r.Pending(alertID) {
		t.Fatal("timer pending after cancel")
	}
}
