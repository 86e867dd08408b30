package presence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/models"
)

func TestOfflineIffNoDevices(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	user := uuid.New()
	devA := uuid.New()
	devB := uuid.New()

	if tr.IsOnline(user) {
		t.Fatal("unknown user reported online")
	}

	tr.SetOnline(user, devA, "phone")
	tr.SetOnline(user, devB, "laptop")

	p, ok := tr.Get(user)
	if !ok || p.Status != models.StatusOnline {
		t.Fatalf("status = %v, want online", p.Status)
	}
	if len(p.Devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(p.Devices))
	}

	tr.SetOffline(user, devA)
	if !tr.IsOnline(user) {
		t.Fatal("user offline with one device still connected")
	}

	tr.SetOffline(user, devB)
	p, _ = tr.Get(user)
	if p.Status != models.StatusOffline {
		t.Fatalf("status = %v, want offline after last device dropped", p.Status)
	}
	if len(p.Devices) != 0 {
		t.Fatalf("devices = %d, want 0", len(p.Devices))
	}
}

func TestSetOfflineAllDevices(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	user := uuid.New()
	tr.SetOnline(user, uuid.New(), "")
	tr.SetOnline(user, uuid.New(), "")

	tr.SetOffline(user, uuid.Nil)
	if tr.IsOnline(user) {
		t.Fatal("user online after full disconnect")
	}
}

func TestManualStatusSurvivesHeartbeat(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	user := uuid.New()
	tr.SetOnline(user, uuid.New(), "")

	if !tr.SetStatus(user, models.StatusBusy) {
		t.Fatal("SetStatus(busy) rejected for connected user")
	}
	tr.UpdateLastSeen(user)

	p, _ := tr.Get(user)
	if p.Status != models.StatusBusy {
		t.Fatalf("status = %v, want busy preserved across heartbeat", p.Status)
	}
}

func TestSetStatusRejectsOfflineAndDisconnected(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	user := uuid.New()

	if tr.SetStatus(user, models.StatusAway) {
		t.Fatal("SetStatus accepted for user with no devices")
	}

	tr.SetOnline(user, uuid.New(), "")
	if tr.SetStatus(user, models.StatusOffline) {
		t.Fatal("SetStatus(offline) accepted while a device is live")
	}
}

func TestSweepDemotesStaleOnline(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	user := uuid.New()

	current := time.Now()
	tr.now = func() time.Time { return current }

	tr.SetOnline(user, uuid.New(), "")
	current = current.Add(2 * time.Minute)
	tr.Sweep(90*time.Second, 24*time.Hour)

	p, _ := tr.Get(user)
	if p.Status != models.StatusAway {
		t.Fatalf("status = %v, want away after missed heartbeats", p.Status)
	}

	// A heartbeat promotes back to online.
	tr.UpdateLastSeen(user)
	p, _ = tr.Get(user)
	if p.Status != models.StatusOnline {
		t.Fatalf("status = %v, want online after heartbeat", p.Status)
	}
}

func TestSweepPurgesStaleEntries(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	user := uuid.New()
	dev := uuid.New()

	current := time.Now()
	tr.now = func() time.Time { return current }

	tr.SetOnline(user, dev, "")
	tr.SetOffline(user, dev)

	current = current.Add(25 * time.Hour)
	tr.Sweep(90*time.Second, 24*time.Hour)

	if _, ok := tr.Get(user); ok {
		t.Fatal("entry survived purge after 25h untouched")
	}
}

func TestTypingIndicators(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	room := uuid.New()
	userA := uuid.New()
	userB := uuid.New()

	tr.SetTyping(userA, room, true)
	tr.SetTyping(userB, room, true)
	if got := len(tr.TypingUsers(room)); got != 2 {
		t.Fatalf("typing users = %d, want 2", got)
	}

	tr.SetTyping(userA, room, false)
	users := tr.TypingUsers(room)
	if len(users) != 1 || users[0] != userB {
		t.Fatalf("typing users = %v, want only %v", users, userB)
	}

	// Stopping when never started is a no-op.
	tr.SetTyping(userA, uuid.New(), false)
}

func TestOnlineCount(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	a, b := uuid.New(), uuid.New()
	devB := uuid.New()

	tr.SetOnline(a, uuid.New(), "")
	tr.SetOnline(b, devB, "")
	if got := tr.OnlineCount(); got != 2 {
		t.Fatalf("online count = %d, want 2", got)
	}

	tr.SetOffline(b, devB)
	if got := tr.OnlineCount(); got != 1 {
		t.Fatalf("online count = %d, want 1", got)
	}
}
