package hub

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/auth"
	"github.com/astralcore/haven/internal/classify"
	"github.com/astralcore/haven/internal/config"
	"github.com/astralcore/haven/internal/crisis"
	"github.com/astralcore/haven/internal/models"
	"github.com/astralcore/haven/internal/notify"
	"github.com/astralcore/haven/internal/observ"
	"github.com/astralcore/haven/internal/presence"
	"github.com/astralcore/haven/internal/protocol"
	"github.com/astralcore/haven/internal/queue"
	"github.com/astralcore/haven/internal/ratelimit"
	"github.com/astralcore/haven/internal/repository"
	"github.com/astralcore/haven/internal/room"
)

// staticResolver maps fixed credentials to identities so tests never mint
// real tokens.
type staticResolver struct {
	identities map[string]auth.Identity
}

func (r *staticResolver) Resolve(credential string) (auth.Identity, error) {
	id, ok := r.identities[credential]
	if !ok {
		return auth.Identity{}, errors.New("unknown credential")
	}
	return id, nil
}

// wireFrame decodes either an ack or a push off a connection's send
// channel. Pushes carry Type; acks carry ID/Success.
type wireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`

	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *protocol.Error `json:"error"`
}

func (f wireFrame) isPush() bool { return f.Type != "" }

func drainFrames(t *testing.T, c *Connection) []wireFrame {
	t.Helper()
	var out []wireFrame
	for {
		select {
		case data := <-c.send:
			var f wireFrame
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatalf("undecodable frame on send channel: %v", err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func pushesOfType(frames []wireFrame, eventType string) []wireFrame {
	var out []wireFrame
	for _, f := range frames {
		if f.Type == eventType {
			out = append(out, f)
		}
	}
	return out
}

type testEnv struct {
	hub         *Hub
	coordinator *crisis.Coordinator
	resolver    *staticResolver
	cfg         *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		MaxMessageLength:      4000,
		WriteTimeout:          10 * time.Second,
		PongTimeout:           time.Minute,
		QueueCapPerUser:       100,
		QueueTTL:              time.Hour,
		CounselorLoadCap:      5,
		MaxEscalationLevel:    3,
		CrisisConfidenceFloor: 0.45,
	}

	limits := map[ratelimit.Category]ratelimit.Limit{
		ratelimit.CategoryMessage:     {Max: 100, Window: time.Minute},
		ratelimit.CategoryCrisisAlert: {Max: 2, Window: 5 * time.Minute},
		ratelimit.CategoryRoomOp:      {Max: 100, Window: time.Minute},
	}

	resolver := &staticResolver{identities: make(map[string]auth.Identity)}
	tracker := presence.NewTracker(logger)
	metrics := observ.NewMetrics(prometheus.NewRegistry())
	notifier, err := notify.New("", logger)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	recorder := repository.NewRecorder(nil, nil, nil, nil, logger)

	h := New(Deps{
		Config:     cfg,
		Resolver:   resolver,
		Rooms:      room.NewRegistry(),
		Presence:   tracker,
		Queue:      queue.New(cfg.QueueCapPerUser, cfg.QueueTTL, logger, nil),
		Limiter:    ratelimit.New(limits),
		Classifier: classify.NewKeywordClassifier(),
		Recorder:   recorder,
		Notifier:   notifier,
		Metrics:    metrics,
		Logger:     logger,
	})

	coordinator := crisis.NewCoordinator(crisis.Config{
		CounselorLoadCap:   cfg.CounselorLoadCap,
		MaxEscalationLevel: cfg.MaxEscalationLevel,
		ConfidenceFloor:    cfg.CrisisConfidenceFloor,
	}, h, tracker, notifier, recorder, metrics, logger)
	h.SetCoordinator(coordinator)

	return &testEnv{hub: h, coordinator: coordinator, resolver: resolver, cfg: cfg}
}

// connect registers a credential for the role and opens a pump-less
// connection so tests can read the send channel directly.
func (e *testEnv) connect(t *testing.T, userID uuid.UUID, role models.Role, device string) *Connection {
	t.Helper()
	credential := userID.String() + "/" + device
	e.resolver.identities[credential] = auth.Identity{UserID: userID, Role: role, Active: true}
	conn, perr := e.hub.Connect(nil, credential, device)
	if perr != nil {
		t.Fatalf("connect %s: %v", device, perr)
	}
	return conn
}

// send routes one frame and returns the ack plus any pushes that landed on
// the sender's channel during handling.
func (e *testEnv) send(t *testing.T, conn *Connection, eventType protocol.EventType, payload any) (wireFrame, []wireFrame) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = data
	}
	e.hub.Route(conn, protocol.Frame{ID: uuid.NewString(), Type: eventType, Payload: raw})

	frames := drainFrames(t, conn)
	var ack wireFrame
	found := false
	var pushes []wireFrame
	for _, f := range frames {
		if f.isPush() {
			pushes = append(pushes, f)
			continue
		}
		if found {
			t.Fatalf("more than one ack for a single frame")
		}
		ack, found = f, true
	}
	if !found {
		t.Fatalf("no ack for %s", eventType)
	}
	return ack, pushes
}

func (e *testEnv) createRoom(t *testing.T, conn *Connection, name string, capacity int) uuid.UUID {
	t.Helper()
	ack, _ := e.send(t, conn, protocol.EventRoomCreate, protocol.CreateRoom{Name: name, Capacity: capacity})
	if !ack.Success {
		t.Fatalf("room create failed: %v", ack.Error)
	}
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(ack.Data, &created); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return created.ID
}

func (e *testEnv) join(t *testing.T, conn *Connection, roomID uuid.UUID) {
	t.Helper()
	ack, _ := e.send(t, conn, protocol.EventRoomJoin, protocol.JoinRoom{RoomID: roomID})
	if !ack.Success {
		t.Fatalf("join failed: %v", ack.Error)
	}
}

func TestMessageFanOutReachesEveryDeviceOnce(t *testing.T) {
	env := newTestEnv(t)

	author := uuid.New()
	member := uuid.New()
	authorConn := env.connect(t, author, models.RoleUser, "laptop")
	memberPhone := env.connect(t, member, models.RoleUser, "phone")
	memberTablet := env.connect(t, member, models.RoleUser, "tablet")

	roomID := env.createRoom(t, authorConn, "evening-circle", 10)
	env.join(t, memberPhone, roomID)
	drainFrames(t, authorConn)
	drainFrames(t, memberPhone)
	drainFrames(t, memberTablet)

	ack, authorPushes := env.send(t, authorConn, protocol.EventMessageSend,
		protocol.SendMessage{RoomID: roomID, Content: "good evening all"})
	if !ack.Success {
		t.Fatalf("send failed: %v", ack.Error)
	}

	if got := len(pushesOfType(authorPushes, protocol.PushMessageNew)); got != 1 {
		t.Errorf("author device got %d copies, want 1", got)
	}
	for name, conn := range map[string]*Connection{"phone": memberPhone, "tablet": memberTablet} {
		frames := drainFrames(t, conn)
		if got := len(pushesOfType(frames, protocol.PushMessageNew)); got != 1 {
			t.Errorf("%s got %d copies, want 1", name, got)
		}
	}
}

func TestOfflineMemberGetsOneQueuedCopy(t *testing.T) {
	env := newTestEnv(t)

	author := uuid.New()
	member := uuid.New()
	authorConn := env.connect(t, author, models.RoleUser, "laptop")
	memberConn := env.connect(t, member, models.RoleUser, "phone")

	roomID := env.createRoom(t, authorConn, "quiet-room", 10)
	env.join(t, memberConn, roomID)
	env.hub.Disconnect(memberConn.ID)

	ack, _ := env.send(t, authorConn, protocol.EventMessageSend,
		protocol.SendMessage{RoomID: roomID, Content: "see you tomorrow"})
	if !ack.Success {
		t.Fatalf("send failed: %v", ack.Error)
	}

	reconnected := env.connect(t, member, models.RoleUser, "phone")
	frames := drainFrames(t, reconnected)
	flushes := pushesOfType(frames, protocol.PushQueuedMessages)
	if len(flushes) != 1 {
		t.Fatalf("got %d queue flushes, want 1", len(flushes))
	}
	var flush struct {
		Count    int              `json:"count"`
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(flushes[0].Payload, &flush); err != nil {
		t.Fatalf("decode flush: %v", err)
	}
	if flush.Count != 1 || len(flush.Messages) != 1 {
		t.Fatalf("flush count = %d (%d messages), want exactly 1", flush.Count, len(flush.Messages))
	}
	if flush.Messages[0].Content != "see you tomorrow" {
		t.Errorf("queued content = %q", flush.Messages[0].Content)
	}
}

func TestAnonymousCannotCreateRoom(t *testing.T) {
	env := newTestEnv(t)

	conn, perr := env.hub.Connect(nil, "", "web")
	if perr != nil {
		t.Fatalf("anonymous connect: %v", perr)
	}
	drainFrames(t, conn)

	ack, _ := env.send(t, conn, protocol.EventRoomCreate, protocol.CreateRoom{Name: "x", Capacity: 5})
	if ack.Success {
		t.Fatal("anonymous room.create succeeded, want UNAUTHORIZED")
	}
	if ack.Error.Code != protocol.CodeUnauthorized {
		t.Errorf("code = %s, want %s", ack.Error.Code, protocol.CodeUnauthorized)
	}
}

func TestJoinFullRoom(t *testing.T) {
	env := newTestEnv(t)

	creator := env.connect(t, uuid.New(), models.RoleUser, "laptop")
	second := env.connect(t, uuid.New(), models.RoleUser, "laptop")
	third := env.connect(t, uuid.New(), models.RoleUser, "laptop")

	roomID := env.createRoom(t, creator, "pair", 2)
	env.join(t, second, roomID)

	ack, _ := env.send(t, third, protocol.EventRoomJoin, protocol.JoinRoom{RoomID: roomID})
	if ack.Success {
		t.Fatal("join into full room succeeded")
	}
	if ack.Error.Code != protocol.CodeRoomFull {
		t.Errorf("code = %s, want %s", ack.Error.Code, protocol.CodeRoomFull)
	}
}

func TestCrisisRateLimitCarriesFallback(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t, uuid.New(), models.RoleUser, "phone")
	drainFrames(t, conn)

	for i := 0; i < 2; i++ {
		ack, _ := env.send(t, conn, protocol.EventCrisisAlert, protocol.CrisisAlertRequest{Severity: "high"})
		if !ack.Success {
			t.Fatalf("alert %d failed: %v", i, ack.Error)
		}
	}

	ack, _ := env.send(t, conn, protocol.EventCrisisAlert, protocol.CrisisAlertRequest{Severity: "high"})
	if ack.Success {
		t.Fatal("third alert inside window succeeded")
	}
	if ack.Error.Code != protocol.CodeRateLimited {
		t.Fatalf("code = %s, want %s", ack.Error.Code, protocol.CodeRateLimited)
	}
	if ack.Error.RetryAfterSeconds <= 0 {
		t.Error("retry_after_seconds missing on rate-limited crisis action")
	}
	if ack.Error.Fallback == "" {
		t.Error("denied crisis action carries no emergency fallback text")
	}
}

func TestCrisisMessageOpensAssignedAlert(t *testing.T) {
	env := newTestEnv(t)

	counselor := uuid.New()
	env.connect(t, counselor, models.RoleCounselor, "desk")

	user := uuid.New()
	userConn := env.connect(t, user, models.RoleUser, "phone")
	roomID := env.createRoom(t, userConn, "late-night", 10)
	drainFrames(t, userConn)

	ack, pushes := env.send(t, userConn, protocol.EventMessageSend,
		protocol.SendMessage{RoomID: roomID, Content: "I want to kill myself"})
	if !ack.Success {
		t.Fatalf("send failed: %v", ack.Error)
	}
	// Delivery is never blocked by moderation.
	if got := len(pushesOfType(pushes, protocol.PushMessageNew)); got != 1 {
		t.Errorf("message delivered %d times, want 1", got)
	}

	alertID, open := env.coordinator.OpenAlertForUser(user)
	if !open {
		t.Fatal("no open alert after critical crisis message")
	}
	alert, ok := env.coordinator.Get(alertID)
	if !ok {
		t.Fatal("alert not found by id")
	}
	if alert.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want %s", alert.Severity, models.SeverityCritical)
	}
	if alert.Status != models.AlertAssigned {
		t.Errorf("status = %s, want %s", alert.Status, models.AlertAssigned)
	}
	if len(alert.AssignedCounselors) != 1 || alert.AssignedCounselors[0] != counselor {
		t.Errorf("assigned to %v, want [%s]", alert.AssignedCounselors, counselor)
	}

	if len(pushesOfType(pushes, protocol.PushCrisisResponse)) == 0 {
		t.Error("user received no immediate crisis response")
	}
}

func TestKickRevokesRoomScopeNotTransport(t *testing.T) {
	env := newTestEnv(t)

	mod := env.connect(t, uuid.New(), models.RoleModerator, "desk")
	target := uuid.New()
	targetConn := env.connect(t, target, models.RoleUser, "phone")

	roomID := env.createRoom(t, mod, "watched", 10)
	env.join(t, targetConn, roomID)
	drainFrames(t, mod)
	drainFrames(t, targetConn)

	ack, _ := env.send(t, mod, protocol.EventRoomKick,
		protocol.KickMember{RoomID: roomID, UserID: target, Reason: "guidelines"})
	if !ack.Success {
		t.Fatalf("kick failed: %v", ack.Error)
	}

	frames := drainFrames(t, targetConn)
	if len(pushesOfType(frames, protocol.PushMemberKicked)) == 0 {
		t.Error("kicked user was not notified")
	}
	if targetConn.inRoom(roomID) {
		t.Error("kicked user still holds room scope on the connection")
	}
	if env.hub.ActiveConnections() != 2 {
		t.Errorf("active connections = %d, want 2; kick must not close the transport", env.hub.ActiveConnections())
	}

	sendAck, _ := env.send(t, targetConn, protocol.EventMessageSend,
		protocol.SendMessage{RoomID: roomID, Content: "hello?"})
	if sendAck.Success {
		t.Error("kicked user can still send into the room")
	}

	// Kicked is not banned: rejoining works.
	env.join(t, targetConn, roomID)
}

func TestBanBlocksRejoin(t *testing.T) {
	env := newTestEnv(t)

	mod := env.connect(t, uuid.New(), models.RoleModerator, "desk")
	target := uuid.New()
	targetConn := env.connect(t, target, models.RoleUser, "phone")

	roomID := env.createRoom(t, mod, "watched", 10)
	env.join(t, targetConn, roomID)

	ack, _ := env.send(t, mod, protocol.EventRoomBan,
		protocol.BanMember{RoomID: roomID, UserID: target})
	if !ack.Success {
		t.Fatalf("ban failed: %v", ack.Error)
	}

	rejoin, _ := env.send(t, targetConn, protocol.EventRoomJoin, protocol.JoinRoom{RoomID: roomID})
	if rejoin.Success {
		t.Fatal("banned user rejoined")
	}
	if rejoin.Error.Code != protocol.CodeBanned {
		t.Errorf("code = %s, want %s", rejoin.Error.Code, protocol.CodeBanned)
	}
}

func TestEditByNonAuthorNonModeratorRejected(t *testing.T) {
	env := newTestEnv(t)

	author := env.connect(t, uuid.New(), models.RoleUser, "laptop")
	other := env.connect(t, uuid.New(), models.RoleUser, "laptop")

	roomID := env.createRoom(t, author, "shared", 10)
	env.join(t, other, roomID)
	drainFrames(t, author)
	drainFrames(t, other)

	ack, _ := env.send(t, author, protocol.EventMessageSend,
		protocol.SendMessage{RoomID: roomID, Content: "original"})
	if !ack.Success {
		t.Fatalf("send failed: %v", ack.Error)
	}
	var msg models.Message
	if err := json.Unmarshal(ack.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}

	editAck, _ := env.send(t, other, protocol.EventMessageEdit,
		protocol.EditMessage{RoomID: roomID, MessageID: msg.ID, Content: "hijacked"})
	if editAck.Success {
		t.Fatal("non-author edit succeeded")
	}
	if editAck.Error.Code != protocol.CodeUnauthorized {
		t.Errorf("code = %s, want %s", editAck.Error.Code, protocol.CodeUnauthorized)
	}

	stored, _ := env.hub.messages.get(msg.ID)
	if stored.Content != "original" {
		t.Errorf("content mutated to %q by rejected edit", stored.Content)
	}
}

func TestMalformedFrameGetsValidationAck(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t, uuid.New(), models.RoleUser, "phone")
	drainFrames(t, conn)

	env.hub.handleFrame(conn, []byte("{not json"))
	frames := drainFrames(t, conn)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 ack", len(frames))
	}
	if frames[0].Success || frames[0].Error == nil || frames[0].Error.Code != protocol.CodeValidation {
		t.Errorf("malformed frame ack = %+v, want VALIDATION error", frames[0])
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t, uuid.New(), models.RoleUser, "phone")

	env.hub.Disconnect(conn.ID)
	env.hub.Disconnect(conn.ID)

	if env.hub.ActiveConnections() != 0 {
		t.Errorf("active connections = %d, want 0", env.hub.ActiveConnections())
	}
	if env.hub.IsUserOnline(conn.UserID) {
		t.Error("user still online after disconnect")
	}
}

func TestCounselorDisconnectTracked(t *testing.T) {
	env := newTestEnv(t)

	counselorID := uuid.New()
	conn := env.connect(t, counselorID, models.RoleCounselor, "desk")
	if env.coordinator.ActiveCounselorsCount() != 1 {
		t.Fatalf("active counselors = %d, want 1", env.coordinator.ActiveCounselorsCount())
	}

	env.hub.Disconnect(conn.ID)
	if env.coordinator.ActiveCounselorsCount() != 0 {
		t.Errorf("active counselors = %d after disconnect, want 0", env.coordinator.ActiveCounselorsCount())
	}
}

func TestHeartbeatRefreshesPresence(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t, uuid.New(), models.RoleUser, "phone")
	drainFrames(t, conn)

	ack, _ := env.send(t, conn, protocol.EventHeartbeat, nil)
	if !ack.Success {
		t.Fatalf("heartbeat failed: %v", ack.Error)
	}
	if !env.hub.IsUserOnline(conn.UserID) {
		t.Error("user offline after heartbeat")
	}
}

func TestUnknownEventType(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t, uuid.New(), models.RoleUser, "phone")
	drainFrames(t, conn)

	ack, _ := env.send(t, conn, protocol.EventType("message.levitate"), nil)
	if ack.Success {
		t.Fatal("unknown event type succeeded")
	}
	if ack.Error.Code != protocol.CodeValidation {
		t.Errorf("code = %s, want %s", ack.Error.Code, protocol.CodeValidation)
	}
}
