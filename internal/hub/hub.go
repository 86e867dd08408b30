package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
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

// messageIndexCap bounds the in-memory window for edit/delete/react.
const messageIndexCap = 10000

// Hub accepts transport connections, authenticates and authorizes them,
// routes inbound events, and fans deliveries out to rooms and users. It
// is the single owner of the socket↔user mapping; every other component
// reaches connected clients through it.
type Hub struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*Connection
	byUser map[uuid.UUID]map[uuid.UUID]*Connection

	cfg      *config.Config
	resolver auth.Resolver

	rooms       *room.Registry
	presence    *presence.Tracker
	queue       *queue.Queue
	limiter     *ratelimit.Limiter
	classifier  classify.Classifier
	coordinator *crisis.Coordinator
	recorder    *repository.Recorder
	notifier    notify.Notifier
	metrics     *observ.Metrics
	logger      *zap.Logger

	messages *messageIndex
}

// Deps bundles the hub's collaborators. Coordinator is set after
// construction (SetCoordinator) because the coordinator needs the hub for
// delivery.
type Deps struct {
	Config     *config.Config
	Resolver   auth.Resolver
	Rooms      *room.Registry
	Presence   *presence.Tracker
	Queue      *queue.Queue
	Limiter    *ratelimit.Limiter
	Classifier classify.Classifier
	Recorder   *repository.Recorder
	Notifier   notify.Notifier
	Metrics    *observ.Metrics
	Logger     *zap.Logger
}

func New(deps Deps) *Hub {
	return &Hub{
		conns:      make(map[uuid.UUID]*Connection),
		byUser:     make(map[uuid.UUID]map[uuid.UUID]*Connection),
		cfg:        deps.Config,
		resolver:   deps.Resolver,
		rooms:      deps.Rooms,
		presence:   deps.Presence,
		queue:      deps.Queue,
		limiter:    deps.Limiter,
		classifier: deps.Classifier,
		recorder:   deps.Recorder,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		messages:   newMessageIndex(messageIndexCap),
	}
}

// SetCoordinator wires the crisis coordinator in after both sides exist.
func (h *Hub) SetCoordinator(c *crisis.Coordinator) {
	h.coordinator = c
}

// Connect authenticates the credential (or admits an anonymous client),
// registers the connection, flushes any queued messages, and starts the
// socket pumps. A nil error means the connection is live.
func (h *Hub) Connect(ws *websocket.Conn, credential, deviceLabel string) (*Connection, *protocol.Error) {
	var (
		userID    uuid.UUID
		role      models.Role
		anonymous bool
	)

	if credential == "" {
		userID = uuid.New()
		role = models.RoleAnonymous
		anonymous = true
	} else {
		identity, err := h.resolver.Resolve(credential)
		if err != nil {
			return nil, protocol.NewError(protocol.CodeAuthFailed, "invalid credential")
		}
		if !identity.Active {
			return nil, protocol.NewError(protocol.CodeAuthFailed, "account is inactive")
		}
		if identity.Locked(time.Now()) {
			return nil, protocol.NewError(protocol.CodeAuthFailed, "account is locked")
		}
		userID = identity.UserID
		role = identity.Role
	}

	conn := newConnection(ws, userID, role, anonymous, deviceLabel)

	h.mu.Lock()
	h.conns[conn.ID] = conn
	byUser, ok := h.byUser[userID]
	if !ok {
		byUser = make(map[uuid.UUID]*Connection)
		h.byUser[userID] = byUser
	}
	byUser[conn.ID] = conn
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveConnections.WithLabelValues(string(role)).Inc()
	}

	h.presence.SetOnline(userID, conn.ID, deviceLabel)
	if h.coordinator != nil && models.IsCounselorRole(role) {
		h.coordinator.CounselorConnected(userID, role)
	}

	h.flushQueued(conn)

	if ws != nil {
		go conn.writePump(h.cfg.WriteTimeout, h.cfg.PongTimeout/2)
		go h.serve(conn)
	}

	h.logger.Info("connection established",
		zap.String("connection_id", conn.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
		zap.Bool("anonymous", anonymous),
	)

	return conn, nil
}

// flushQueued delivers messages stored while every device was offline.
func (h *Hub) flushQueued(conn *Connection) {
	queued := h.queue.Drain(conn.UserID)
	if len(queued) == 0 {
		return
	}
	conn.enqueue(protocol.NewPush(protocol.PushQueuedMessages, map[string]any{
		"messages": queued,
		"count":    len(queued),
	}))
}

// Disconnect removes the connection. Idempotent and safe to run
// concurrently with a reconnection of the same user: only the exact
// connection id is removed.
func (h *Hub) Disconnect(connectionID uuid.UUID) {
	h.mu.Lock()
	conn, ok := h.conns[connectionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, connectionID)
	remaining := 0
	if byUser, ok := h.byUser[conn.UserID]; ok {
		delete(byUser, connectionID)
		remaining = len(byUser)
		if remaining == 0 {
			delete(h.byUser, conn.UserID)
		}
	}
	h.mu.Unlock()

	conn.close()

	if h.metrics != nil {
		h.metrics.ActiveConnections.WithLabelValues(string(conn.Role)).Dec()
	}

	h.presence.SetOffline(conn.UserID, connectionID)
	if remaining == 0 && h.coordinator != nil && models.IsCounselorRole(conn.Role) {
		h.coordinator.CounselorDisconnected(conn.UserID)
	}

	h.logger.Info("connection closed",
		zap.String("connection_id", connectionID.String()),
		zap.String("user_id", conn.UserID.String()),
		zap.Int("remaining_devices", remaining),
	)
}

// serve is the per-connection read loop. Transport errors end only this
// connection; the user's other devices are untouched.
func (h *Hub) serve(conn *Connection) {
	defer h.Disconnect(conn.ID)

	conn.ws.SetReadLimit(int64(h.cfg.MaxMessageLength) * 4)
	conn.ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		h.presence.UpdateLastSeen(conn.UserID)
		return nil
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("unexpected close",
					zap.String("connection_id", conn.ID.String()),
					zap.Error(err),
				)
			}
			return
		}
		h.handleFrame(conn, data)
	}
}

// DeliverToUser sends an event to every live device of the user. With no
// live device, room messages are queued for reconnect and notifications
// go out through the push/SMS channel; other pushes are dropped.
func (h *Hub) DeliverToUser(userID uuid.UUID, event string, payload any) {
	h.mu.RLock()
	conns := make([]*Connection, 0, 2)
	for _, conn := range h.byUser[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		h.handleOfflineDelivery(userID, event, payload)
		return
	}

	push := protocol.NewPush(event, payload)
	for _, conn := range conns {
		if !conn.enqueue(push) {
			h.logger.Warn("dropping unresponsive connection",
				zap.String("connection_id", conn.ID.String()),
				zap.String("user_id", userID.String()),
			)
			go h.Disconnect(conn.ID)
		}
	}
}

func (h *Hub) handleOfflineDelivery(userID uuid.UUID, event string, payload any) {
	switch event {
	case protocol.PushMessageNew:
		if msg, ok := payload.(models.Message); ok {
			h.queue.Enqueue(userID, msg)
			if h.metrics != nil {
				h.metrics.MessagesDelivered.WithLabelValues("queued").Inc()
			}
		}
	case protocol.PushNotification, protocol.PushCrisisResponse, protocol.PushCrisisResolved, protocol.PushEmergencyProtocol:
		// Out-of-band channel so crisis communication still reaches the
		// user's devices via push/SMS.
		notification := models.Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Kind:      event,
			Title:     "Haven",
			Priority:  "high",
			CreatedAt: time.Now(),
		}
		if err := h.notifier.Send(context.Background(), notification); err != nil {
			h.logger.Warn("offline notification failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
	}
}

// PublishToRoom fans an event out to every member. Delivery to one member
// never blocks or fails delivery to another.
func (h *Hub) PublishToRoom(roomID uuid.UUID, event string, payload any, excluding ...uuid.UUID) {
	members, err := h.rooms.Members(roomID)
	if err != nil {
		h.logger.Warn("publish to unknown room", zap.String("room_id", roomID.String()))
		return
	}

	skip := make(map[uuid.UUID]bool, len(excluding))
	for _, id := range excluding {
		skip[id] = true
	}

	for _, member := range members {
		if skip[member] {
			continue
		}
		h.DeliverToUser(member, event, payload)
	}
}

// BroadcastToRole sends an event to every live connection with the role.
// The supervisor room is the set of admin connections.
func (h *Hub) BroadcastToRole(role models.Role, event string, payload any) {
	h.mu.RLock()
	conns := make([]*Connection, 0)
	for _, conn := range h.conns {
		if conn.Role == role {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	push := protocol.NewPush(event, payload)
	for _, conn := range conns {
		if !conn.enqueue(push) {
			go h.Disconnect(conn.ID)
		}
	}
}

// ActiveConnections reports the number of live connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// IsUserOnline reports whether the user has at least one live device.
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	return h.presence.IsOnline(userID)
}

// connectionsForUser returns the user's live connections.
func (h *Hub) connectionsForUser(userID uuid.UUID) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Connection, 0, len(h.byUser[userID]))
	for _, conn := range h.byUser[userID] {
		conns = append(conns, conn)
	}
	return conns
}
