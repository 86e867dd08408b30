package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/astralcore/haven/internal/models"
)

const sendBuffer = 256

// Connection is one live transport connection bound to a user (or an
// ephemeral anonymous identity). The hub owns it exclusively: it is
// created on connect and destroyed on transport close. All outbound
// writes go through the send channel so only the write pump ever touches
// the socket.
type Connection struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Role            models.Role
	Permissions     models.CapabilitySet
	Anonymous       bool
	AuthenticatedAt time.Time
	DeviceLabel     string

	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	joined map[uuid.UUID]bool
}

func newConnection(ws *websocket.Conn, userID uuid.UUID, role models.Role, anonymous bool, deviceLabel string) *Connection {
	return &Connection{
		ID:              uuid.New(),
		UserID:          userID,
		Role:            role,
		Permissions:     models.PermissionsFor(role),
		Anonymous:       anonymous,
		AuthenticatedAt: time.Now(),
		DeviceLabel:     deviceLabel,
		ws:              ws,
		send:            make(chan []byte, sendBuffer),
		done:            make(chan struct{}),
		joined:          make(map[uuid.UUID]bool),
	}
}

// enqueue serializes the payload onto the send channel without blocking.
// A full buffer means the client cannot keep up; the caller drops the
// connection.
func (c *Connection) enqueue(payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// close tears down the send channel exactly once and closes the socket.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

// writePump drains the send channel onto the socket. It exits when the
// connection closes; the hub runs one per connection.
func (c *Connection) writePump(writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// addRoom records room membership on this connection.
func (c *Connection) addRoom(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[roomID] = true
}

// removeRoom drops the room from this connection. Used by leave and by
// kick/ban, which force the target out of the room without touching the
// transport.
func (c *Connection) removeRoom(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, roomID)
}

func (c *Connection) inRoom(roomID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined[roomID]
}

func (c *Connection) rooms() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(c.joined))
	for id := range c.joined {
		ids = append(ids, id)
	}
	return ids
}
