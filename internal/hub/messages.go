package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/astralcore/haven/internal/models"
)

// messageIndex holds recently delivered messages so edit/delete/react can
// validate ownership without a storage round trip. Bounded FIFO: once the
// cap is hit the oldest entry falls out and later mutations of it are
// answered from persistence instead (NotFound here).
type messageIndex struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*models.Message
	order []uuid.UUID
	cap   int
}

func newMessageIndex(capacity int) *messageIndex {
	return &messageIndex{
		byID: make(map[uuid.UUID]*models.Message),
		cap:  capacity,
	}
}

func (m *messageIndex) add(msg models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[msg.ID]; ok {
		return
	}
	if len(m.order) >= m.cap {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.byID, oldest)
	}
	stored := msg
	m.byID[msg.ID] = &stored
	m.order = append(m.order, msg.ID)
}

func (m *messageIndex) get(id uuid.UUID) (models.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.byID[id]
	if !ok {
		return models.Message{}, false
	}
	return *msg, true
}

// mutate applies fn to the stored message under the lock and returns the
// updated copy.
func (m *messageIndex) mutate(id uuid.UUID, fn func(*models.Message)) (models.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.byID[id]
	if !ok {
		return models.Message{}, false
	}
	fn(msg)
	return *msg, true
}
