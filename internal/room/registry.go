package room

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astralcore/haven/internal/models"
)

// state pairs a room with its own lock so membership mutations on one
// room never contend with another. Join's capacity check and member add
// happen inside a single critical section.
type state struct {
	mu   sync.Mutex
	room models.Room
}

// Registry owns all room metadata and membership. Callers get copies;
// the live maps never escape the per-room lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*state
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uuid.UUID]*state)}
}

// Create registers a new room. The creator becomes a member and its first
// moderator.
func (r *Registry) Create(name string, capacity int, creator uuid.UUID, settings models.RoomSettings) models.Room {
	room := models.Room{
		ID:         uuid.New(),
		Name:       name,
		Capacity:   capacity,
		Members:    map[uuid.UUID]bool{creator: true},
		Moderators: map[uuid.UUID]bool{creator: true},
		Banned:     make(map[uuid.UUID]bool),
		Settings:   settings,
		CreatedBy:  creator,
		CreatedAt:  time.Now(),
		Active:     true,
	}

	r.mu.Lock()
	r.rooms[room.ID] = &state{room: room}
	r.mu.Unlock()

	return snapshot(&room)
}

func (r *Registry) get(roomID uuid.UUID) (*state, error) {
	r.mu.RLock()
	s, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return s, nil
}

// Join adds the user as a member, enforcing the ban list and capacity
// atomically. Joining a room you are already in succeeds without change.
func (r *Registry) Join(roomID, userID uuid.UUID) error {
	s, err := r.get(roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.room.Active {
		return ErrRoomInactive
	}
	if s.room.Banned[userID] {
		return ErrBanned
	}
	if s.room.Members[userID] {
		return nil
	}
	if len(s.room.Members) >= s.room.Capacity {
		return ErrRoomFull
	}
	s.room.Members[userID] = true
	return nil
}

// Leave removes the user from the member set. Idempotent.
func (r *Registry) Leave(roomID, userID uuid.UUID) error {
	s, err := r.get(roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.room.Members, userID)
	return nil
}

// Kick removes the target from the room's member set. The target may
// rejoin; use Ban to prevent that.
func (r *Registry) Kick(roomID, target uuid.UUID) error {
	s, err := r.get(roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.room.Members[target] {
		return ErrNotMember
	}
	delete(s.room.Members, target)
	return nil
}

// Ban adds the target to the banned set and removes any membership, in
// one critical section so the members∩banned=∅ invariant never breaks.
func (r *Registry) Ban(roomID, target uuid.UUID) error {
	s, err := r.get(roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.room.Banned[target] = true
	delete(s.room.Members, target)
	delete(s.room.Moderators, target)
	return nil
}

// IsMember reports current membership.
func (r *Registry) IsMember(roomID, userID uuid.UUID) bool {
	s, err := r.get(roomID)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.Members[userID]
}

// IsModerator reports whether the user is on the room's moderator list.
func (r *Registry) IsModerator(roomID, userID uuid.UUID) bool {
	s, err := r.get(roomID)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.Moderators[userID]
}

// AddModerator puts the user on the room's moderator list.
func (r *Registry) AddModerator(roomID, userID uuid.UUID) error {
	s, err := r.get(roomID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room.Moderators[userID] = true
	return nil
}

// Members returns the current member ids.
func (r *Registry) Members(roomID uuid.UUID) ([]uuid.UUID, error) {
	s, err := r.get(roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]uuid.UUID, 0, len(s.room.Members))
	for id := range s.room.Members {
		members = append(members, id)
	}
	return members, nil
}

// Snapshot returns a copy of the room safe to hand out.
func (r *Registry) Snapshot(roomID uuid.UUID) (models.Room, error) {
	s, err := r.get(roomID)
	if err != nil {
		return models.Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(&s.room), nil
}

// Deactivate soft-deletes the room: it stops accepting joins and
// messages but its record survives for message history.
func (r *Registry) Deactivate(roomID uuid.UUID) error {
	s, err := r.get(roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.room.Active = false
	return nil
}

// Active reports whether the room accepts joins and messages.
func (r *Registry) Active(roomID uuid.UUID) bool {
	s, err := r.get(roomID)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.Active
}

func snapshot(room *models.Room) models.Room {
	copied := *room
	copied.Members = copySet(room.Members)
	copied.Moderators = copySet(room.Moderators)
	copied.Banned = copySet(room.Banned)
	return copied
}

func copySet(src map[uuid.UUID]bool) map[uuid.UUID]bool {
	dst := make(map[uuid.UUID]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
