package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astralcore/haven/internal/models"
)

type RoomStore struct {
	pool *pgxpool.Pool
}

func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

func (s *RoomStore) Create(ctx context.Context, room models.Room) error {
	query := `
		INSERT INTO rooms (id, name, capacity, private, created_by, created_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		room.ID, room.Name, room.Capacity, room.Settings.Private,
		room.CreatedBy, room.CreatedAt, room.Active,
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *RoomStore) SetActive(ctx context.Context, roomID uuid.UUID, active bool) error {
	query := `UPDATE rooms SET active = $2 WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, roomID, active)
	if err != nil {
		return fmt.Errorf("set room active: %w", err)
	}
	return nil
}

func (s *RoomStore) AddMember(ctx context.Context, roomID, userID uuid.UUID) error {
	// Idempotent: rejoining is a no-op, not a constraint violation.
	query := `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, roomID, userID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *RoomStore) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	query := `
		DELETE FROM room_members
		WHERE room_id = $1 AND user_id = $2`

	_, err := s.pool.Exec(ctx, query, roomID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}
