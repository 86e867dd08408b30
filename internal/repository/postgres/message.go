package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astralcore/haven/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, msg models.Message) error {
	query := `
		INSERT INTO messages (id, room_id, author_id, content, type, reactions, revision, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return fmt.Errorf("marshal reactions: %w", err)
	}

	_, err = s.pool.Exec(ctx, query,
		msg.ID, msg.RoomID, msg.AuthorID, msg.Content, msg.Type,
		reactions, msg.Revision, msg.Deleted, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *MessageStore) UpdateRevision(ctx context.Context, msg models.Message) error {
	query := `
		UPDATE messages
		SET content = $2, reactions = $3, revision = $4, deleted = $5
		WHERE id = $1`

	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return fmt.Errorf("marshal reactions: %w", err)
	}

	_, err = s.pool.Exec(ctx, query,
		msg.ID, msg.Content, reactions, msg.Revision, msg.Deleted,
	)
	if err != nil {
		return fmt.Errorf("update message revision: %w", err)
	}
	return nil
}
