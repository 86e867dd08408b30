package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astralcore/haven/internal/models"
)

type AlertStore struct {
	pool *pgxpool.Pool
}

func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

func (s *AlertStore) Create(ctx context.Context, alert models.CrisisAlert) error {
	query := `
		INSERT INTO crisis_alerts (id, user_id, severity, status, triggers, escalation_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		alert.ID, alert.UserID, string(alert.Severity), string(alert.Status),
		alert.Triggers, alert.EscalationLevel, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *AlertStore) Update(ctx context.Context, alert models.CrisisAlert) error {
	query := `
		UPDATE crisis_alerts
		SET severity = $2, status = $3, triggers = $4, escalation_level = $5,
		    assigned_counselors = $6, responded_at = $7, resolved_at = $8,
		    resolution_note = $9
		WHERE id = $1`

	counselors := make([]string, 0, len(alert.AssignedCounselors))
	for _, id := range alert.AssignedCounselors {
		counselors = append(counselors, id.String())
	}

	_, err := s.pool.Exec(ctx, query,
		alert.ID, string(alert.Severity), string(alert.Status), alert.Triggers,
		alert.EscalationLevel, counselors, alert.RespondedAt, alert.ResolvedAt,
		alert.ResolutionNote,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return nil
}
