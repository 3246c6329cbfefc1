package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierhq/onboarding-api/internal/models"
)

// ResponseRepository persists wizard answers, one logical row per
// (session, step, field).
type ResponseRepository struct {
	db *sqlx.DB
}

// NewResponseRepository constructs the repository.
func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// UpsertStep saves a whole step worth of answers in one transaction. Replays
// with the same payload leave identical state; the composite key absorbs them.
func (r *ResponseRepository) UpsertStep(ctx context.Context, sessionID, stepID string, responses []models.Response) error {
	if len(responses) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin step responses tx: %w", err)
	}
	const query = `INSERT INTO onboarding_responses (id, session_id, step_id, field_id, value, created_at, updated_at)
VALUES (:id, :session_id, :step_id, :field_id, :value, :created_at, :updated_at)
ON CONFLICT (session_id, step_id, field_id)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range responses {
		responses[i].SessionID = sessionID
		responses[i].StepID = stepID
		if responses[i].ID == "" {
			responses[i].ID = uuid.NewString()
		}
		responses[i].CreatedAt = now
		responses[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, responses[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert step response: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit step responses tx: %w", err)
	}
	return nil
}

// ListBySession returns every answer recorded for a session.
func (r *ResponseRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Response, error) {
	const query = `SELECT id, session_id, step_id, field_id, value, created_at, updated_at
FROM onboarding_responses WHERE session_id = $1`
	var responses []models.Response
	if err := r.db.SelectContext(ctx, &responses, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session responses: %w", err)
	}
	return responses, nil
}
