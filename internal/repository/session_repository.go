package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierhq/onboarding-api/internal/models"
)

// SessionRepository persists onboarding sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, organization_id, template_id, client_id, project_id, status, completion_percentage, token, expires_at, created_at, updated_at`

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO onboarding_sessions (id, organization_id, template_id, client_id, project_id, status, completion_percentage, token, expires_at, created_at, updated_at)
VALUES (:id, :organization_id, :template_id, :client_id, :project_id, :status, :completion_percentage, :token, :expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindByID fetches a session scoped to its organization.
func (r *SessionRepository) FindByID(ctx context.Context, id, organizationID string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM onboarding_sessions WHERE id = $1 AND organization_id = $2`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id, organizationID); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByToken looks a session up by its public token, joined with the name
// and steps of the template version it was created from. Token possession is
// the wizard's only credential, so this query is deliberately not org-scoped.
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*models.SessionWithTemplate, error) {
	const query = `SELECT s.id, s.organization_id, s.template_id, s.client_id, s.project_id, s.status,
       s.completion_percentage, s.token, s.expires_at, s.created_at, s.updated_at,
       t.name AS template_name, t.steps AS template_steps
FROM onboarding_sessions s
JOIN onboarding_templates t ON t.id = s.template_id
WHERE s.token = $1`
	var session models.SessionWithTemplate
	if err := r.db.GetContext(ctx, &session, query, token); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindWithTemplate loads a session by ID joined with its template's name and
// steps. Used by the completion recompute and the risk scorer, which always
// re-read persisted state instead of trusting request-local copies.
func (r *SessionRepository) FindWithTemplate(ctx context.Context, id string) (*models.SessionWithTemplate, error) {
	const query = `SELECT s.id, s.organization_id, s.template_id, s.client_id, s.project_id, s.status,
       s.completion_percentage, s.token, s.expires_at, s.created_at, s.updated_at,
       t.name AS template_name, t.steps AS template_steps
FROM onboarding_sessions s
JOIN onboarding_templates t ON t.id = s.template_id
WHERE s.id = $1`
	var session models.SessionWithTemplate
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateStatus writes a new status and bumps updated_at. Transition legality
// is enforced in the service layer before this is called.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE onboarding_sessions SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRowsAffected(result, "session")
}

// UpdateCompletion persists a freshly recomputed completion percentage.
func (r *SessionRepository) UpdateCompletion(ctx context.Context, id string, percentage int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE onboarding_sessions SET completion_percentage = $1, updated_at = $2 WHERE id = $3`,
		percentage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update session completion: %w", err)
	}
	return requireRowsAffected(result, "session")
}
