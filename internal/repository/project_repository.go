package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierhq/onboarding-api/internal/models"
)

// ProjectRepository persists projects and their provisioned milestones/tasks.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project row.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	const query = `INSERT INTO projects (id, organization_id, client_id, name, service_type, status, onboarding_session_id, created_at, updated_at)
VALUES (:id, :organization_id, :client_id, :name, :service_type, :status, :onboarding_session_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// FindByID fetches a project scoped to its organization.
func (r *ProjectRepository) FindByID(ctx context.Context, id, organizationID string) (*models.Project, error) {
	const query = `SELECT id, organization_id, client_id, name, service_type, status, onboarding_session_id, created_at, updated_at
FROM projects WHERE id = $1 AND organization_id = $2`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id, organizationID); err != nil {
		return nil, err
	}
	return &project, nil
}

// List returns the admin project listing joined with client and session state.
func (r *ProjectRepository) List(ctx context.Context, organizationID string) ([]models.ProjectListItem, error) {
	const query = `SELECT p.id, p.name, p.service_type, p.status, p.client_id, c.company_name AS client_company,
       p.onboarding_session_id, s.status AS session_status, s.completion_percentage, p.created_at
FROM projects p
LEFT JOIN clients c ON c.id = p.client_id
LEFT JOIN onboarding_sessions s ON s.id = p.onboarding_session_id
WHERE p.organization_id = $1
ORDER BY p.created_at DESC`
	var items []models.ProjectListItem
	if err := r.db.SelectContext(ctx, &items, query, organizationID); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return items, nil
}

// LinkSession stores the onboarding session back-reference.
func (r *ProjectRepository) LinkSession(ctx context.Context, id, organizationID, sessionID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET onboarding_session_id = $1, updated_at = $2 WHERE id = $3 AND organization_id = $4`,
		sessionID, time.Now().UTC(), id, organizationID)
	if err != nil {
		return fmt.Errorf("link session to project: %w", err)
	}
	return requireRowsAffected(result, "project")
}

// MilestonePlan is a blueprint entry materialized on session completion.
type MilestonePlan struct {
	Title       string
	Description string
	SortOrder   int
	Tasks       []string
}

// ProvisionMilestones moves the project to IN_PROGRESS and materializes the
// blueprint into milestone and task rows within a single transaction. The
// whole call is idempotent per project: if any milestone already exists the
// plan has been provisioned before and the call is a no-op, so re-emitted
// completion events cannot duplicate rows.
func (r *ProjectRepository) ProvisionMilestones(ctx context.Context, projectID string, plan []MilestonePlan, now time.Time) (int, int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin provisioning tx: %w", err)
	}

	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM milestones WHERE project_id = $1`, projectID); err != nil {
		_ = tx.Rollback()
		return 0, 0, fmt.Errorf("count existing milestones: %w", err)
	}
	if existing > 0 {
		_ = tx.Rollback()
		return 0, 0, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3`,
		models.ProjectStatusInProgress, now, projectID); err != nil {
		_ = tx.Rollback()
		return 0, 0, fmt.Errorf("update project status: %w", err)
	}

	milestonesCreated := 0
	tasksCreated := 0
	for _, ms := range plan {
		milestone := models.Milestone{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			Title:       ms.Title,
			Description: ms.Description,
			DueDate:     now.AddDate(0, 0, 14*ms.SortOrder),
			SortOrder:   ms.SortOrder,
			CreatedAt:   now,
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO milestones (id, project_id, title, description, due_date, sort_order, created_at)
VALUES (:id, :project_id, :title, :description, :due_date, :sort_order, :created_at)`, milestone); err != nil {
			_ = tx.Rollback()
			return 0, 0, fmt.Errorf("insert milestone: %w", err)
		}
		milestonesCreated++

		for i, title := range ms.Tasks {
			task := models.Task{
				ID:          uuid.NewString(),
				ProjectID:   projectID,
				MilestoneID: milestone.ID,
				Title:       title,
				SortOrder:   i + 1,
				CreatedAt:   now,
			}
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO tasks (id, project_id, milestone_id, title, sort_order, created_at)
VALUES (:id, :project_id, :milestone_id, :title, :sort_order, :created_at)`, task); err != nil {
				_ = tx.Rollback()
				return 0, 0, fmt.Errorf("insert task: %w", err)
			}
			tasksCreated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit provisioning tx: %w", err)
	}
	return milestonesCreated, tasksCreated, nil
}
