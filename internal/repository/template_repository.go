package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierhq/onboarding-api/internal/models"
)

// TemplateRepository persists versioned onboarding templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, organization_id, name, service_type, version, is_active, steps, created_at, updated_at`

// Create inserts a new template row.
func (r *TemplateRepository) Create(ctx context.Context, template *models.Template) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now
	const query = `INSERT INTO onboarding_templates (id, organization_id, name, service_type, version, is_active, steps, created_at, updated_at)
VALUES (:id, :organization_id, :name, :service_type, :version, :is_active, :steps, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// FindByID fetches a template scoped to its organization.
func (r *TemplateRepository) FindByID(ctx context.Context, id, organizationID string) (*models.Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM onboarding_templates WHERE id = $1 AND organization_id = $2`, templateColumns)
	var template models.Template
	if err := r.db.GetContext(ctx, &template, query, id, organizationID); err != nil {
		return nil, err
	}
	return &template, nil
}

// List returns all templates for an organization, most recently updated first.
func (r *TemplateRepository) List(ctx context.Context, organizationID string) ([]models.Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM onboarding_templates WHERE organization_id = $1 ORDER BY updated_at DESC`, templateColumns)
	var templates []models.Template
	if err := r.db.SelectContext(ctx, &templates, query, organizationID); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// FindActive returns the active template for a service type, highest version
// first in case the single-active convention has been violated.
func (r *TemplateRepository) FindActive(ctx context.Context, organizationID, serviceType string) (*models.Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM onboarding_templates
WHERE organization_id = $1 AND service_type = $2 AND is_active = TRUE
ORDER BY version DESC LIMIT 1`, templateColumns)
	var template models.Template
	if err := r.db.GetContext(ctx, &template, query, organizationID, serviceType); err != nil {
		return nil, err
	}
	return &template, nil
}

// Update applies an in-place edit. Used only for templates no session
// references yet; versioned edits go through CreateVersion.
func (r *TemplateRepository) Update(ctx context.Context, template *models.Template) error {
	template.UpdatedAt = time.Now().UTC()
	const query = `UPDATE onboarding_templates
SET name = :name, service_type = :service_type, steps = :steps, is_active = :is_active, updated_at = :updated_at
WHERE id = :id AND organization_id = :organization_id`
	result, err := r.db.NamedExecContext(ctx, query, template)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return requireRowsAffected(result, "template")
}

// CreateVersion deactivates the source template and inserts its clone with a
// bumped version inside one transaction.
func (r *TemplateRepository) CreateVersion(ctx context.Context, source *models.Template) (*models.Template, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin version tx: %w", err)
	}
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE onboarding_templates SET is_active = FALSE, updated_at = $1 WHERE id = $2 AND organization_id = $3`,
		now, source.ID, source.OrganizationID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("deactivate template: %w", err)
	}

	next := &models.Template{
		ID:             uuid.NewString(),
		OrganizationID: source.OrganizationID,
		Name:           source.Name,
		ServiceType:    source.ServiceType,
		Version:        source.Version + 1,
		IsActive:       true,
		Steps:          source.Steps,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	const insert = `INSERT INTO onboarding_templates (id, organization_id, name, service_type, version, is_active, steps, created_at, updated_at)
VALUES (:id, :organization_id, :name, :service_type, :version, :is_active, :steps, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, next); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("insert template version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit version tx: %w", err)
	}
	return next, nil
}

// Delete removes a template scoped to its organization.
func (r *TemplateRepository) Delete(ctx context.Context, id, organizationID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM onboarding_templates WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return requireRowsAffected(result, "template")
}
