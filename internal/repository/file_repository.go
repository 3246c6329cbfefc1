package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelierhq/onboarding-api/internal/models"
)

// FileRepository records upload metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts an upload record.
func (r *FileRepository) Create(ctx context.Context, file *models.FileUpload) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	file.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO file_uploads (id, organization_id, session_id, file_name, url, file_type, size_bytes, created_at)
VALUES (:id, :organization_id, :session_id, :file_name, :url, :file_type, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("insert file upload: %w", err)
	}
	return nil
}

// CountBySession counts uploads linked to a session. The risk scorer compares
// this aggregate against the number of required file fields.
func (r *FileRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM file_uploads WHERE session_id = $1`, sessionID); err != nil {
		return 0, fmt.Errorf("count session uploads: %w", err)
	}
	return count, nil
}

// ListBySession returns upload records for a session.
func (r *FileRepository) ListBySession(ctx context.Context, sessionID string) ([]models.FileUpload, error) {
	const query = `SELECT id, organization_id, session_id, file_name, url, file_type, size_bytes, created_at
FROM file_uploads WHERE session_id = $1 ORDER BY created_at ASC`
	var files []models.FileUpload
	if err := r.db.SelectContext(ctx, &files, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session uploads: %w", err)
	}
	return files, nil
}
