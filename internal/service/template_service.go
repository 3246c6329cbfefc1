package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
)

type templateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	FindByID(ctx context.Context, id, organizationID string) (*models.Template, error)
	List(ctx context.Context, organizationID string) ([]models.Template, error)
	FindActive(ctx context.Context, organizationID, serviceType string) (*models.Template, error)
	Update(ctx context.Context, template *models.Template) error
	CreateVersion(ctx context.Context, source *models.Template) (*models.Template, error)
	Delete(ctx context.Context, id, organizationID string) error
}

type templateAuditLogger interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// TemplateServiceConfig tunes cache behaviour.
type TemplateServiceConfig struct {
	CacheTTL time.Duration
}

// TemplateService orchestrates the versioned template store. Templates are
// append-only once referenced: edits that matter to history go through
// versioning, never in-place mutation.
type TemplateService struct {
	repo      templateRepository
	audit     templateAuditLogger
	cache     *redis.Client
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewTemplateService constructs a TemplateService. The redis client is
// optional; without it every active-template lookup hits the database.
func NewTemplateService(repo templateRepository, audit templateAuditLogger, cache *redis.Client, validate *validator.Validate, logger *zap.Logger, cfg TemplateServiceConfig) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TemplateService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger, cacheTTL: ttl}
}

// Create inserts a version-1 template.
func (s *TemplateService) Create(ctx context.Context, organizationID string, req dto.CreateTemplateRequest, actor *models.JWTClaims) (*models.Template, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	template := &models.Template{
		OrganizationID: organizationID,
		Name:           req.Name,
		ServiceType:    req.ServiceType,
		Version:        1,
		IsActive:       isActive,
		Steps:          req.Steps,
	}
	if err := s.repo.Create(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}

	s.invalidateActive(ctx, organizationID, template.ServiceType)
	s.writeAudit(ctx, organizationID, actor, models.AuditActionTemplateCreated, template.ID,
		fmt.Sprintf("Created template: %s", template.Name))
	return template, nil
}

// Get fetches a template scoped to the caller's organization.
func (s *TemplateService) Get(ctx context.Context, id, organizationID string) (*models.Template, error) {
	template, err := s.repo.FindByID(ctx, id, organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return template, nil
}

// List returns all templates for the organization.
func (s *TemplateService) List(ctx context.Context, organizationID string) ([]models.Template, error) {
	templates, err := s.repo.List(ctx, organizationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// GetActive returns the active template for a service type, consulting the
// cache first. Sessions and risk state are never cached; templates change
// rarely and are safe to serve slightly stale.
func (s *TemplateService) GetActive(ctx context.Context, organizationID, serviceType string) (*models.Template, error) {
	key := activeTemplateKey(organizationID, serviceType)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached models.Template
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	template, err := s.repo.FindActive(ctx, organizationID, serviceType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfiguration,
				fmt.Sprintf("no active template found for service type: %s", serviceType))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active template")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(template); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache active template", zap.Error(err))
			}
		}
	}
	return template, nil
}

// Update edits a template in place, or cuts a new version when the request
// asks for one.
func (s *TemplateService) Update(ctx context.Context, id, organizationID string, req dto.UpdateTemplateRequest, actor *models.JWTClaims) (*models.Template, error) {
	existing, err := s.Get(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}

	if req.CreateVersion {
		next, err := s.repo.CreateVersion(ctx, existing)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to version template")
		}
		s.invalidateActive(ctx, organizationID, existing.ServiceType)
		s.writeAudit(ctx, organizationID, actor, models.AuditActionTemplateVersioned, next.ID,
			fmt.Sprintf("New version %d created from template %s", next.Version, id))
		return next, nil
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.ServiceType != "" {
		existing.ServiceType = req.ServiceType
	}
	if req.Steps != nil {
		existing.Steps = req.Steps
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update template")
	}

	s.invalidateActive(ctx, organizationID, existing.ServiceType)
	s.writeAudit(ctx, organizationID, actor, models.AuditActionTemplateUpdated, existing.ID, "")
	return existing, nil
}

// Delete removes a template.
func (s *TemplateService) Delete(ctx context.Context, id, organizationID string, actor *models.JWTClaims) error {
	existing, err := s.Get(ctx, id, organizationID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, organizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	s.invalidateActive(ctx, organizationID, existing.ServiceType)
	s.writeAudit(ctx, organizationID, actor, models.AuditActionTemplateDeleted, id,
		fmt.Sprintf("Deleted template: %s", existing.Name))
	return nil
}

func (s *TemplateService) invalidateActive(ctx context.Context, organizationID, serviceType string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, activeTemplateKey(organizationID, serviceType)).Err(); err != nil {
		s.logger.Warn("failed to invalidate template cache", zap.Error(err))
	}
}

func activeTemplateKey(organizationID, serviceType string) string {
	return fmt.Sprintf("templates:active:%s:%s", organizationID, serviceType)
}

func (s *TemplateService) writeAudit(ctx context.Context, organizationID string, actor *models.JWTClaims, action, entityID, details string) {
	log := &models.AuditLog{
		OrganizationID: &organizationID,
		Action:         action,
		Entity:         "template",
		EntityID:       &entityID,
	}
	if details != "" {
		log.Details = &details
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
