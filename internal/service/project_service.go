package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
)

type projectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id, organizationID string) (*models.Project, error)
	List(ctx context.Context, organizationID string) ([]models.ProjectListItem, error)
	LinkSession(ctx context.Context, id, organizationID, sessionID string) error
}

type activeTemplateFinder interface {
	GetActive(ctx context.Context, organizationID, serviceType string) (*models.Template, error)
}

type sessionIssuer interface {
	CreateSession(ctx context.Context, organizationID, templateID, clientID string, projectID *string) (*models.Session, error)
}

type projectAuditLogger interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// ProjectServiceConfig carries the public base URL used to build wizard links.
type ProjectServiceConfig struct {
	PublicURL string
}

// ProjectService creates projects together with their onboarding sessions and
// serves the admin project listing.
type ProjectService struct {
	projects  projectRepository
	templates activeTemplateFinder
	sessions  sessionIssuer
	audit     projectAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
	publicURL string
}

// NewProjectService constructs a ProjectService.
func NewProjectService(projects projectRepository, templates activeTemplateFinder, sessions sessionIssuer, audit projectAuditLogger, validate *validator.Validate, logger *zap.Logger, cfg ProjectServiceConfig) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{
		projects:  projects,
		templates: templates,
		sessions:  sessions,
		audit:     audit,
		validator: validate,
		logger:    logger,
		publicURL: cfg.PublicURL,
	}
}

// Create resolves the active template for the service type, then creates the
// project and its onboarding session and links the two. The template lookup
// runs first so a misconfigured service type fails before any row is written.
func (s *ProjectService) Create(ctx context.Context, organizationID string, req dto.CreateProjectRequest, actor *models.JWTClaims) (*dto.CreateProjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}

	template, err := s.templates.GetActive(ctx, organizationID, req.ServiceType)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		OrganizationID: organizationID,
		ClientID:       req.ClientID,
		Name:           req.Name,
		ServiceType:    req.ServiceType,
		Status:         models.ProjectStatusOnboarding,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}

	session, err := s.sessions.CreateSession(ctx, organizationID, template.ID, req.ClientID, &project.ID)
	if err != nil {
		return nil, err
	}

	if err := s.projects.LinkSession(ctx, project.ID, organizationID, session.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link session")
	}
	project.OnboardingSessionID = &session.ID

	s.writeAudit(ctx, organizationID, actor, project.ID,
		fmt.Sprintf("Created project %q with onboarding session", project.Name))

	return &dto.CreateProjectResponse{
		Project:       project,
		Session:       session,
		OnboardingURL: fmt.Sprintf("%s/onboarding/%s", s.publicURL, session.Token),
	}, nil
}

// Get fetches a project scoped to the caller's organization.
func (s *ProjectService) Get(ctx context.Context, id, organizationID string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id, organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

// List returns the admin project listing.
func (s *ProjectService) List(ctx context.Context, organizationID string) ([]models.ProjectListItem, error) {
	items, err := s.projects.List(ctx, organizationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	return items, nil
}

func (s *ProjectService) writeAudit(ctx context.Context, organizationID string, actor *models.JWTClaims, projectID, details string) {
	log := &models.AuditLog{
		OrganizationID: &organizationID,
		Action:         models.AuditActionProjectCreated,
		Entity:         "project",
		EntityID:       &projectID,
		Details:        &details,
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err))
	}
}
