package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
)

type stubProjectRepo struct {
	projects map[string]*models.Project
	linked   map[string]string
}

func newStubProjectRepo() *stubProjectRepo {
	return &stubProjectRepo{projects: make(map[string]*models.Project), linked: make(map[string]string)}
}

func (s *stubProjectRepo) Create(_ context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	stored := *project
	s.projects[project.ID] = &stored
	return nil
}

func (s *stubProjectRepo) FindByID(_ context.Context, id, organizationID string) (*models.Project, error) {
	project, ok := s.projects[id]
	if !ok || project.OrganizationID != organizationID {
		return nil, sql.ErrNoRows
	}
	found := *project
	return &found, nil
}

func (s *stubProjectRepo) List(_ context.Context, organizationID string) ([]models.ProjectListItem, error) {
	var out []models.ProjectListItem
	for _, project := range s.projects {
		if project.OrganizationID == organizationID {
			out = append(out, models.ProjectListItem{ID: project.ID, Name: project.Name})
		}
	}
	return out, nil
}

func (s *stubProjectRepo) LinkSession(_ context.Context, id, organizationID, sessionID string) error {
	project, ok := s.projects[id]
	if !ok || project.OrganizationID != organizationID {
		return sql.ErrNoRows
	}
	project.OnboardingSessionID = &sessionID
	s.linked[id] = sessionID
	return nil
}

type stubActiveTemplateFinder struct {
	template *models.Template
	err      error
}

func (s *stubActiveTemplateFinder) GetActive(_ context.Context, _, _ string) (*models.Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.template, nil
}

type stubSessionIssuer struct {
	created []*models.Session
	err     error
}

func (s *stubSessionIssuer) CreateSession(_ context.Context, organizationID, templateID, clientID string, projectID *string) (*models.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	session := &models.Session{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		TemplateID:     templateID,
		ClientID:       clientID,
		ProjectID:      projectID,
		Status:         models.SessionStatusDraft,
		Token:          uuid.NewString(),
	}
	s.created = append(s.created, session)
	return session, nil
}

func newProjectService(projects *stubProjectRepo, templates *stubActiveTemplateFinder, sessions *stubSessionIssuer) (*ProjectService, *stubAuditRepo) {
	audit := &stubAuditRepo{}
	svc := NewProjectService(projects, templates, sessions, audit, nil, zap.NewNop(),
		ProjectServiceConfig{PublicURL: "https://app.test"})
	return svc, audit
}

func TestCreateProjectIssuesLinkedSession(t *testing.T) {
	projects := newStubProjectRepo()
	templates := &stubActiveTemplateFinder{template: &models.Template{ID: "tpl-1", ServiceType: "web-design"}}
	sessions := &stubSessionIssuer{}
	svc, audit := newProjectService(projects, templates, sessions)

	result, err := svc.Create(context.Background(), "org-1", dto.CreateProjectRequest{
		ClientID:    "client-1",
		Name:        "Acme relaunch",
		ServiceType: "web-design",
	}, &models.JWTClaims{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusOnboarding, result.Project.Status)
	require.NotNil(t, result.Project.OnboardingSessionID)
	assert.Equal(t, result.Session.ID, *result.Project.OnboardingSessionID)
	assert.Equal(t, "tpl-1", result.Session.TemplateID)
	require.NotNil(t, result.Session.ProjectID)
	assert.Equal(t, result.Project.ID, *result.Session.ProjectID)
	assert.Equal(t, "https://app.test/onboarding/"+result.Session.Token, result.OnboardingURL)

	assert.Equal(t, result.Session.ID, projects.linked[result.Project.ID])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionProjectCreated, audit.logs[0].Action)
}

func TestCreateProjectFailsBeforeWritesWithoutActiveTemplate(t *testing.T) {
	projects := newStubProjectRepo()
	templates := &stubActiveTemplateFinder{err: appErrors.Clone(appErrors.ErrConfiguration,
		"no active template found for service type: video-production")}
	sessions := &stubSessionIssuer{}
	svc, _ := newProjectService(projects, templates, sessions)

	_, err := svc.Create(context.Background(), "org-1", dto.CreateProjectRequest{
		ClientID:    "client-1",
		Name:        "Acme video",
		ServiceType: "video-production",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErrors.FromError(err).Code)

	// Nothing was persisted: the lookup runs before any insert.
	assert.Empty(t, projects.projects)
	assert.Empty(t, sessions.created)
}

func TestCreateProjectValidatesPayload(t *testing.T) {
	svc, _ := newProjectService(newStubProjectRepo(), &stubActiveTemplateFinder{}, &stubSessionIssuer{})

	_, err := svc.Create(context.Background(), "org-1", dto.CreateProjectRequest{Name: "no client"}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGetProjectIsOrgScoped(t *testing.T) {
	projects := newStubProjectRepo()
	_ = projects.Create(context.Background(), &models.Project{ID: "proj-1", OrganizationID: "org-1", Name: "Acme"})
	svc, _ := newProjectService(projects, &stubActiveTemplateFinder{}, &stubSessionIssuer{})

	_, err := svc.Get(context.Background(), "proj-1", "org-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
