package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atelierhq/onboarding-api/internal/events"
	"github.com/atelierhq/onboarding-api/internal/models"
	"github.com/atelierhq/onboarding-api/internal/repository"
)

type automationProjectRepository interface {
	ProvisionMilestones(ctx context.Context, projectID string, plan []repository.MilestonePlan, now time.Time) (int, int, error)
}

type automationAuditLogger interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Default milestone blueprint materialized when onboarding completes. Due
// dates run on two-week sprints from the completion moment.
var defaultMilestonePlan = []repository.MilestonePlan{
	{
		Title:       "Discovery & Analysis",
		Description: "Review onboarding data and conduct deep-dive analysis",
		SortOrder:   1,
		Tasks: []string{
			"Review onboarding responses",
			"Identify key requirements",
			"Create project brief",
		},
	},
	{
		Title:       "Design & Architecture",
		Description: "Create wireframes, prototypes, and technical architecture",
		SortOrder:   2,
		Tasks: []string{
			"Create wireframes",
			"Design system setup",
			"Technical architecture document",
		},
	},
	{
		Title:       "Development Sprint 1",
		Description: "Core feature implementation",
		SortOrder:   3,
		Tasks: []string{
			"Set up project repository",
			"Implement core features",
			"Internal QA review",
		},
	},
	{
		Title:       "Client Review & Launch",
		Description: "Client UAT, final revisions, and deployment",
		SortOrder:   4,
		Tasks: []string{
			"Deploy to staging",
			"Client review session",
			"Final revisions",
			"Production deployment",
		},
	},
}

// AutomationService reacts to session lifecycle events with downstream side
// effects. Handlers are registered against the bus once, at the composition
// root.
type AutomationService struct {
	projects automationProjectRepository
	audit    automationAuditLogger
	logger   *zap.Logger
	now      func() time.Time
}

// NewAutomationService constructs an AutomationService.
func NewAutomationService(projects automationProjectRepository, audit automationAuditLogger, logger *zap.Logger) *AutomationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutomationService{projects: projects, audit: audit, logger: logger, now: time.Now}
}

// Register subscribes all automation handlers on the bus.
func (s *AutomationService) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicSessionCompleted, s.HandleSessionCompleted)
}

// HandleSessionCompleted provisions the milestone blueprint for the linked
// project. Provisioning runs in one transaction and is idempotent per
// project, so a re-emitted completion event cannot duplicate milestones.
func (s *AutomationService) HandleSessionCompleted(ctx context.Context, payload interface{}) error {
	event, ok := payload.(events.SessionPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", payload)
	}

	if event.ProjectID == nil || *event.ProjectID == "" {
		s.logger.Warn("session completed without a project, skipping milestone creation",
			zap.String("session_id", event.SessionID))
		return nil
	}

	now := s.now().UTC()
	milestones, tasks, err := s.projects.ProvisionMilestones(ctx, *event.ProjectID, defaultMilestonePlan, now)
	if err != nil {
		return fmt.Errorf("provision milestones for project %s: %w", *event.ProjectID, err)
	}
	if milestones == 0 {
		s.logger.Info("milestones already provisioned, skipping",
			zap.String("project_id", *event.ProjectID))
		return nil
	}

	details := fmt.Sprintf("Auto-created %d milestones and %d tasks", milestones, tasks)
	log := &models.AuditLog{
		OrganizationID: &event.OrganizationID,
		Action:         models.AuditActionMilestonesCreated,
		Entity:         "project",
		EntityID:       event.ProjectID,
		Details:        &details,
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record provisioning audit log", zap.Error(err))
	}
	return nil
}
