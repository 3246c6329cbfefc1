package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/events"
	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
)

type onboardingSessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id, organizationID string) (*models.Session, error)
	FindByToken(ctx context.Context, token string) (*models.SessionWithTemplate, error)
	FindWithTemplate(ctx context.Context, id string) (*models.SessionWithTemplate, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	UpdateCompletion(ctx context.Context, id string, percentage int) error
}

type onboardingResponseRepository interface {
	UpsertStep(ctx context.Context, sessionID, stepID string, responses []models.Response) error
	ListBySession(ctx context.Context, sessionID string) ([]models.Response, error)
}

type onboardingAuditLogger interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type eventEmitter interface {
	Emit(ctx context.Context, topic events.Topic, payload interface{})
}

// OnboardingServiceConfig tunes session lifecycle behaviour.
type OnboardingServiceConfig struct {
	SessionTTL time.Duration
}

// OnboardingService owns the session lifecycle: token issuance, the wizard
// read/write flow, the status state machine, and completion recomputation.
type OnboardingService struct {
	sessions   onboardingSessionRepository
	responses  onboardingResponseRepository
	audit      onboardingAuditLogger
	bus        eventEmitter
	logger     *zap.Logger
	sessionTTL time.Duration
}

// NewOnboardingService constructs an OnboardingService.
func NewOnboardingService(sessions onboardingSessionRepository, responses onboardingResponseRepository, audit onboardingAuditLogger, bus eventEmitter, logger *zap.Logger, cfg OnboardingServiceConfig) *OnboardingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &OnboardingService{
		sessions:   sessions,
		responses:  responses,
		audit:      audit,
		bus:        bus,
		logger:     logger,
		sessionTTL: ttl,
	}
}

// CreateSession issues a DRAFT session with a fresh random token. The token
// is the wizard's only credential, so it must not be guessable; a UUIDv4
// carries 122 bits of entropy.
func (s *OnboardingService) CreateSession(ctx context.Context, organizationID, templateID, clientID string, projectID *string) (*models.Session, error) {
	session := &models.Session{
		ID:                   uuid.NewString(),
		OrganizationID:       organizationID,
		TemplateID:           templateID,
		ClientID:             clientID,
		ProjectID:            projectID,
		Status:               models.SessionStatusDraft,
		CompletionPercentage: 0,
		Token:                uuid.NewString(),
		ExpiresAt:            time.Now().UTC().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.bus.Emit(ctx, events.TopicSessionCreated, events.SessionPayload{
		SessionID:      session.ID,
		OrganizationID: session.OrganizationID,
		ProjectID:      session.ProjectID,
	})
	return session, nil
}

// resolveToken loads a session by token and applies the shared wizard guards.
// Unknown and cross-tenant tokens are indistinguishable by design.
func (s *OnboardingService) resolveToken(ctx context.Context, token string) (*models.SessionWithTemplate, error) {
	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invalid onboarding link")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	session.Expired = time.Now().UTC().After(session.ExpiresAt)
	if session.Expired {
		return nil, appErrors.ErrExpired
	}
	if session.Status.Locked() {
		return nil, appErrors.ErrLocked
	}
	return session, nil
}

// GetWizard returns the client-facing session payload for the wizard.
func (s *OnboardingService) GetWizard(ctx context.Context, token string) (*dto.WizardSession, error) {
	session, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	responses, err := s.responses.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responses")
	}

	entries := make([]dto.StepResponse, 0, len(responses))
	for _, r := range responses {
		entries = append(entries, dto.StepResponse{StepID: r.StepID, FieldID: r.FieldID, Value: r.Value})
	}

	return &dto.WizardSession{
		SessionID:            session.ID,
		TemplateName:         session.TemplateName,
		Steps:                session.TemplateSteps,
		Status:               session.Status,
		CompletionPercentage: session.CompletionPercentage,
		Responses:            entries,
	}, nil
}

// SaveStep persists a step's answers, advances DRAFT sessions to IN_PROGRESS,
// recomputes completion, and optionally submits the whole session.
func (s *OnboardingService) SaveStep(ctx context.Context, token string, req dto.SaveStepRequest) (*dto.SaveStepResponse, error) {
	session, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if req.StepID != "" && len(req.Responses) > 0 {
		rows := make([]models.Response, 0, len(req.Responses))
		for _, entry := range req.Responses {
			rows = append(rows, models.Response{FieldID: entry.FieldID, Value: entry.Value})
		}
		if err := s.responses.UpsertStep(ctx, session.ID, req.StepID, rows); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save responses")
		}
		for _, entry := range req.Responses {
			s.bus.Emit(ctx, events.TopicResponseSaved, events.ResponsePayload{
				SessionID: session.ID,
				StepID:    req.StepID,
				FieldID:   entry.FieldID,
			})
		}
	}

	status := session.Status
	if status == models.SessionStatusDraft {
		if err := s.transition(ctx, session.ID, status, models.SessionStatusInProgress); err != nil {
			return nil, err
		}
		status = models.SessionStatusInProgress
		s.bus.Emit(ctx, events.TopicSessionStarted, events.SessionPayload{
			SessionID:      session.ID,
			OrganizationID: session.OrganizationID,
		})
	}

	completion, err := s.RecalculateCompletion(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	if req.Submit {
		if err := s.transition(ctx, session.ID, status, models.SessionStatusCompleted); err != nil {
			return nil, err
		}

		// The completion write and status transition are committed before the
		// fan-out, so a slow or failing automation handler cannot undo the
		// submission. Handlers are still awaited so side effects exist by the
		// time the client sees the response.
		s.bus.Emit(ctx, events.TopicSessionCompleted, events.SessionPayload{
			SessionID:      session.ID,
			OrganizationID: session.OrganizationID,
			ProjectID:      session.ProjectID,
		})

		s.writeAudit(ctx, session.OrganizationID, models.AuditActionSessionCompleted, "session", session.ID,
			fmt.Sprintf("Onboarding completed by client (%d%% filled)", completion))

		return &dto.SaveStepResponse{
			Status:               models.SessionStatusCompleted,
			CompletionPercentage: completion,
			Message:              "Thank you! Your onboarding has been submitted.",
		}, nil
	}

	return &dto.SaveStepResponse{Status: status, CompletionPercentage: completion}, nil
}

// RecalculateCompletion derives the 0-100 completion metric from required
// fields vs. filled responses and persists it onto the session. It is the
// single source of truth: always a full recompute from stored state, never an
// incremental patch, so concurrent saves cannot drift.
func (s *OnboardingService) RecalculateCompletion(ctx context.Context, sessionID string) (int, error) {
	session, err := s.sessions.FindWithTemplate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	required := session.TemplateSteps.RequiredFields()
	percentage := 100
	if len(required) > 0 {
		responses, err := s.responses.ListBySession(ctx, sessionID)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responses")
		}
		filled := countFilled(required, responses)
		percentage = int(math.Round(float64(filled) / float64(len(required)) * 100))
	}

	if err := s.sessions.UpdateCompletion(ctx, sessionID, percentage); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist completion")
	}
	return percentage, nil
}

// countFilled counts required pairs that have a non-empty answer. Only null
// and "" are unanswered; false and empty arrays count as filled.
func countFilled(required []models.RequiredFieldRef, responses []models.Response) int {
	answered := make(map[models.RequiredFieldRef]models.FieldValue, len(responses))
	for _, r := range responses {
		answered[models.RequiredFieldRef{StepID: r.StepID, FieldID: r.FieldID}] = r.Value
	}
	filled := 0
	for _, ref := range required {
		if value, ok := answered[ref]; ok && !value.IsEmpty() {
			filled++
		}
	}
	return filled
}

// GetSessionDetail returns the admin view of a session with its responses
// grouped by step.
func (s *OnboardingService) GetSessionDetail(ctx context.Context, sessionID, organizationID string) (*dto.SessionDetail, error) {
	session, err := s.sessions.FindByID(ctx, sessionID, organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	responses, err := s.responses.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responses")
	}

	grouped := make(map[string][]dto.ResponseEntry)
	for _, r := range responses {
		grouped[r.StepID] = append(grouped[r.StepID], dto.ResponseEntry{FieldID: r.FieldID, Value: r.Value})
	}

	return &dto.SessionDetail{Session: session, Responses: grouped}, nil
}

// Approve moves a completed session to APPROVED on behalf of an admin.
func (s *OnboardingService) Approve(ctx context.Context, sessionID, organizationID string, actor *models.JWTClaims) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID, organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if err := s.transition(ctx, session.ID, session.Status, models.SessionStatusApproved); err != nil {
		return nil, err
	}
	session.Status = models.SessionStatusApproved

	s.bus.Emit(ctx, events.TopicSessionApproved, events.SessionPayload{
		SessionID:      session.ID,
		OrganizationID: session.OrganizationID,
		ProjectID:      session.ProjectID,
	})

	var userID string
	if actor != nil {
		userID = actor.UserID
	}
	s.writeAuditBy(ctx, session.OrganizationID, userID, models.AuditActionSessionApproved, "session", session.ID, "Session approved by admin")

	return session, nil
}

// transition validates the status change against the state machine before
// writing. Same-status writes pass so the first-write race stays harmless.
func (s *OnboardingService) transition(ctx context.Context, sessionID string, from, to models.SessionStatus) error {
	if !models.CanTransition(from, to) {
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move session from %s to %s", from, to))
	}
	if from == to {
		return nil
	}
	if err := s.sessions.UpdateStatus(ctx, sessionID, to); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}
	return nil
}

func (s *OnboardingService) writeAudit(ctx context.Context, organizationID, action, entity, entityID, details string) {
	s.writeAuditBy(ctx, organizationID, "", action, entity, entityID, details)
}

func (s *OnboardingService) writeAuditBy(ctx context.Context, organizationID, userID, action, entity, entityID, details string) {
	log := &models.AuditLog{
		OrganizationID: &organizationID,
		Action:         action,
		Entity:         entity,
		EntityID:       &entityID,
		Details:        &details,
	}
	if userID != "" {
		log.UserID = &userID
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
