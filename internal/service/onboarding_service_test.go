package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/events"
	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
)

type stubSessionRepo struct {
	session       *models.SessionWithTemplate
	created       []*models.Session
	statusWrites  []models.SessionStatus
	completions   []int
	findErr       error
	statusErr     error
	completionErr error
}

func (s *stubSessionRepo) Create(_ context.Context, session *models.Session) error {
	s.created = append(s.created, session)
	return nil
}

func (s *stubSessionRepo) FindByID(_ context.Context, id, organizationID string) (*models.Session, error) {
	if s.session == nil || s.session.ID != id || s.session.OrganizationID != organizationID {
		return nil, sql.ErrNoRows
	}
	found := s.session.Session
	return &found, nil
}

func (s *stubSessionRepo) FindByToken(_ context.Context, token string) (*models.SessionWithTemplate, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.session == nil || s.session.Token != token {
		return nil, sql.ErrNoRows
	}
	return s.session, nil
}

func (s *stubSessionRepo) FindWithTemplate(_ context.Context, id string) (*models.SessionWithTemplate, error) {
	if s.session == nil || s.session.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.session, nil
}

func (s *stubSessionRepo) UpdateStatus(_ context.Context, id string, status models.SessionStatus) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	s.statusWrites = append(s.statusWrites, status)
	if s.session != nil && s.session.ID == id {
		s.session.Status = status
	}
	return nil
}

func (s *stubSessionRepo) UpdateCompletion(_ context.Context, id string, percentage int) error {
	if s.completionErr != nil {
		return s.completionErr
	}
	s.completions = append(s.completions, percentage)
	if s.session != nil && s.session.ID == id {
		s.session.CompletionPercentage = percentage
	}
	return nil
}

type stubResponseRepo struct {
	rows      []models.Response
	upserts   int
	upsertErr error
}

func (s *stubResponseRepo) UpsertStep(_ context.Context, sessionID, stepID string, responses []models.Response) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	for _, incoming := range responses {
		replaced := false
		for i, existing := range s.rows {
			if existing.StepID == stepID && existing.FieldID == incoming.FieldID {
				s.rows[i].Value = incoming.Value
				replaced = true
				break
			}
		}
		if !replaced {
			s.rows = append(s.rows, models.Response{
				SessionID: sessionID,
				StepID:    stepID,
				FieldID:   incoming.FieldID,
				Value:     incoming.Value,
			})
		}
	}
	return nil
}

func (s *stubResponseRepo) ListBySession(_ context.Context, _ string) ([]models.Response, error) {
	return s.rows, nil
}

type stubAuditRepo struct {
	logs []*models.AuditLog
}

func (s *stubAuditRepo) Create(_ context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

type recordedEvent struct {
	topic   events.Topic
	payload interface{}
}

type stubBus struct {
	emitted []recordedEvent
}

func (s *stubBus) Emit(_ context.Context, topic events.Topic, payload interface{}) {
	s.emitted = append(s.emitted, recordedEvent{topic: topic, payload: payload})
}

func (s *stubBus) topics() []events.Topic {
	out := make([]events.Topic, 0, len(s.emitted))
	for _, e := range s.emitted {
		out = append(out, e.topic)
	}
	return out
}

func twoFieldTemplate() models.TemplateSteps {
	return models.TemplateSteps{
		{
			ID:    "step-1",
			Title: "Basics",
			Fields: []models.TemplateField{
				{ID: "company", Label: "Company name", Type: models.FieldTypeText, Required: true},
				{ID: "budget", Label: "Budget", Type: models.FieldTypeNumber, Required: true},
				{ID: "notes", Label: "Notes", Type: models.FieldTypeTextarea},
			},
		},
	}
}

func activeSession(status models.SessionStatus) *models.SessionWithTemplate {
	return &models.SessionWithTemplate{
		Session: models.Session{
			ID:             "sess-1",
			OrganizationID: "org-1",
			TemplateID:     "tpl-1",
			ClientID:       "client-1",
			Status:         status,
			Token:          "token-1",
			ExpiresAt:      time.Now().UTC().Add(24 * time.Hour),
			CreatedAt:      time.Now().UTC(),
		},
		TemplateName:  "Web Design Intake",
		TemplateSteps: twoFieldTemplate(),
	}
}

func newOnboardingService(sessions *stubSessionRepo, responses *stubResponseRepo, audit *stubAuditRepo, bus *stubBus) *OnboardingService {
	return NewOnboardingService(sessions, responses, audit, bus, zap.NewNop(), OnboardingServiceConfig{SessionTTL: 14 * 24 * time.Hour})
}

func TestCreateSessionIssuesDraftWithToken(t *testing.T) {
	sessions := &stubSessionRepo{}
	bus := &stubBus{}
	svc := newOnboardingService(sessions, &stubResponseRepo{}, &stubAuditRepo{}, bus)

	projectID := "proj-1"
	session, err := svc.CreateSession(context.Background(), "org-1", "tpl-1", "client-1", &projectID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusDraft, session.Status)
	assert.Equal(t, 0, session.CompletionPercentage)
	assert.NotEmpty(t, session.Token)
	assert.NotEqual(t, session.ID, session.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(14*24*time.Hour), session.ExpiresAt, time.Minute)

	require.Len(t, bus.emitted, 1)
	assert.Equal(t, events.TopicSessionCreated, bus.emitted[0].topic)
	payload := bus.emitted[0].payload.(events.SessionPayload)
	assert.Equal(t, session.ID, payload.SessionID)
	require.NotNil(t, payload.ProjectID)
	assert.Equal(t, "proj-1", *payload.ProjectID)
}

func TestGetWizardUnknownToken(t *testing.T) {
	svc := newOnboardingService(&stubSessionRepo{}, &stubResponseRepo{}, &stubAuditRepo{}, &stubBus{})

	_, err := svc.GetWizard(context.Background(), "no-such-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGetWizardExpiredToken(t *testing.T) {
	session := activeSession(models.SessionStatusInProgress)
	session.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	svc := newOnboardingService(&stubSessionRepo{session: session}, &stubResponseRepo{}, &stubAuditRepo{}, &stubBus{})

	_, err := svc.GetWizard(context.Background(), "token-1")
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrExpired.Code, typed.Code)
	assert.Equal(t, 410, typed.Status)
}

func TestSaveStepLockedAfterSubmission(t *testing.T) {
	for _, status := range []models.SessionStatus{models.SessionStatusCompleted, models.SessionStatusApproved} {
		svc := newOnboardingService(&stubSessionRepo{session: activeSession(status)}, &stubResponseRepo{}, &stubAuditRepo{}, &stubBus{})

		_, err := svc.SaveStep(context.Background(), "token-1", dto.SaveStepRequest{
			StepID:    "step-1",
			Responses: []dto.ResponseEntry{{FieldID: "company", Value: models.StringValue("Acme")}},
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrLocked.Code, appErrors.FromError(err).Code)
	}
}

func TestSaveStepAdvancesDraftAndRecomputes(t *testing.T) {
	sessions := &stubSessionRepo{session: activeSession(models.SessionStatusDraft)}
	responses := &stubResponseRepo{}
	bus := &stubBus{}
	svc := newOnboardingService(sessions, responses, &stubAuditRepo{}, bus)

	result, err := svc.SaveStep(context.Background(), "token-1", dto.SaveStepRequest{
		StepID:    "step-1",
		Responses: []dto.ResponseEntry{{FieldID: "company", Value: models.StringValue("Acme")}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusInProgress, result.Status)
	assert.Equal(t, 50, result.CompletionPercentage)
	assert.Empty(t, result.Message)
	assert.Equal(t, []models.SessionStatus{models.SessionStatusInProgress}, sessions.statusWrites)
	assert.Contains(t, bus.topics(), events.TopicSessionStarted)
	assert.Contains(t, bus.topics(), events.TopicResponseSaved)
	assert.NotContains(t, bus.topics(), events.TopicSessionCompleted)
}

func TestSaveStepIsIdempotent(t *testing.T) {
	sessions := &stubSessionRepo{session: activeSession(models.SessionStatusInProgress)}
	responses := &stubResponseRepo{}
	svc := newOnboardingService(sessions, responses, &stubAuditRepo{}, &stubBus{})

	req := dto.SaveStepRequest{
		StepID:    "step-1",
		Responses: []dto.ResponseEntry{{FieldID: "company", Value: models.StringValue("Acme")}},
	}
	first, err := svc.SaveStep(context.Background(), "token-1", req)
	require.NoError(t, err)
	second, err := svc.SaveStep(context.Background(), "token-1", req)
	require.NoError(t, err)

	assert.Equal(t, first.CompletionPercentage, second.CompletionPercentage)
	assert.Len(t, responses.rows, 1)
}

func TestSaveStepSubmitCompletesSession(t *testing.T) {
	sessions := &stubSessionRepo{session: activeSession(models.SessionStatusInProgress)}
	responses := &stubResponseRepo{rows: []models.Response{
		{SessionID: "sess-1", StepID: "step-1", FieldID: "company", Value: models.StringValue("Acme")},
	}}
	audit := &stubAuditRepo{}
	bus := &stubBus{}
	svc := newOnboardingService(sessions, responses, audit, bus)

	result, err := svc.SaveStep(context.Background(), "token-1", dto.SaveStepRequest{
		StepID:    "step-1",
		Responses: []dto.ResponseEntry{{FieldID: "budget", Value: models.NumberValue(25000)}},
		Submit:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, result.Status)
	assert.Equal(t, 100, result.CompletionPercentage)
	assert.Equal(t, "Thank you! Your onboarding has been submitted.", result.Message)
	assert.Contains(t, bus.topics(), events.TopicSessionCompleted)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSessionCompleted, audit.logs[0].Action)
}

func TestRecalculateCompletionWithoutRequiredFields(t *testing.T) {
	session := activeSession(models.SessionStatusInProgress)
	session.TemplateSteps = models.TemplateSteps{{ID: "step-1", Title: "Optional", Fields: []models.TemplateField{
		{ID: "notes", Label: "Notes", Type: models.FieldTypeTextarea},
	}}}
	sessions := &stubSessionRepo{session: session}
	svc := newOnboardingService(sessions, &stubResponseRepo{}, &stubAuditRepo{}, &stubBus{})

	completion, err := svc.RecalculateCompletion(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 100, completion)
	assert.Equal(t, []int{100}, sessions.completions)
}

func TestCountFilledTreatsFalseAndEmptyArrayAsAnswered(t *testing.T) {
	required := []models.RequiredFieldRef{
		{StepID: "s", FieldID: "bool"},
		{StepID: "s", FieldID: "multi"},
		{StepID: "s", FieldID: "blank"},
		{StepID: "s", FieldID: "null"},
	}
	responses := []models.Response{
		{StepID: "s", FieldID: "bool", Value: models.BoolValue(false)},
		{StepID: "s", FieldID: "multi", Value: models.StringsValue([]string{})},
		{StepID: "s", FieldID: "blank", Value: models.StringValue("")},
		{StepID: "s", FieldID: "null", Value: models.NullValue()},
	}
	assert.Equal(t, 2, countFilled(required, responses))
}

func TestApproveRequiresCompletedSession(t *testing.T) {
	sessions := &stubSessionRepo{session: activeSession(models.SessionStatusInProgress)}
	svc := newOnboardingService(sessions, &stubResponseRepo{}, &stubAuditRepo{}, &stubBus{})

	_, err := svc.Approve(context.Background(), "sess-1", "org-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, sessions.statusWrites)
}

func TestApproveCompletedSession(t *testing.T) {
	sessions := &stubSessionRepo{session: activeSession(models.SessionStatusCompleted)}
	audit := &stubAuditRepo{}
	bus := &stubBus{}
	svc := newOnboardingService(sessions, &stubResponseRepo{}, audit, bus)

	actor := &models.JWTClaims{UserID: "user-1", OrganizationID: "org-1"}
	session, err := svc.Approve(context.Background(), "sess-1", "org-1", actor)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusApproved, session.Status)
	assert.Contains(t, bus.topics(), events.TopicSessionApproved)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSessionApproved, audit.logs[0].Action)
	require.NotNil(t, audit.logs[0].UserID)
	assert.Equal(t, "user-1", *audit.logs[0].UserID)
}

func TestGetSessionDetailGroupsByStep(t *testing.T) {
	sessions := &stubSessionRepo{session: activeSession(models.SessionStatusCompleted)}
	responses := &stubResponseRepo{rows: []models.Response{
		{SessionID: "sess-1", StepID: "step-1", FieldID: "company", Value: models.StringValue("Acme")},
		{SessionID: "sess-1", StepID: "step-1", FieldID: "budget", Value: models.NumberValue(25000)},
	}}
	svc := newOnboardingService(sessions, responses, &stubAuditRepo{}, &stubBus{})

	detail, err := svc.GetSessionDetail(context.Background(), "sess-1", "org-1")
	require.NoError(t, err)
	require.Len(t, detail.Responses["step-1"], 2)
	assert.Equal(t, "sess-1", detail.Session.ID)
}
