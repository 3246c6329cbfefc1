package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/events"
	"github.com/atelierhq/onboarding-api/internal/models"
	"github.com/atelierhq/onboarding-api/internal/service"
	"github.com/atelierhq/onboarding-api/pkg/response"
)

type sessionRepoMock struct {
	session *models.SessionWithTemplate
}

func (m *sessionRepoMock) Create(_ context.Context, _ *models.Session) error { return nil }

func (m *sessionRepoMock) FindByID(_ context.Context, id, organizationID string) (*models.Session, error) {
	if m.session == nil || m.session.ID != id || m.session.OrganizationID != organizationID {
		return nil, sql.ErrNoRows
	}
	found := m.session.Session
	return &found, nil
}

func (m *sessionRepoMock) FindByToken(_ context.Context, token string) (*models.SessionWithTemplate, error) {
	if m.session == nil || m.session.Token != token {
		return nil, sql.ErrNoRows
	}
	return m.session, nil
}

func (m *sessionRepoMock) FindWithTemplate(_ context.Context, id string) (*models.SessionWithTemplate, error) {
	if m.session == nil || m.session.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.session, nil
}

func (m *sessionRepoMock) UpdateStatus(_ context.Context, id string, status models.SessionStatus) error {
	if m.session != nil && m.session.ID == id {
		m.session.Status = status
	}
	return nil
}

func (m *sessionRepoMock) UpdateCompletion(_ context.Context, id string, percentage int) error {
	if m.session != nil && m.session.ID == id {
		m.session.CompletionPercentage = percentage
	}
	return nil
}

type responseRepoMock struct {
	rows []models.Response
}

func (m *responseRepoMock) UpsertStep(_ context.Context, sessionID, stepID string, responses []models.Response) error {
	for _, r := range responses {
		m.rows = append(m.rows, models.Response{SessionID: sessionID, StepID: stepID, FieldID: r.FieldID, Value: r.Value})
	}
	return nil
}

func (m *responseRepoMock) ListBySession(_ context.Context, _ string) ([]models.Response, error) {
	return m.rows, nil
}

type auditRepoMock struct{}

func (auditRepoMock) Create(_ context.Context, _ *models.AuditLog) error { return nil }

func wizardSession() *models.SessionWithTemplate {
	return &models.SessionWithTemplate{
		Session: models.Session{
			ID:             "sess-1",
			OrganizationID: "org-1",
			TemplateID:     "tpl-1",
			ClientID:       "client-1",
			Status:         models.SessionStatusDraft,
			Token:          "token-1",
			ExpiresAt:      time.Now().UTC().Add(time.Hour),
		},
		TemplateName: "Web Design Intake",
		TemplateSteps: models.TemplateSteps{{
			ID:    "step-1",
			Title: "Basics",
			Fields: []models.TemplateField{
				{ID: "company", Label: "Company name", Type: models.FieldTypeText, Required: true},
			},
		}},
	}
}

func newWizardHandler(session *models.SessionWithTemplate) *OnboardingHandler {
	svc := service.NewOnboardingService(
		&sessionRepoMock{session: session},
		&responseRepoMock{},
		auditRepoMock{},
		events.NewBus(zap.NewNop()),
		zap.NewNop(),
		service.OnboardingServiceConfig{},
	)
	return NewOnboardingHandler(svc, nil)
}

func wizardRequest(t *testing.T, method, token string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, "/onboarding/"+token, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: token}}
	return w, c
}

func TestOnboardingHandlerGetWizard(t *testing.T) {
	handler := newWizardHandler(wizardSession())
	w, c := wizardRequest(t, http.MethodGet, "token-1", nil)

	handler.GetWizard(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.WizardSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "sess-1", envelope.Data.SessionID)
	assert.Equal(t, "Web Design Intake", envelope.Data.TemplateName)
	require.Len(t, envelope.Data.Steps, 1)
}

func TestOnboardingHandlerGetWizardUnknownToken(t *testing.T) {
	handler := newWizardHandler(wizardSession())
	w, c := wizardRequest(t, http.MethodGet, "bogus", nil)

	handler.GetWizard(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOnboardingHandlerGetWizardExpired(t *testing.T) {
	session := wizardSession()
	session.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	handler := newWizardHandler(session)
	w, c := wizardRequest(t, http.MethodGet, "token-1", nil)

	handler.GetWizard(c)
	require.Equal(t, http.StatusGone, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "LINK_EXPIRED", envelope.Error.Code)
}

func TestOnboardingHandlerSaveStep(t *testing.T) {
	handler := newWizardHandler(wizardSession())
	w, c := wizardRequest(t, http.MethodPut, "token-1", dto.SaveStepRequest{
		StepID:    "step-1",
		Responses: []dto.ResponseEntry{{FieldID: "company", Value: models.StringValue("Acme")}},
	})

	handler.SaveStep(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.SaveStepResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.SessionStatusInProgress, envelope.Data.Status)
	assert.Equal(t, 100, envelope.Data.CompletionPercentage)
}

func TestOnboardingHandlerSaveStepInvalidBody(t *testing.T) {
	handler := newWizardHandler(wizardSession())
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/onboarding/token-1", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "token-1"}}

	handler.SaveStep(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOnboardingHandlerSubmitLocksFollowUpWrites(t *testing.T) {
	session := wizardSession()
	handler := newWizardHandler(session)

	w, c := wizardRequest(t, http.MethodPut, "token-1", dto.SaveStepRequest{
		StepID:    "step-1",
		Responses: []dto.ResponseEntry{{FieldID: "company", Value: models.StringValue("Acme")}},
		Submit:    true,
	})
	handler.SaveStep(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionStatusCompleted, session.Status)

	w, c = wizardRequest(t, http.MethodPut, "token-1", dto.SaveStepRequest{
		StepID:    "step-1",
		Responses: []dto.ResponseEntry{{FieldID: "company", Value: models.StringValue("Changed")}},
	})
	handler.SaveStep(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
