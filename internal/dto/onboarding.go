package dto

import "github.com/atelierhq/onboarding-api/internal/models"

// ResponseEntry is one answered field on the wire.
type ResponseEntry struct {
	FieldID string            `json:"fieldId" validate:"required"`
	Value   models.FieldValue `json:"value"`
}

// StepResponse pairs a response with the step it belongs to.
type StepResponse struct {
	StepID  string            `json:"stepId"`
	FieldID string            `json:"fieldId"`
	Value   models.FieldValue `json:"value"`
}

// WizardSession is the client-facing GET payload.
type WizardSession struct {
	SessionID            string               `json:"sessionId"`
	TemplateName         string               `json:"templateName"`
	Steps                models.TemplateSteps `json:"steps"`
	Status               models.SessionStatus `json:"status"`
	CompletionPercentage int                  `json:"completionPercentage"`
	Responses            []StepResponse       `json:"responses"`
}

// SaveStepRequest is the client-facing PUT payload.
type SaveStepRequest struct {
	StepID    string          `json:"stepId"`
	Responses []ResponseEntry `json:"responses"`
	Submit    bool            `json:"submit,omitempty"`
}

// SaveStepResponse reports progress after a save or submission.
type SaveStepResponse struct {
	Status               models.SessionStatus `json:"status"`
	CompletionPercentage int                  `json:"completionPercentage"`
	Message              string               `json:"message,omitempty"`
}

// UploadResponse returns the stored file reference for a file field.
type UploadResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}

// SessionDetail is the admin view of a session with responses grouped by step.
type SessionDetail struct {
	Session   *models.Session            `json:"session"`
	Responses map[string][]ResponseEntry `json:"responses"`
	Files     []models.FileUpload        `json:"files,omitempty"`
}
