package dto

import "github.com/atelierhq/onboarding-api/internal/models"

// CreateProjectRequest starts a project plus its onboarding session.
type CreateProjectRequest struct {
	ClientID    string `json:"clientId" validate:"required"`
	Name        string `json:"name" validate:"required"`
	ServiceType string `json:"serviceType" validate:"required"`
}

// CreateProjectResponse returns the created rows and the tokenized wizard URL.
type CreateProjectResponse struct {
	Project       *models.Project `json:"project"`
	Session       *models.Session `json:"session"`
	OnboardingURL string          `json:"onboardingUrl"`
}
