package dto

import "github.com/atelierhq/onboarding-api/internal/models"

// CreateTemplateRequest describes the payload for creating a template.
type CreateTemplateRequest struct {
	Name        string               `json:"name" validate:"required"`
	ServiceType string               `json:"serviceType" validate:"required"`
	Steps       models.TemplateSteps `json:"steps" validate:"required,min=1"`
	IsActive    *bool                `json:"isActive,omitempty"`
}

// UpdateTemplateRequest updates template metadata or steps. CreateVersion
// switches the call to append-only versioning instead of an in-place edit.
type UpdateTemplateRequest struct {
	Name          string               `json:"name,omitempty"`
	ServiceType   string               `json:"serviceType,omitempty"`
	Steps         models.TemplateSteps `json:"steps,omitempty"`
	IsActive      *bool                `json:"isActive,omitempty"`
	CreateVersion bool                 `json:"createVersion,omitempty"`
}
