package models

import "time"

// Audit action constants for the onboarding workflow.
const (
	AuditActionLogin             = "auth:login"
	AuditActionProjectCreated    = "project:created_with_onboarding"
	AuditActionTemplateCreated   = "template:created"
	AuditActionTemplateUpdated   = "template:updated"
	AuditActionTemplateVersioned = "template:versioned"
	AuditActionTemplateDeleted   = "template:deleted"
	AuditActionSessionCompleted  = "session:completed"
	AuditActionSessionApproved   = "session:approved"
	AuditActionMilestonesCreated = "automation:milestones_created"
)

// AuditLog is an org-scoped audit trail record.
type AuditLog struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID *string   `db:"organization_id" json:"organizationId,omitempty"`
	UserID         *string   `db:"user_id" json:"userId,omitempty"`
	Action         string    `db:"action" json:"action"`
	Entity         string    `db:"entity" json:"entity"`
	EntityID       *string   `db:"entity_id" json:"entityId,omitempty"`
	Details        *string   `db:"details" json:"details,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
