package models

import "time"

// SessionStatus captures the onboarding lifecycle states.
type SessionStatus string

const (
	SessionStatusDraft      SessionStatus = "DRAFT"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusApproved   SessionStatus = "APPROVED"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusDraft:      {SessionStatusInProgress},
	SessionStatusInProgress: {SessionStatusCompleted},
	SessionStatusCompleted:  {SessionStatusApproved},
	SessionStatusApproved:   {},
}

// CanTransition reports whether from → to is a legal status change.
// Self-transitions are allowed so a racing first-write that sets IN_PROGRESS
// twice stays harmless.
func CanTransition(from, to SessionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Locked reports whether the status is terminal for client writes.
func (s SessionStatus) Locked() bool {
	return s == SessionStatusCompleted || s == SessionStatusApproved
}

// Session binds a client to one template version through a single-use
// expiring token. Possession of the token is the wizard's only credential.
type Session struct {
	ID                   string        `db:"id" json:"id"`
	OrganizationID       string        `db:"organization_id" json:"organizationId"`
	TemplateID           string        `db:"template_id" json:"templateId"`
	ClientID             string        `db:"client_id" json:"clientId"`
	ProjectID            *string       `db:"project_id" json:"projectId,omitempty"`
	Status               SessionStatus `db:"status" json:"status"`
	CompletionPercentage int           `db:"completion_percentage" json:"completionPercentage"`
	Token                string        `db:"token" json:"token"`
	ExpiresAt            time.Time     `db:"expires_at" json:"expiresAt"`
	CreatedAt            time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updatedAt"`
}

// SessionWithTemplate is the token-lookup projection joined with the template.
type SessionWithTemplate struct {
	Session
	TemplateName  string        `db:"template_name" json:"templateName"`
	TemplateSteps TemplateSteps `db:"template_steps" json:"templateSteps"`
	Expired       bool          `db:"-" json:"expired"`
}
