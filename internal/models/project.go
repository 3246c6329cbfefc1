package models

import "time"

// ProjectStatus tracks a project through delivery.
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "DRAFT"
	ProjectStatusOnboarding ProjectStatus = "ONBOARDING"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusCompleted  ProjectStatus = "COMPLETED"
	ProjectStatusArchived   ProjectStatus = "ARCHIVED"
)

// Project is an engagement created alongside an onboarding session. The
// session back-reference is weak; the session is owned by the organization.
type Project struct {
	ID                  string        `db:"id" json:"id"`
	OrganizationID      string        `db:"organization_id" json:"organizationId"`
	ClientID            string        `db:"client_id" json:"clientId"`
	Name                string        `db:"name" json:"name"`
	ServiceType         string        `db:"service_type" json:"serviceType"`
	Status              ProjectStatus `db:"status" json:"status"`
	OnboardingSessionID *string       `db:"onboarding_session_id" json:"onboardingSessionId,omitempty"`
	CreatedAt           time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updatedAt"`
}

// Milestone is a delivery phase materialized from the automation blueprint.
type Milestone struct {
	ID          string    `db:"id" json:"id"`
	ProjectID   string    `db:"project_id" json:"projectId"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueDate     time.Time `db:"due_date" json:"dueDate"`
	SortOrder   int       `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Task is a unit of work under a milestone.
type Task struct {
	ID          string    `db:"id" json:"id"`
	ProjectID   string    `db:"project_id" json:"projectId"`
	MilestoneID string    `db:"milestone_id" json:"milestoneId"`
	Title       string    `db:"title" json:"title"`
	SortOrder   int       `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// ProjectListItem is the admin listing projection joined with client and
// session state.
type ProjectListItem struct {
	ID                   string        `db:"id" json:"id"`
	Name                 string        `db:"name" json:"name"`
	ServiceType          string        `db:"service_type" json:"serviceType"`
	Status               ProjectStatus `db:"status" json:"status"`
	ClientID             string        `db:"client_id" json:"clientId"`
	ClientCompany        *string       `db:"client_company" json:"clientCompany,omitempty"`
	OnboardingSessionID  *string       `db:"onboarding_session_id" json:"onboardingSessionId,omitempty"`
	SessionStatus        *string       `db:"session_status" json:"sessionStatus,omitempty"`
	CompletionPercentage *int          `db:"completion_percentage" json:"completionPercentage,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"createdAt"`
}
