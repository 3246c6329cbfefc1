package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FieldType enumerates the input kinds a template field may take.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multi-select"
	FieldTypeNumber      FieldType = "number"
	FieldTypeDate        FieldType = "date"
	FieldTypeFile        FieldType = "file"
	FieldTypeBoolean     FieldType = "boolean"
)

// ConditionOperator enumerates supported visibility comparisons.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorIncludes    ConditionOperator = "includes"
	OperatorNotIncludes ConditionOperator = "not_includes"
)

// FieldCondition describes visibility of one field as a function of another
// field's current value within the same step.
type FieldCondition struct {
	DependsOn string            `json:"dependsOn"`
	Value     FieldValue        `json:"value"`
	Operator  ConditionOperator `json:"operator"`
}

// FieldValidation carries optional per-field constraints.
type FieldValidation struct {
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	FileTypes   []string `json:"fileTypes,omitempty"`
	MaxFileSize *int64   `json:"maxFileSize,omitempty"`
}

// FieldOption is a selectable choice for select/multi-select fields.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// TemplateField is a single question within a step.
type TemplateField struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Type        FieldType        `json:"type"`
	Required    bool             `json:"required"`
	Placeholder string           `json:"placeholder,omitempty"`
	HelpText    string           `json:"helpText,omitempty"`
	Options     []FieldOption    `json:"options,omitempty"`
	Condition   *FieldCondition  `json:"condition,omitempty"`
	Validation  *FieldValidation `json:"validation,omitempty"`
}

// TemplateStep is one page of the wizard. The ID is caller-assigned and stable
// so historical sessions keep resolving against the template version they were
// created from.
type TemplateStep struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Fields      []TemplateField `json:"fields"`
}

// TemplateSteps is the ordered step list persisted as a JSONB column.
type TemplateSteps []TemplateStep

// Value marshals steps to JSON for persistence.
func (s TemplateSteps) Value() (driver.Value, error) {
	if s == nil {
		s = TemplateSteps{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal template steps: %w", err)
	}
	return data, nil
}

// Scan unmarshals steps from the database representation.
func (s *TemplateSteps) Scan(src interface{}) error {
	if src == nil {
		*s = TemplateSteps{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported template steps source type %T", src)
	}
	return json.Unmarshal(data, s)
}

// RequiredFieldRef identifies a required field within a template.
type RequiredFieldRef struct {
	StepID  string
	FieldID string
}

// RequiredFields flattens the template into its required (step, field) pairs.
func (s TemplateSteps) RequiredFields() []RequiredFieldRef {
	var refs []RequiredFieldRef
	for _, step := range s {
		for _, field := range step.Fields {
			if field.Required {
				refs = append(refs, RequiredFieldRef{StepID: step.ID, FieldID: field.ID})
			}
		}
	}
	return refs
}

// RequiredFileFieldCount counts required fields of type file across all steps.
func (s TemplateSteps) RequiredFileFieldCount() int {
	count := 0
	for _, step := range s {
		for _, field := range step.Fields {
			if field.Required && field.Type == FieldTypeFile {
				count++
			}
		}
	}
	return count
}

// Template is a versioned questionnaire definition. Templates are never
// mutated in place once a session references them; edits append a new version.
type Template struct {
	ID             string        `db:"id" json:"id"`
	OrganizationID string        `db:"organization_id" json:"organizationId"`
	Name           string        `db:"name" json:"name"`
	ServiceType    string        `db:"service_type" json:"serviceType"`
	Version        int           `db:"version" json:"version"`
	IsActive       bool          `db:"is_active" json:"isActive"`
	Steps          TemplateSteps `db:"steps" json:"steps"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}
