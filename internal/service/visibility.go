package service

import "github.com/atelierhq/onboarding-api/internal/models"

// FieldVisible evaluates a field's visibility condition against the current
// answers. Fields without a condition are always visible; a condition whose
// dependency is unanswered compares against null.
//
// includes/not_includes only make sense against multi-select answers: a
// non-array dependency is never considered to include anything, so includes
// yields false and not_includes yields true.
func FieldVisible(field models.TemplateField, answers map[string]models.FieldValue) bool {
	if field.Condition == nil {
		return true
	}
	cond := field.Condition
	current, ok := answers[cond.DependsOn]
	if !ok {
		current = models.NullValue()
	}

	switch cond.Operator {
	case models.OperatorEquals:
		return current.Equal(cond.Value)
	case models.OperatorNotEquals:
		return !current.Equal(cond.Value)
	case models.OperatorIncludes:
		return valueIncludes(current, cond.Value)
	case models.OperatorNotIncludes:
		return !valueIncludes(current, cond.Value)
	default:
		return true
	}
}

func valueIncludes(current, needle models.FieldValue) bool {
	if current.Kind != models.ValueKindStrings {
		return false
	}
	for _, item := range current.Strings {
		if models.StringValue(item).Equal(needle) {
			return true
		}
	}
	return false
}
