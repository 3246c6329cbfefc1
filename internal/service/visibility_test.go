package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atelierhq/onboarding-api/internal/models"
)

func conditionalField(op models.ConditionOperator, value models.FieldValue) models.TemplateField {
	return models.TemplateField{
		ID:   "details",
		Type: models.FieldTypeText,
		Condition: &models.FieldCondition{
			DependsOn: "choice",
			Operator:  op,
			Value:     value,
		},
	}
}

func TestFieldVisibleWithoutCondition(t *testing.T) {
	field := models.TemplateField{ID: "plain", Type: models.FieldTypeText}
	assert.True(t, FieldVisible(field, nil))
}

func TestFieldVisibleEquals(t *testing.T) {
	field := conditionalField(models.OperatorEquals, models.StringValue("yes"))

	assert.True(t, FieldVisible(field, map[string]models.FieldValue{"choice": models.StringValue("yes")}))
	assert.False(t, FieldVisible(field, map[string]models.FieldValue{"choice": models.StringValue("no")}))
	assert.False(t, FieldVisible(field, map[string]models.FieldValue{}))

	// Strict comparison: a numeric answer never equals a string condition.
	assert.False(t, FieldVisible(conditionalField(models.OperatorEquals, models.StringValue("1")),
		map[string]models.FieldValue{"choice": models.NumberValue(1)}))
}

func TestFieldVisibleNotEquals(t *testing.T) {
	field := conditionalField(models.OperatorNotEquals, models.StringValue("yes"))

	assert.False(t, FieldVisible(field, map[string]models.FieldValue{"choice": models.StringValue("yes")}))
	assert.True(t, FieldVisible(field, map[string]models.FieldValue{"choice": models.StringValue("no")}))
	assert.True(t, FieldVisible(field, map[string]models.FieldValue{}))
}

func TestFieldVisibleIncludes(t *testing.T) {
	field := conditionalField(models.OperatorIncludes, models.StringValue("seo"))

	assert.True(t, FieldVisible(field, map[string]models.FieldValue{
		"choice": models.StringsValue([]string{"design", "seo"}),
	}))
	assert.False(t, FieldVisible(field, map[string]models.FieldValue{
		"choice": models.StringsValue([]string{"design"}),
	}))

	// A scalar dependency never includes anything.
	assert.False(t, FieldVisible(field, map[string]models.FieldValue{"choice": models.StringValue("seo")}))
	assert.False(t, FieldVisible(field, map[string]models.FieldValue{}))
}

func TestFieldVisibleNotIncludes(t *testing.T) {
	field := conditionalField(models.OperatorNotIncludes, models.StringValue("seo"))

	assert.False(t, FieldVisible(field, map[string]models.FieldValue{
		"choice": models.StringsValue([]string{"seo"}),
	}))
	assert.True(t, FieldVisible(field, map[string]models.FieldValue{
		"choice": models.StringsValue([]string{"design"}),
	}))

	// Mirrors includes on scalars: nothing to include in, so the field shows.
	assert.True(t, FieldVisible(field, map[string]models.FieldValue{"choice": models.StringValue("seo")}))
	assert.True(t, FieldVisible(field, map[string]models.FieldValue{}))
}
