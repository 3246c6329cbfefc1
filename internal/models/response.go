package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind tags the runtime type held by a FieldValue.
type ValueKind string

const (
	ValueKindNull    ValueKind = "null"
	ValueKindString  ValueKind = "string"
	ValueKindNumber  ValueKind = "number"
	ValueKindBool    ValueKind = "bool"
	ValueKindStrings ValueKind = "strings"
)

// FieldValue is the polymorphic answer payload for a single field. It keeps
// the heterogeneous wire shape (string/number/bool/array/null) behind a tagged
// union instead of an untyped blob.
type FieldValue struct {
	Kind    ValueKind
	Str     string
	Num     float64
	Bool    bool
	Strings []string
}

// NullValue returns the unanswered value.
func NullValue() FieldValue { return FieldValue{Kind: ValueKindNull} }

// StringValue wraps a string answer.
func StringValue(s string) FieldValue { return FieldValue{Kind: ValueKindString, Str: s} }

// NumberValue wraps a numeric answer.
func NumberValue(n float64) FieldValue { return FieldValue{Kind: ValueKindNumber, Num: n} }

// BoolValue wraps a boolean answer.
func BoolValue(b bool) FieldValue { return FieldValue{Kind: ValueKindBool, Bool: b} }

// StringsValue wraps a multi-select answer.
func StringsValue(s []string) FieldValue { return FieldValue{Kind: ValueKindStrings, Strings: s} }

// IsEmpty reports whether the value counts as unanswered. Only null and the
// empty string do; false booleans and empty arrays are answered values.
func (v FieldValue) IsEmpty() bool {
	switch v.Kind {
	case ValueKindNull:
		return true
	case ValueKindString:
		return v.Str == ""
	default:
		return false
	}
}

// Equal compares two values strictly, kind included.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueKindNull:
		return true
	case ValueKindString:
		return v.Str == other.Str
	case ValueKindNumber:
		return v.Num == other.Num
	case ValueKindBool:
		return v.Bool == other.Bool
	case ValueKindStrings:
		if len(v.Strings) != len(other.Strings) {
			return false
		}
		for i := range v.Strings {
			if v.Strings[i] != other.Strings[i] {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON emits the raw wire shape, not the tagged representation.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueKindString:
		return json.Marshal(v.Str)
	case ValueKindNumber:
		return json.Marshal(v.Num)
	case ValueKindBool:
		return json.Marshal(v.Bool)
	case ValueKindStrings:
		if v.Strings == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.Strings)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON infers the kind from the wire shape.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case nil:
		*v = NullValue()
	case string:
		*v = StringValue(typed)
	case float64:
		*v = NumberValue(typed)
	case bool:
		*v = BoolValue(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("field value arrays must contain strings, got %T", item)
			}
			items = append(items, s)
		}
		*v = StringsValue(items)
	default:
		return fmt.Errorf("unsupported field value type %T", raw)
	}
	return nil
}

// Value serializes to JSON at the storage boundary.
func (v FieldValue) Value() (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal field value: %w", err)
	}
	return data, nil
}

// Scan reads the JSON column back into the tagged union.
func (v *FieldValue) Scan(src interface{}) error {
	if src == nil {
		*v = NullValue()
		return nil
	}
	var data []byte
	switch typed := src.(type) {
	case []byte:
		data = typed
	case string:
		data = []byte(typed)
	default:
		return fmt.Errorf("unsupported field value source type %T", src)
	}
	return v.UnmarshalJSON(data)
}

// Display renders the value as a short human-readable string.
func (v FieldValue) Display() string {
	switch v.Kind {
	case ValueKindString:
		return v.Str
	case ValueKindNumber:
		return fmt.Sprintf("%g", v.Num)
	case ValueKindBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValueKindStrings:
		out := ""
		for i, s := range v.Strings {
			if i > 0 {
				out += ", "
			}
			out += s
		}
		return out
	default:
		return ""
	}
}

// Response is one answer row. There is exactly one logical row per
// (session, step, field); saving is always an upsert, never an append.
type Response struct {
	ID        string     `db:"id" json:"id"`
	SessionID string     `db:"session_id" json:"sessionId"`
	StepID    string     `db:"step_id" json:"stepId"`
	FieldID   string     `db:"field_id" json:"fieldId"`
	Value     FieldValue `db:"value" json:"value"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}
