// Package schema validates raw model output against the per-role response
// contract. Parsing is strict: the first violation wins and nothing is
// coerced, so drift in model output surfaces immediately instead of leaking
// half-valid values into the pipeline.
package schema

import (
	"errors"
	"fmt"
)

// FieldKind enumerates the value types a required field may declare.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindBool
	KindEnum
	KindStringList
	KindObjectList
	KindObject
	KindNumberMap
	KindStringMap
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	case KindStringList:
		return "string list"
	case KindObjectList:
		return "object list"
	case KindObject:
		return "object"
	case KindNumberMap:
		return "number map"
	case KindStringMap:
		return "string map"
	default:
		return "unknown"
	}
}

// Field declares one required top-level field and its expected type.
type Field struct {
	Name string
	Kind FieldKind
	Enum []string // allowed values when Kind is KindEnum
}

// Shape is the required-field contract one role's response must satisfy.
type Shape struct {
	Name   string
	Fields []Field
}

// ParseError reasons.
const (
	ReasonInvalidJSON    = "invalid-json"
	ReasonSchemaMismatch = "schema-mismatch"
)

// ParseError reports why a response failed its shape contract.
type ParseError struct {
	Reason   string
	Field    string
	Expected string
	Actual   string
}

func (e *ParseError) Error() string {
	if e.Reason == ReasonInvalidJSON {
		return "parse error: response is not valid JSON"
	}
	return fmt.Sprintf("parse error: field %q expected %s, got %s", e.Field, e.Expected, e.Actual)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
