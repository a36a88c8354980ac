package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parse decodes text as a strict JSON object and validates it against the
// shape. It is a pure function: the same text and shape always yield the
// same value or the same error.
func Parse(text string, shape Shape) (map[string]any, error) {
	decoder := json.NewDecoder(strings.NewReader(text))

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, &ParseError{Reason: ReasonInvalidJSON}
	}
	// Trailing non-whitespace after the document is not a JSON object.
	if decoder.More() {
		return nil, &ParseError{Reason: ReasonInvalidJSON}
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, &ParseError{
			Reason:   ReasonSchemaMismatch,
			Field:    "(root)",
			Expected: "object",
			Actual:   describe(value),
		}
	}

	for _, field := range shape.Fields {
		raw, present := object[field.Name]
		if !present {
			return nil, &ParseError{
				Reason:   ReasonSchemaMismatch,
				Field:    field.Name,
				Expected: field.Kind.String(),
				Actual:   "missing",
			}
		}
		if err := checkKind(field, raw); err != nil {
			return nil, err
		}
	}

	return object, nil
}

func checkKind(field Field, raw any) error {
	mismatch := func(expected string) error {
		return &ParseError{
			Reason:   ReasonSchemaMismatch,
			Field:    field.Name,
			Expected: expected,
			Actual:   describe(raw),
		}
	}

	switch field.Kind {
	case KindString:
		if _, ok := raw.(string); !ok {
			return mismatch("string")
		}
	case KindNumber:
		if _, ok := raw.(float64); !ok {
			return mismatch("number")
		}
	case KindBool:
		if _, ok := raw.(bool); !ok {
			return mismatch("bool")
		}
	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return mismatch("enum " + enumList(field.Enum))
		}
		for _, allowed := range field.Enum {
			if s == allowed {
				return nil
			}
		}
		return &ParseError{
			Reason:   ReasonSchemaMismatch,
			Field:    field.Name,
			Expected: "one of " + enumList(field.Enum),
			Actual:   fmt.Sprintf("%q", s),
		}
	case KindStringList:
		items, ok := raw.([]any)
		if !ok {
			return mismatch("string list")
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return mismatch("string list")
			}
		}
	case KindObjectList:
		items, ok := raw.([]any)
		if !ok {
			return mismatch("object list")
		}
		for _, item := range items {
			if _, ok := item.(map[string]any); !ok {
				return mismatch("object list")
			}
		}
	case KindObject:
		if _, ok := raw.(map[string]any); !ok {
			return mismatch("object")
		}
	case KindNumberMap:
		entries, ok := raw.(map[string]any)
		if !ok {
			return mismatch("number map")
		}
		for _, v := range entries {
			if _, ok := v.(float64); !ok {
				return mismatch("number map")
			}
		}
	case KindStringMap:
		entries, ok := raw.(map[string]any)
		if !ok {
			return mismatch("string map")
		}
		for _, v := range entries {
			if _, ok := v.(string); !ok {
				return mismatch("string map")
			}
		}
	}

	return nil
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func enumList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
