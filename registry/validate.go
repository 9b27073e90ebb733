package registry

import (
	"math"
	"strconv"
)

// Args is the typed argument mapping handed to a handler after validation.
// Every declared parameter is present: required ones with the caller's value,
// optional ones with either the caller's value or the declared default.
type Args map[string]any

// String returns the named argument as a string.
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Int returns the named argument as an int.
func (a Args) Int(name string) int {
	v, _ := a[name].(int)
	return v
}

// Bool returns the named argument as a bool.
func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// StringList returns the named argument as a string slice.
func (a Args) StringList(name string) []string {
	v, _ := a[name].([]string)
	return v
}

// Validator converts a raw untyped argument mapping into the typed Args a
// handler expects, enforcing the required/optional and type constraints
// declared by one tool's schema. A Validator only reads immutable schema
// data, so a single instance is safe for concurrent calls.
type Validator struct {
	tool   string
	params []Parameter
}

// NewValidator builds the validation contract for one tool schema.
func NewValidator(schema Schema) *Validator {
	return &Validator{
		tool:   schema.Name,
		params: schema.Parameters,
	}
}

// Validate processes every declared parameter and either returns fully typed
// Args or the complete violation list. No partial Args are ever returned on
// failure, and violations are collected across all parameters so one error
// message can guide correction in a single round trip.
func (v *Validator) Validate(raw map[string]any) (Args, *InvalidArgumentsError) {
	violation := &InvalidArgumentsError{Tool: v.tool}
	args := make(Args, len(v.params))

	for _, param := range v.params {
		value, present := raw[param.Name]
		if !present {
			if param.Required {
				violation.Missing = append(violation.Missing, param.Name)
				continue
			}
			args[param.Name] = defaultFor(param)
			continue
		}

		typed, ok := coerce(param.Type, value)
		if !ok {
			violation.Mismatched = append(violation.Mismatched, Mismatch{Name: param.Name, Expected: param.Type})
			continue
		}
		args[param.Name] = typed
	}

	if len(violation.Missing) > 0 || len(violation.Mismatched) > 0 {
		return nil, violation
	}
	return args, nil
}

// defaultFor normalizes a declared default to the same representation coerce
// produces, falling back to the kind's zero sentinel when no default is set.
func defaultFor(param Parameter) any {
	if param.Default != nil {
		if typed, ok := coerce(param.Type, param.Default); ok {
			return typed
		}
	}
	switch param.Type {
	case KindInteger:
		return 0
	case KindBoolean:
		return false
	case KindStringList:
		return []string{}
	default:
		return ""
	}
}

// coerce attempts the type conversion appropriate to the declared kind.
// Raw values typically come from encoding/json, so numbers arrive as float64.
func coerce(kind Kind, value any) (any, bool) {
	switch kind {
	case KindString:
		s, ok := value.(string)
		return s, ok
	case KindInteger:
		return coerceInt(value)
	case KindBoolean:
		return coerceBool(value)
	case KindStringList:
		return coerceStringList(value)
	default:
		return nil, false
	}
}

func coerceInt(value any) (any, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return nil, false
		}
		return int(n), true
	default:
		return nil, false
	}
}

func coerceBool(value any) (any, bool) {
	switch b := value.(type) {
	case bool:
		return b, true
	case string:
		// Only the canonical tokens; anything else is a mismatch.
		parsed, err := strconv.ParseBool(b)
		if err != nil || (b != "true" && b != "false") {
			return nil, false
		}
		return parsed, true
	default:
		return nil, false
	}
}

func coerceStringList(value any) (any, bool) {
	switch list := value.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// checkSchema verifies the structural invariants a schema must satisfy before
// it may enter the registry. Registration-time failures are fatal by policy,
// so the checks are strict.
func checkSchema(schema Schema) error {
	if schema.Name == "" {
		return &InvalidSchemaError{Name: schema.Name, Reason: "tool name cannot be empty"}
	}
	if !KnownCategory(schema.Category) {
		return &InvalidSchemaError{Name: schema.Name, Reason: "unknown category " + strconv.Quote(schema.Category)}
	}
	seen := make(map[string]struct{}, len(schema.Parameters))
	for _, param := range schema.Parameters {
		if param.Name == "" {
			return &InvalidSchemaError{Name: schema.Name, Reason: "parameter name cannot be empty"}
		}
		if _, dup := seen[param.Name]; dup {
			return &InvalidSchemaError{Name: schema.Name, Reason: "duplicate parameter " + strconv.Quote(param.Name)}
		}
		seen[param.Name] = struct{}{}
		if !param.Type.IsValid() {
			return &InvalidSchemaError{Name: schema.Name, Reason: "parameter " + strconv.Quote(param.Name) + " has unsupported type " + strconv.Quote(string(param.Type))}
		}
		if !param.Required && param.Default != nil {
			if _, ok := coerce(param.Type, param.Default); !ok {
				return &InvalidSchemaError{Name: schema.Name, Reason: "default for parameter " + strconv.Quote(param.Name) + " does not match type " + string(param.Type)}
			}
		}
		if param.Required && param.Default != nil {
			return &InvalidSchemaError{Name: schema.Name, Reason: "required parameter " + strconv.Quote(param.Name) + " cannot declare a default"}
		}
	}
	return nil
}
