package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSealed is returned by Register once the registry has been sealed.
// Registration is a startup-only phase; a post-seal Register call is a
// programming error.
var ErrSealed = errors.New("registry is sealed, registration is closed")

// DuplicateToolError reports a second registration under an existing name.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// InvalidSchemaError reports a structurally invalid tool schema at
// registration time.
type InvalidSchemaError struct {
	Name   string
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema for tool %q: %s", e.Name, e.Reason)
}

// UnknownCategoryError reports a discovery query for a category that has no
// registered tools.
type UnknownCategoryError struct {
	Category  string
	Available []string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category: %s", e.Category)
}

// UnknownToolError reports an execution request for an unregistered name.
// Suggestions carries registered names close to the requested one so the
// caller can self-correct without another discovery round trip.
type UnknownToolError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownToolError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown tool: %s", e.Name)
	}
	return fmt.Sprintf("unknown tool: %s (did you mean one of %s?)", e.Name, strings.Join(e.Suggestions, ", "))
}

// Mismatch records one argument whose value could not be coerced to the
// declared parameter kind.
type Mismatch struct {
	Name     string `json:"name"`
	Expected Kind   `json:"expected"`
}

// InvalidArgumentsError carries the full violation list for one call:
// every missing required parameter and every type-mismatched one. Validation
// is atomic, so the handler is never invoked when this error is returned.
type InvalidArgumentsError struct {
	Tool       string
	Missing    []string
	Mismatched []Mismatch
}

func (e *InvalidArgumentsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required: "+strings.Join(e.Missing, ", "))
	}
	for _, m := range e.Mismatched {
		parts = append(parts, fmt.Sprintf("%s must be %s", m.Name, m.Expected))
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(parts, "; "))
}

// HandlerError wraps a failure reported by a tool handler after validation
// succeeded.
type HandlerError struct {
	Tool  string
	Cause error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("execution failed for %s: %v", e.Tool, e.Cause)
}

// Unwrap exposes the handler's failure for errors.Is/errors.As.
func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// AsUnknownTool extracts an UnknownToolError if err carries one.
func AsUnknownTool(err error) (*UnknownToolError, bool) {
	var unknownErr *UnknownToolError
	if errors.As(err, &unknownErr) {
		return unknownErr, true
	}
	return nil, false
}

// AsUnknownCategory extracts an UnknownCategoryError if err carries one.
func AsUnknownCategory(err error) (*UnknownCategoryError, bool) {
	var categoryErr *UnknownCategoryError
	if errors.As(err, &categoryErr) {
		return categoryErr, true
	}
	return nil, false
}
