package types

import (
	"fmt"
	"strings"
)

// Diagnostic is one problem found in a rule, addressed by a JSON path such as
// "definition.conditions[1].left.field".
type Diagnostic struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Warning bool   `json:"warning,omitempty"`
}

// String formats the diagnostic as "path: message".
func (d Diagnostic) String() string {
	if d.Path == "" {
		return d.Message
	}
	return d.Path + ": " + d.Message
}

// Diagnostics accumulates problems instead of failing on the first one.
type Diagnostics []Diagnostic

// Add appends an error diagnostic.
func (ds *Diagnostics) Add(path, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Warn appends a warning diagnostic.
func (ds *Diagnostics) Warn(path, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Path: path, Message: fmt.Sprintf(format, args...), Warning: true})
}

// Errors returns the non-warning diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if !d.Warning {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns the warning diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Warning {
			out = append(out, d)
		}
	}
	return out
}

// Err returns a *ValidationError wrapping cause when ds has errors, else nil.
// Warnings alone never fail.
func (ds Diagnostics) Err(cause error) error {
	if len(ds.Errors()) == 0 {
		return nil
	}
	return &ValidationError{Cause: cause, Diagnostics: ds}
}

// ValidationError carries the full diagnostic list of a rejected rule.
// Unwraps to Cause (ErrInvalidRule, ErrSchemaValidationFailed).
type ValidationError struct {
	Cause       error
	Diagnostics Diagnostics
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Cause.Error())
	errs := e.Diagnostics.Errors()
	sb.WriteString(fmt.Sprintf(" (%d error(s))", len(errs)))
	for _, d := range errs {
		sb.WriteString("\n  ")
		sb.WriteString(d.String())
	}
	return sb.String()
}

// Unwrap returns the cause sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}
