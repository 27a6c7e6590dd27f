package schema

import (
	"fmt"
	"strings"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Warning codes attached to issues that do not stop a request.
const (
	WarnCodeInvertedRange  = "INVERTED_RANGE"
	WarnCodeDegenerateAxis = "DEGENERATE_AXIS"
	WarnCodeOddSteps       = "ODD_STEPS"
)

// ValidationIssue is a single request problem located by JSON pointer.
type ValidationIssue struct {
	Path     string `json:"path"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// String renders the issue as "path: message", or just the message when it
// applies to the whole document.
func (i ValidationIssue) String() string {
	if i.Path == "" || i.Path == "/" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationResult collects the issues found in one request document.
// Warnings never block a request; they are returned with the answer.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid reports whether no errors were recorded. A nil result is valid.
func (r *ValidationResult) Valid() bool {
	return r == nil || len(r.Errors) == 0
}

func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityError})
}

func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityWarning})
}

// Merge appends the issues of other.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// HasWarning reports whether a warning with the given code was recorded.
func (r *ValidationResult) HasWarning(code string) bool {
	if r == nil {
		return false
	}
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// ToError folds the errors into one VALIDATION_ERROR, or returns nil when
// the result is valid. Every error appears under the "violations" detail.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	violations := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		violations[i] = e.String()
	}
	msg := violations[0]
	if len(violations) > 1 {
		msg = fmt.Sprintf("%d problems in request: %s", len(violations), strings.Join(violations, "; "))
	}

	details := map[string]any{"violations": violations}
	if len(r.Warnings) > 0 {
		details["warnings"] = r.Warnings
	}
	return NewError(ErrCodeValidation, msg).WithDetails(details)
}
