package domain

import "fmt"

// Reference-table integrity violations are the only fatal error class in the
// engine: a batch run either fails before processing any record or completes
// with one result per input. Per-record conditions (missing signal, unknown
// code, ambiguous keyword match) are absorbed into the scoring model.
const (
	RefErrDuplicateCode  = "DUPLICATE_CODE_MAPPING"
	RefErrTermOverlap    = "CONTEXT_TERM_OVERLAP"
	RefErrInvalidRule    = "INVALID_RULE"
	RefErrEmptyArtifact  = "EMPTY_ARTIFACT"
	RefErrUnreadable     = "UNREADABLE_ARTIFACT"
	RefErrMissingVersion = "MISSING_VERSION"
)

// ReferenceError reports a malformed reference-table artifact. The engine
// refuses to start rather than silently pick one mapping, since silent
// ambiguity would corrupt every downstream score.
type ReferenceError struct {
	Code    string `json:"code"`
	Detail  string `json:"detail"`
	Version string `json:"version,omitempty"`
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("reference artifact %s: %s: %s", e.Version, e.Code, e.Detail)
	}
	return fmt.Sprintf("reference artifact: %s: %s", e.Code, e.Detail)
}

// NewReferenceError creates a ReferenceError for a named artifact version.
func NewReferenceError(code, version, format string, args ...any) *ReferenceError {
	return &ReferenceError{
		Code:    code,
		Detail:  fmt.Sprintf(format, args...),
		Version: version,
	}
}

// ValidationError represents request-level input validation failures at the
// API boundary.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
