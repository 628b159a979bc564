package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by services and the HTTP layer.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodePolicyViolation  = "POLICY_VIOLATION"
	CodeRequirementUnmet = "REQUIREMENT_UNMET"
	CodeRoleMismatch     = "ROLE_MISMATCH"
	CodeInternal         = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	// Retryable marks errors the caller may resolve by re-reading and trying again.
	Retryable bool
	Err       error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewConflict reports an optimistic write collision. Conflicts are retryable.
func NewConflict(message string, details map[string]any) error {
	err := NewDomainError(CodeConflict, message, http.StatusConflict, details)
	err.Retryable = true
	return err
}

// NewPolicyViolation reports a transition refused by the lifecycle policy.
// reason is one of the policy denial kinds and is exposed as details.reason.
func NewPolicyViolation(reason, message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["reason"] = reason
	status := http.StatusUnprocessableEntity
	if reason == "UNAUTHORIZED_ROLE" {
		status = http.StatusForbidden
	}
	return NewDomainError(CodePolicyViolation, message, status, details)
}

// NewRequirementUnmet reports preconditions that blocked an otherwise legal transition.
func NewRequirementUnmet(requirements []string) error {
	return NewDomainError(CodeRequirementUnmet, "transition requirements not met", http.StatusUnprocessableEntity, map[string]any{
		"requirements": requirements,
	})
}

// NewRoleMismatch reports a user whose role does not fit the requested duty.
func NewRoleMismatch(message string, details map[string]any) error {
	return NewDomainError(CodeRoleMismatch, message, http.StatusUnprocessableEntity, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
