package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrInfeasible ErrorCode = "INFEASIBLE_SCHEDULE"
	ErrSolver     ErrorCode = "SOLVER_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the mise API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// ValidationError reports malformed or contradictory task input. It is raised
// before any model is built.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid task list"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Path != "" {
			parts[i] = f.Path + ": " + f.Message
		} else {
			parts[i] = f.Message
		}
	}
	return "invalid task list: " + strings.Join(parts, "; ")
}

// InfeasibleScheduleError means no assignment satisfies the constraints within
// the horizon. Retrying with the same input yields the same result.
type InfeasibleScheduleError struct {
	Horizon int
	Reason  string
}

func (e *InfeasibleScheduleError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("no feasible schedule within horizon %d", e.Horizon)
	}
	return fmt.Sprintf("no feasible schedule within horizon %d: %s", e.Horizon, e.Reason)
}

// SolverError reports a backend failure or an exhausted budget. Status is
// TIME_LIMIT, NODE_LIMIT or CANCELLED for budget stops and empty for
// internal failures. BestMakespan is the incumbent found before stopping, or
// zero if there was none.
type SolverError struct {
	Status       SolveStatus
	BestMakespan int
	Err          error
}

func (e *SolverError) Error() string {
	msg := "solver failed"
	if e.Status != "" {
		msg = "solver stopped: " + strings.ToLower(string(e.Status))
	}
	if e.BestMakespan > 0 {
		msg += fmt.Sprintf(" (best makespan found %d, not proven optimal)", e.BestMakespan)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SolverError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a larger budget could change the outcome.
func (e *SolverError) Retryable() bool {
	return e.Status == SolveStatusTimeLimit || e.Status == SolveStatusNodeLimit
}

// ToAPIError converts a domain error into the structured API form.
// Unrecognized errors become INTERNAL_ERROR.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	var verr *ValidationError
	var ierr *InfeasibleScheduleError
	var serr *SolverError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &verr):
		return NewValidationError("Task validation failed", verr.Fields...)
	case errors.As(err, &ierr):
		return &APIError{Code: ErrInfeasible, Message: ierr.Error()}
	case errors.As(err, &serr):
		return &APIError{Code: ErrSolver, Message: serr.Error()}
	default:
		return &APIError{Code: ErrInternal, Message: err.Error()}
	}
}
