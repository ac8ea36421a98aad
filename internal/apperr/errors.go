// Package apperr holds the error kinds shared across the service.
// Callers wrap them with fmt.Errorf("%w") and match with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrContentRejected = errors.New("content rejected")
	ErrNotFound        = errors.New("not found")
	ErrNotEligible     = errors.New("already posted today")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrCollaborator    = errors.New("collaborator failure")
)

// Validation returns an ErrValidation with a description of the bad input.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// CollaboratorError reports a failed call to an external service
// (moderation, geocoding, store).
type CollaboratorError struct {
	Service string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

// Collaborator wraps err as a CollaboratorError for service.
func Collaborator(service string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Service: service, Err: err}
}
