// Package project implements the project lifecycle: archive validation and
// install, the upload reconciliation pipeline, and removal.
package project

import (
	"errors"
	"fmt"
)

// Business logic errors, mapped to client responses by the web layer.
var (
	// Validation errors (400 Bad Request).
	ErrInvalidArchive   = errors.New("invalid project archive")
	ErrInvalidExtension = errors.New("unsupported archive extension")
	ErrEmptyArchive     = errors.New("archive contains no flow definitions")

	// Business logic conflicts (409 Conflict).
	ErrProjectActive   = errors.New("project is still active")
	ErrProjectInactive = errors.New("project is not active")

	// Server-side failures.
	ErrInstallFailed        = errors.New("project install failed")
	ErrSchedulerUnavailable = errors.New("trigger scheduler unavailable")
)

// UploadError wraps upload pipeline errors with operation context.
type UploadError struct {
	Op      string
	Project string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: project %s: %v", e.Op, e.Project, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewUploadError(op, project string, err error) *UploadError {
	return &UploadError{Op: op, Project: project, Err: err}
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidArchive) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrEmptyArchive)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrProjectActive) ||
		errors.Is(err, ErrProjectInactive)
}
