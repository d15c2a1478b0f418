// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrProjectNotFound indicates a project was not found by the given identifier.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectExists indicates a project with the same name already exists.
	ErrProjectExists = errors.New("project already exists")

	// ErrFlowNotFound indicates a flow was not found within its project.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrNodeNotFound indicates a node was not found within its flow.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPropsNotFound indicates a property source has no FlowProps entry.
	ErrPropsNotFound = errors.New("property source not found")

	// ErrScheduleNotFound indicates a schedule was not found by the given identifier.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrPermissionNotFound indicates no grant exists for the named principal.
	ErrPermissionNotFound = errors.New("permission grant not found")

	// ErrPermissionExists indicates a grant for the named principal already exists.
	ErrPermissionExists = errors.New("permission grant already exists")
)

// ProjectError wraps project-related errors with operation context.
type ProjectError struct {
	Op      string // Operation being performed (e.g., "GetByName", "UpdateFlow")
	Project string // Project name or id if applicable
	Err     error  // Underlying error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("%s operation failed for project %s: %v", e.Op, e.Project, e.Err)
}

func (e *ProjectError) Unwrap() error {
	return e.Err
}

func (e *ProjectError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProjectError creates a new project error with context.
func NewProjectError(op, project string, err error) *ProjectError {
	return &ProjectError{
		Op:      op,
		Project: project,
		Err:     err,
	}
}

// ScheduleError wraps schedule-related errors with operation context.
type ScheduleError struct {
	Op         string
	ScheduleID string
	Err        error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%s operation failed for schedule %s: %v", e.Op, e.ScheduleID, e.Err)
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}

func (e *ScheduleError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsProjectNotFound checks if an error indicates a project was not found.
func IsProjectNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound)
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsPropsNotFound checks if an error indicates a property source was not found.
func IsPropsNotFound(err error) bool {
	return errors.Is(err, ErrPropsNotFound)
}

// IsScheduleNotFound checks if an error indicates a schedule was not found.
func IsScheduleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound)
}

// IsPermissionNotFound checks if an error indicates a grant was not found.
func IsPermissionNotFound(err error) bool {
	return errors.Is(err, ErrPermissionNotFound)
}

// IsPermissionExists checks if an error indicates a duplicate grant.
func IsPermissionExists(err error) bool {
	return errors.Is(err, ErrPermissionExists)
}
