// Package persistence provides the data storage abstraction for projects,
// flows and schedules.
package persistence

import (
	"context"

	"github.com/ImpactInc/azkaban/pkg/models"
)

// ProjectRepository stores projects and their flow sets.
type ProjectRepository interface {
	Projects(ctx context.Context) ([]*models.Project, error)
	ProjectByID(ctx context.Context, id int) (*models.Project, error)
	ProjectByName(ctx context.Context, name string) (*models.Project, error)
	SaveProject(ctx context.Context, project *models.Project) error

	// DeleteProject removes a project permanently. Deactivation is a
	// SaveProject with Active false; this is for purge only.
	DeleteProject(ctx context.Context, id int) error

	// UpdateFlow persists one flow of a project, typically after a lock
	// transition, without rewriting the whole flow set.
	UpdateFlow(ctx context.Context, project *models.Project, flow *models.Flow) error
}

// ScheduleRepository stores trigger schedules.
type ScheduleRepository interface {
	Schedules(ctx context.Context) ([]*models.Schedule, error)
	SchedulesByProject(ctx context.Context, projectID int) ([]*models.Schedule, error)
	ScheduleByFlow(ctx context.Context, projectID int, flowID string) (*models.Schedule, error)
	SaveSchedule(ctx context.Context, schedule *models.Schedule) error
	RemoveSchedule(ctx context.Context, id string) error
}

// Persistence bundles the repositories behind one backend.
type Persistence interface {
	ProjectRepository() ProjectRepository
	ScheduleRepository() ScheduleRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
