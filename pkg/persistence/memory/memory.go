// Package memory provides an in-memory persistence implementation used by
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/persistence"
)

// Persistence implements persistence.Persistence entirely in process memory.
type Persistence struct {
	projectRepo  *ProjectRepository
	scheduleRepo *ScheduleRepository
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	return &Persistence{
		projectRepo:  &ProjectRepository{projects: make(map[int]*models.Project)},
		scheduleRepo: &ScheduleRepository{schedules: make(map[string]*models.Schedule)},
	}
}

func (p *Persistence) ProjectRepository() persistence.ProjectRepository {
	return p.projectRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// ProjectRepository stores projects keyed by id.
type ProjectRepository struct {
	mu       sync.RWMutex
	projects map[int]*models.Project
	nextID   int
}

func (r *ProjectRepository) Projects(_ context.Context) ([]*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projects := make([]*models.Project, 0, len(r.projects))
	for _, project := range r.projects {
		projects = append(projects, project)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })

	return projects, nil
}

func (r *ProjectRepository) ProjectByID(_ context.Context, id int) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, ok := r.projects[id]
	if !ok {
		return nil, persistence.ErrProjectNotFound
	}

	return project, nil
}

func (r *ProjectRepository) ProjectByName(_ context.Context, name string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, project := range r.projects {
		if project.Name == name {
			return project, nil
		}
	}

	return nil, persistence.ErrProjectNotFound
}

func (r *ProjectRepository) SaveProject(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if project.ID == 0 {
		r.nextID++
		project.ID = r.nextID
	} else if project.ID > r.nextID {
		r.nextID = project.ID
	}

	r.projects[project.ID] = project

	return nil
}

func (r *ProjectRepository) DeleteProject(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return persistence.ErrProjectNotFound
	}

	delete(r.projects, id)

	return nil
}

func (r *ProjectRepository) UpdateFlow(_ context.Context, project *models.Project, flow *models.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.projects[project.ID]
	if !ok {
		return persistence.ErrProjectNotFound
	}

	if stored.Flow(flow.ID) == nil {
		return persistence.NewProjectError("UpdateFlow", project.Name, persistence.ErrFlowNotFound)
	}

	stored.Flows[flow.ID] = flow

	return nil
}

// ScheduleRepository stores schedules keyed by id.
type ScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]*models.Schedule
}

func (r *ScheduleRepository) Schedules(_ context.Context) ([]*models.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedules := make([]*models.Schedule, 0, len(r.schedules))
	for _, schedule := range r.schedules {
		schedules = append(schedules, schedule)
	}

	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })

	return schedules, nil
}

func (r *ScheduleRepository) SchedulesByProject(_ context.Context, projectID int) ([]*models.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var schedules []*models.Schedule

	for _, schedule := range r.schedules {
		if schedule.ProjectID == projectID {
			schedules = append(schedules, schedule)
		}
	}

	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })

	return schedules, nil
}

func (r *ScheduleRepository) ScheduleByFlow(_ context.Context, projectID int, flowID string) (*models.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, schedule := range r.schedules {
		if schedule.ProjectID == projectID && schedule.FlowID == flowID {
			return schedule, nil
		}
	}

	return nil, persistence.ErrScheduleNotFound
}

func (r *ScheduleRepository) SaveSchedule(_ context.Context, schedule *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.schedules[schedule.ID] = schedule

	return nil
}

func (r *ScheduleRepository) RemoveSchedule(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return persistence.ErrScheduleNotFound
	}

	delete(r.schedules, id)

	return nil
}
