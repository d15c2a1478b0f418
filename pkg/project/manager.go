package project

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ImpactInc/azkaban/pkg/eventbus"
	"github.com/ImpactInc/azkaban/pkg/events"
	"github.com/ImpactInc/azkaban/pkg/log"
	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/permissions"
	"github.com/ImpactInc/azkaban/pkg/persistence"
	"github.com/ImpactInc/azkaban/pkg/scheduler"
)

// Manager owns the project lifecycle outside of uploads: creation,
// deactivation and purge.
type Manager struct {
	gateway   *permissions.Gateway
	triggers  *scheduler.TriggerScheduler
	projects  persistence.ProjectRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewManager(
	gateway *permissions.Gateway,
	triggers *scheduler.TriggerScheduler,
	projects persistence.ProjectRepository,
	publisher eventbus.EventPublisher,
) *Manager {
	return &Manager{
		gateway:   gateway,
		triggers:  triggers,
		projects:  projects,
		publisher: publisher,
		logger:    log.WithModule("project"),
	}
}

// Create registers a new, empty project owned by the creating user.
func (m *Manager) Create(ctx context.Context, name, description string, user *models.User) (*models.Project, error) {
	if _, err := m.projects.ProjectByName(ctx, name); err == nil {
		return nil, persistence.NewProjectError("Create", name, persistence.ErrProjectExists)
	}

	now := time.Now().UTC()
	project := &models.Project{
		Name:        name,
		Description: description,
		Active:      true,
		Flows:       make(map[string]*models.Flow),
		UserGrants: []*models.Grant{
			{Name: user.ID, Permission: models.NewPermission(models.PermissionAdmin)},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.projects.SaveProject(ctx, project); err != nil {
		return nil, err
	}

	m.publish(ctx, project, events.ProjectCreated{
		BaseEvent: events.NewBaseEvent(events.ProjectCreatedEvent, project.ID),
		Name:      project.Name,
		CreatedBy: user.ID,
	})

	m.logger.Info("Project created", "project", project.Name, "created_by", user.ID)

	return project, nil
}

// UpdateDescription replaces the project description. WRITE is enough; the
// description is project metadata, not an access-control surface.
func (m *Manager) UpdateDescription(ctx context.Context, project *models.Project, description string, user *models.User) error {
	if err := m.gateway.Authorize(project, user, models.PermissionWrite); err != nil {
		return err
	}

	project.Description = description
	project.UpdatedAt = time.Now().UTC()

	if err := m.projects.SaveProject(ctx, project); err != nil {
		return err
	}

	m.logger.Info("Project description changed", "project", project.Name, "changed_by", user.ID)

	return nil
}

// SetJobOverride stores per-job property overrides on one node of a flow,
// replacing any overrides set before. The overrides survive until the next
// upload replaces the flow set.
func (m *Manager) SetJobOverride(ctx context.Context, project *models.Project, flowID, jobID string, overrides map[string]string, user *models.User) error {
	if err := m.gateway.Authorize(project, user, models.PermissionWrite); err != nil {
		return err
	}

	flow := project.Flow(flowID)
	if flow == nil {
		return persistence.ErrFlowNotFound
	}

	node := flow.Node(jobID)
	if node == nil {
		return persistence.ErrNodeNotFound
	}

	node.Overrides = overrides

	if err := m.projects.UpdateFlow(ctx, project, flow); err != nil {
		return err
	}

	m.logger.Info("Job override set",
		"project", project.Name, "flow", flowID, "job", jobID, "keys", len(overrides), "changed_by", user.ID)

	return nil
}

// Remove deactivates a project and drops all of its trigger schedules.
// The project data stays behind for audit until purged.
func (m *Manager) Remove(ctx context.Context, project *models.Project, user *models.User) error {
	if err := m.gateway.Authorize(project, user, models.PermissionAdmin); err != nil {
		return err
	}

	if !project.Active {
		return NewUploadError("Remove", project.Name, ErrProjectInactive)
	}

	if _, err := m.triggers.Unschedule(ctx, project); err != nil {
		return fmt.Errorf("%w: %w", ErrSchedulerUnavailable, err)
	}

	project.Active = false
	project.UpdatedAt = time.Now().UTC()

	if err := m.projects.SaveProject(ctx, project); err != nil {
		return err
	}

	m.publish(ctx, project, events.ProjectDeleted{
		BaseEvent: events.NewBaseEvent(events.ProjectDeletedEvent, project.ID),
		Name:      project.Name,
		DeletedBy: user.ID,
	})

	m.logger.Info("Project removed", "project", project.Name, "removed_by", user.ID)

	return nil
}

// Purge permanently deletes an already-removed project.
func (m *Manager) Purge(ctx context.Context, project *models.Project, user *models.User) error {
	if err := m.gateway.Authorize(project, user, models.PermissionAdmin); err != nil {
		return err
	}

	if project.Active {
		return NewUploadError("Purge", project.Name, ErrProjectActive)
	}

	if err := m.projects.DeleteProject(ctx, project.ID); err != nil {
		return err
	}

	m.publish(ctx, project, events.ProjectDeleted{
		BaseEvent: events.NewBaseEvent(events.ProjectDeletedEvent, project.ID),
		Name:      project.Name,
		DeletedBy: user.ID,
		Purged:    true,
	})

	m.logger.Info("Project purged", "project", project.Name, "purged_by", user.ID)

	return nil
}

func (m *Manager) publish(ctx context.Context, project *models.Project, event eventbus.Event) {
	if m.publisher == nil {
		return
	}

	if err := m.publisher.Publish(ctx, project.Name, event); err != nil {
		m.logger.Warn("Could not publish audit event",
			"project", project.Name, "event", event.GetType(), "error", err)
	}
}
