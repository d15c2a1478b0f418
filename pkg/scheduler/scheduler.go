// Package scheduler manages cron triggers for project flows. A trigger is a
// persisted schedule row; pausing keeps the row but stops run computation.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ImpactInc/azkaban/pkg/log"
	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/persistence"
)

type TriggerScheduler struct {
	schedules persistence.ScheduleRepository
	logger    *slog.Logger
}

func NewTriggerScheduler(schedules persistence.ScheduleRepository) *TriggerScheduler {
	return &TriggerScheduler{
		schedules: schedules,
		logger:    log.WithModule("scheduler"),
	}
}

// Schedule registers a cron trigger for a flow, replacing any existing one.
func (s *TriggerScheduler) Schedule(ctx context.Context, project *models.Project, flowID, cronExpression, submittedBy string) (*models.Schedule, error) {
	existing, err := s.schedules.ScheduleByFlow(ctx, project.ID, flowID)
	if err != nil && !errors.Is(err, persistence.ErrScheduleNotFound) {
		return nil, err
	}

	id := uuid.New().String()
	if existing != nil {
		id = existing.ID
	}

	schedule, err := models.NewSchedule(id, project.ID, flowID, cronExpression, submittedBy)
	if err != nil {
		return nil, err
	}

	if err := s.schedules.SaveSchedule(ctx, schedule); err != nil {
		return nil, err
	}

	s.logger.Info("Flow scheduled", "project", project.Name, "flow", flowID, "cron", cronExpression)

	return schedule, nil
}

// SchedulesByProject lists the triggers of one project.
func (s *TriggerScheduler) SchedulesByProject(ctx context.Context, projectID int) ([]*models.Schedule, error) {
	return s.schedules.SchedulesByProject(ctx, projectID)
}

// Unschedule removes every trigger of a project and returns the removed
// schedules so callers can restore them later.
func (s *TriggerScheduler) Unschedule(ctx context.Context, project *models.Project) ([]*models.Schedule, error) {
	schedules, err := s.schedules.SchedulesByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	for _, schedule := range schedules {
		if err := s.schedules.RemoveSchedule(ctx, schedule.ID); err != nil {
			return nil, err
		}
	}

	if len(schedules) > 0 {
		s.logger.Info("Project unscheduled", "project", project.Name, "schedules", len(schedules))
	}

	return schedules, nil
}

// Restore re-registers schedules previously returned by Unschedule.
func (s *TriggerScheduler) Restore(ctx context.Context, schedules []*models.Schedule) error {
	for _, schedule := range schedules {
		if err := s.schedules.SaveSchedule(ctx, schedule); err != nil {
			return err
		}
	}

	return nil
}

// PauseTrigger pauses the trigger of a flow. It reports false when the flow
// has no trigger, which is not an error.
func (s *TriggerScheduler) PauseTrigger(ctx context.Context, projectID int, flowID string) (bool, error) {
	schedule, err := s.schedules.ScheduleByFlow(ctx, projectID, flowID)
	if errors.Is(err, persistence.ErrScheduleNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if schedule.Paused {
		return true, nil
	}

	schedule.Paused = true
	schedule.UpdatedAt = time.Now().UTC()

	if err := s.schedules.SaveSchedule(ctx, schedule); err != nil {
		return false, err
	}

	s.logger.Info("Trigger paused", "project_id", projectID, "flow", flowID)

	return true, nil
}

// ResumeTrigger resumes the trigger of a flow and recomputes its next run.
// It reports false when the flow has no trigger.
func (s *TriggerScheduler) ResumeTrigger(ctx context.Context, projectID int, flowID string) (bool, error) {
	schedule, err := s.schedules.ScheduleByFlow(ctx, projectID, flowID)
	if errors.Is(err, persistence.ErrScheduleNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if !schedule.Paused {
		return true, nil
	}

	schedule.Paused = false
	schedule.UpdatedAt = time.Now().UTC()

	if err := schedule.UpdateNextRun(); err != nil {
		return false, err
	}

	if err := s.schedules.SaveSchedule(ctx, schedule); err != nil {
		return false, err
	}

	s.logger.Info("Trigger resumed", "project_id", projectID, "flow", flowID)

	return true, nil
}

// RemoveSchedulesOfDeletedFlows drops triggers that point at flows no longer
// present in the project and returns the removed schedules.
func (s *TriggerScheduler) RemoveSchedulesOfDeletedFlows(ctx context.Context, project *models.Project) ([]*models.Schedule, error) {
	schedules, err := s.schedules.SchedulesByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	var removed []*models.Schedule

	for _, schedule := range schedules {
		if project.Flow(schedule.FlowID) != nil {
			continue
		}

		if err := s.schedules.RemoveSchedule(ctx, schedule.ID); err != nil {
			return removed, err
		}

		s.logger.Info("Removed schedule of deleted flow", "project", project.Name, "flow", schedule.FlowID)
		removed = append(removed, schedule)
	}

	return removed, nil
}
