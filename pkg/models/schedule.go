package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule is a recurring trigger bound to one flow of a project. It is
// created when a flow is scheduled and destroyed when the flow is removed,
// renamed, or explicitly unscheduled.
type Schedule struct {
	ID        string `json:"id"         validate:"required"`
	ProjectID int    `json:"project_id" validate:"required"`
	FlowID    string `json:"flow_id"    validate:"required"`

	// CronExpression is a standard 5-field cron trigger definition.
	CronExpression string `json:"cron_expression" validate:"required"`

	// NextRunAt is the precomputed next activation time, kept current so a
	// central poller can query due schedules without per-entry timers.
	NextRunAt time.Time `json:"next_run_at"`

	// Paused schedules are skipped by the poller; they keep their trigger
	// definition and resume where the cron expression says.
	Paused bool `json:"paused"`

	SubmittedBy string    `json:"submitted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewSchedule creates a schedule with its first activation time computed.
func NewSchedule(id string, projectID int, flowID, cronExpression, submittedBy string) (*Schedule, error) {
	now := time.Now().UTC()
	schedule := &Schedule{
		ID:             id,
		ProjectID:      projectID,
		FlowID:         flowID,
		CronExpression: cronExpression,
		SubmittedBy:    submittedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := schedule.computeNextRun(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// UpdateNextRun recomputes the next activation time from now.
func (s *Schedule) UpdateNextRun() error {
	return s.computeNextRun(time.Now().UTC())
}

func (s *Schedule) computeNextRun(reference time.Time) error {
	cronSchedule, err := cronParser.Parse(s.CronExpression)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	s.NextRunAt = cronSchedule.Next(reference)
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue reports whether the schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return !s.Paused && !s.NextRunAt.After(now)
}

// Validate checks identity fields and the cron expression.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.ProjectID == 0 || s.FlowID == "" || s.CronExpression == "" {
		return ErrInvalidSchedule
	}

	_, err := cronParser.Parse(s.CronExpression)

	return err
}
