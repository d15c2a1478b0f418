package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/persistence"
)

// ScheduleRepository handles trigger schedule database operations.
type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewScheduleRepository(db *sql.DB, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

const scheduleColumns = `
		id
	  , project_id
	  , flow_id
	  , cron_expression
	  , next_run_at
	  , paused
	  , submitted_by
	  , created_at
	  , updated_at
`

func (r *ScheduleRepository) Schedules(ctx context.Context) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY id`

	return r.querySchedules(ctx, query)
}

func (r *ScheduleRepository) SchedulesByProject(ctx context.Context, projectID int) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE project_id = $1 ORDER BY id`

	return r.querySchedules(ctx, query, projectID)
}

func (r *ScheduleRepository) ScheduleByFlow(ctx context.Context, projectID int, flowID string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE project_id = $1 AND flow_id = $2`

	row := r.db.QueryRowContext(ctx, query, projectID, flowID)

	schedule, err := r.scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}

	return schedule, nil
}

func (r *ScheduleRepository) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()

	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	query := `
		INSERT INTO schedules (id, project_id, flow_id, cron_expression, next_run_at, paused, submitted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			next_run_at = EXCLUDED.next_run_at,
			paused = EXCLUDED.paused,
			submitted_by = EXCLUDED.submitted_by,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID, schedule.ProjectID, schedule.FlowID, schedule.CronExpression,
		schedule.NextRunAt, schedule.Paused, schedule.SubmittedBy,
		schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	return nil
}

func (r *ScheduleRepository) RemoveSchedule(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check remove result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrScheduleNotFound
	}

	return nil
}

func (r *ScheduleRepository) querySchedules(ctx context.Context, query string, args ...any) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	schedules := make([]*models.Schedule, 0)

	for rows.Next() {
		schedule, err := r.scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

func (r *ScheduleRepository) scanSchedule(row rowScanner) (*models.Schedule, error) {
	var (
		schedule  models.Schedule
		nextRunAt sql.NullTime
	)

	err := row.Scan(
		&schedule.ID,
		&schedule.ProjectID,
		&schedule.FlowID,
		&schedule.CronExpression,
		&nextRunAt,
		&schedule.Paused,
		&schedule.SubmittedBy,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if nextRunAt.Valid {
		schedule.NextRunAt = nextRunAt.Time
	}

	return &schedule, nil
}
