package project

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ImpactInc/azkaban/pkg/eventbus"
	"github.com/ImpactInc/azkaban/pkg/events"
	"github.com/ImpactInc/azkaban/pkg/flowgraph"
	"github.com/ImpactInc/azkaban/pkg/log"
	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/permissions"
	"github.com/ImpactInc/azkaban/pkg/persistence"
	"github.com/ImpactInc/azkaban/pkg/scheduler"
	"github.com/ImpactInc/azkaban/pkg/tracing"
)

// Options control one reconcile run.
type Options struct {
	// SyncTriggers unschedules the project before install and reschedules
	// it after, so triggers never fire against a half-installed flow set.
	SyncTriggers bool

	// AutoFix lets validators repair recoverable archive problems instead
	// of rejecting them.
	AutoFix bool
}

// Result is the outcome of a successful reconcile.
type Result struct {
	Version  int                                 `json:"version"`
	Reports  map[string]*models.ValidationReport `json:"reports"`
	Warnings string                              `json:"warnings,omitempty"`
}

// Reconciler runs the upload pipeline: permission check, trigger
// quiescence, archive install, lock restoration and schedule pruning, in
// that order. Uploads to the same project are serialized.
type Reconciler struct {
	gateway   *permissions.Gateway
	installer Installer
	triggers  *scheduler.TriggerScheduler
	locks     *flowgraph.LockManager
	projects  persistence.ProjectRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer

	mu      sync.Mutex
	uploads map[int]*sync.Mutex
}

func NewReconciler(
	gateway *permissions.Gateway,
	installer Installer,
	triggers *scheduler.TriggerScheduler,
	locks *flowgraph.LockManager,
	projects persistence.ProjectRepository,
	publisher eventbus.EventPublisher,
) *Reconciler {
	return &Reconciler{
		gateway:   gateway,
		installer: installer,
		triggers:  triggers,
		locks:     locks,
		projects:  projects,
		publisher: publisher,
		logger:    log.WithModule("reconciler"),
		tracer:    otel.Tracer("azkaban/reconciler"),
		uploads:   make(map[int]*sync.Mutex),
	}
}

// uploadLock returns the mutex serializing uploads of one project.
func (r *Reconciler) uploadLock(projectID int) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.uploads[projectID]
	if !ok {
		lock = &sync.Mutex{}
		r.uploads[projectID] = lock
	}

	return lock
}

// Reconcile stages the uploaded archive and runs the pipeline. The staged
// archive is removed on every exit path.
func (r *Reconciler) Reconcile(ctx context.Context, project *models.Project, archive io.Reader, filename string, user *models.User, opts Options) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, r.tracer, "project.reconcile",
		attribute.Int(tracing.ProjectIDKey, project.ID),
		attribute.String(tracing.ProjectNameKey, project.Name),
		attribute.String(tracing.UserIDKey, user.ID),
	)
	defer span.End()

	result, err := r.reconcile(ctx, project, archive, filename, user, opts)
	if err != nil {
		tracing.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.Int(tracing.VersionKey, result.Version))

	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, project *models.Project, archive io.Reader, filename string, user *models.User, opts Options) (*Result, error) {
	const op = "Reconcile"

	if err := r.gateway.Authorize(project, user, models.PermissionWrite); err != nil {
		return nil, err
	}

	extension := strings.TrimPrefix(filepath.Ext(filename), ".")
	if extension != "zip" {
		return nil, NewUploadError(op, project.Name, fmt.Errorf("%w: %q", ErrInvalidExtension, extension))
	}

	lock := r.uploadLock(project.ID)
	lock.Lock()
	defer lock.Unlock()

	stagingDir, err := os.MkdirTemp("", "azkaban-upload-")
	if err != nil {
		return nil, NewUploadError(op, project.Name, err)
	}
	defer os.RemoveAll(stagingDir)

	archivePath := filepath.Join(stagingDir, filename)
	if err := stageArchive(archivePath, archive); err != nil {
		return nil, NewUploadError(op, project.Name, err)
	}

	return r.reconcileStaged(ctx, project, archivePath, extension, user, opts)
}

func (r *Reconciler) reconcileStaged(ctx context.Context, project *models.Project, archivePath, extension string, user *models.User, opts Options) (*Result, error) {
	const op = "Reconcile"

	lockedFlows := make(map[string]string)

	for _, flowID := range project.LockedFlowIDs() {
		lockedFlows[flowID] = project.Flow(flowID).LockErrorMessage
	}

	var unscheduled []*models.Schedule

	if opts.SyncTriggers {
		var err error

		unscheduled, err = r.triggers.Unschedule(ctx, project)
		if err != nil {
			// Best effort: an unreachable scheduler must not block uploads.
			r.logger.Warn("Could not unschedule triggers before install",
				"project", project.Name, "error", err)
		}
	}

	prevFlows, prevVersion, prevUpdatedAt := project.Flows, project.Version, project.UpdatedAt

	reports, err := r.installer.ValidateAndInstall(project, archivePath, extension, opts.AutoFix)
	if err != nil {
		r.compensate(ctx, project, opts, unscheduled)

		if message := aggregateErrors(reports); message != "" {
			return nil, NewUploadError(op, project.Name, fmt.Errorf("%w: %s", ErrInstallFailed, message))
		}

		return nil, NewUploadError(op, project.Name, err)
	}

	if err := r.projects.SaveProject(ctx, project); err != nil {
		// The store still holds the old state; the in-memory project must
		// not keep the new flow set either.
		project.Flows, project.Version, project.UpdatedAt = prevFlows, prevVersion, prevUpdatedAt
		r.compensate(ctx, project, opts, unscheduled)

		return nil, NewUploadError(op, project.Name, err)
	}

	if opts.SyncTriggers {
		if err := r.triggers.Restore(ctx, unscheduled); err != nil {
			return nil, NewUploadError(op, project.Name, fmt.Errorf("%w: %w", ErrSchedulerUnavailable, err))
		}
	}

	r.relockSurvivors(ctx, project, lockedFlows, user)

	removed, err := r.triggers.RemoveSchedulesOfDeletedFlows(ctx, project)
	if err != nil {
		return nil, NewUploadError(op, project.Name, fmt.Errorf("%w: %w", ErrSchedulerUnavailable, err))
	}

	for _, schedule := range removed {
		r.publish(ctx, project, events.SchedulePruned{
			BaseEvent:      events.NewBaseEvent(events.SchedulePrunedEvent, project.ID),
			ScheduleID:     schedule.ID,
			FlowID:         schedule.FlowID,
			CronExpression: schedule.CronExpression,
		})
	}

	warnings := aggregateWarnings(reports)

	r.publish(ctx, project, events.ProjectUploaded{
		BaseEvent:  events.NewBaseEvent(events.ProjectUploadedEvent, project.ID),
		Version:    project.Version,
		UploadedBy: user.ID,
		FlowIDs:    project.FlowIDs(),
		Warnings:   splitWarnings(warnings),
	})

	r.logger.Info("Project reconciled",
		"project", project.Name, "version", project.Version, "pruned_schedules", len(removed))

	return &Result{
		Version:  project.Version,
		Reports:  reports,
		Warnings: warnings,
	}, nil
}

// compensate re-creates the trigger schedules removed before a failed
// install, so the project does not come out of a failed upload unscheduled.
func (r *Reconciler) compensate(ctx context.Context, project *models.Project, opts Options, unscheduled []*models.Schedule) {
	if !opts.SyncTriggers {
		return
	}

	if err := r.triggers.Restore(ctx, unscheduled); err != nil {
		r.logger.Error("Could not restore triggers after failed install",
			"project", project.Name, "error", err)
	}
}

// relockSurvivors re-applies the pre-upload lock state to flows that still
// exist. Flows removed or renamed by the upload are skipped silently.
func (r *Reconciler) relockSurvivors(ctx context.Context, project *models.Project, lockedFlows map[string]string, user *models.User) {
	for flowID, message := range lockedFlows {
		if project.Flow(flowID) == nil {
			continue
		}

		if err := r.locks.SetLock(ctx, project, flowID, true, message, user.ID); err != nil {
			r.logger.Warn("Could not re-lock flow after upload",
				"project", project.Name, "flow", flowID, "error", err)
		}
	}
}

func (r *Reconciler) publish(ctx context.Context, project *models.Project, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.Publish(ctx, project.Name, event); err != nil {
		r.logger.Warn("Could not publish audit event",
			"project", project.Name, "event", event.GetType(), "error", err)
	}
}

func stageArchive(path string, archive io.Reader) error {
	staged, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(staged, archive); err != nil {
		staged.Close()

		return err
	}

	return staged.Close()
}

func splitWarnings(warnings string) []string {
	if warnings == "" {
		return nil
	}

	return strings.Split(warnings, "\n")
}
