package project

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImpactInc/azkaban/pkg/eventbus"
	"github.com/ImpactInc/azkaban/pkg/events"
	"github.com/ImpactInc/azkaban/pkg/flowgraph"
	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/permissions"
	"github.com/ImpactInc/azkaban/pkg/persistence"
	"github.com/ImpactInc/azkaban/pkg/persistence/memory"
	"github.com/ImpactInc/azkaban/pkg/scheduler"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *capturingPublisher) byType(eventType events.EventType) []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []eventbus.Event

	for _, event := range p.events {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

type reconcilerFixture struct {
	reconciler *Reconciler
	gateway    *permissions.Gateway
	installer  Installer
	triggers   *scheduler.TriggerScheduler
	locks      *flowgraph.LockManager
	projects   persistence.ProjectRepository
	publisher  *capturingPublisher
	project    *models.Project
	writer     *models.User
	admin      *models.User
	reader     *models.User
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	directory := permissions.NewStaticDirectory()
	directory.AddUser(&models.User{ID: "admin"})
	directory.AddUser(&models.User{ID: "writer"})
	directory.AddUser(&models.User{ID: "reader"})

	store := memory.NewPersistence()
	projects := store.ProjectRepository()
	schedules := store.ScheduleRepository()

	gateway := permissions.NewGateway(permissions.NewResolver(directory, projects, nil, slog.Default()))
	triggers := scheduler.NewTriggerScheduler(schedules)
	locks := flowgraph.NewLockManager(triggers, projects, nil)
	publisher := &capturingPublisher{}

	installer, err := NewArchiveInstaller()
	require.NoError(t, err)

	project := &models.Project{
		Name:   "etl",
		Active: true,
		Flows: map[string]*models.Flow{
			"a": {ID: "a", Locked: true, LockErrorMessage: "bad job type"},
			"b": {ID: "b"},
		},
		UserGrants: []*models.Grant{
			{Name: "admin", Permission: models.NewPermission(models.PermissionAdmin)},
			{Name: "writer", Permission: models.NewPermission(models.PermissionWrite)},
			{Name: "reader", Permission: models.NewPermission(models.PermissionRead)},
		},
	}
	require.NoError(t, projects.SaveProject(t.Context(), project))

	return &reconcilerFixture{
		reconciler: NewReconciler(gateway, installer, triggers, locks, projects, publisher),
		gateway:    gateway,
		installer:  installer,
		triggers:   triggers,
		locks:      locks,
		projects:   projects,
		publisher:  publisher,
		project:    project,
		writer:     &models.User{ID: "writer"},
		admin:      &models.User{ID: "admin"},
		reader:     &models.User{ID: "reader"},
	}
}

func (f *reconcilerFixture) upload(t *testing.T, files map[string]string, opts Options, user *models.User) (*Result, error) {
	t.Helper()

	path := writeArchive(t, files)

	archive, err := os.Open(path)
	require.NoError(t, err)

	defer archive.Close()

	return f.reconciler.Reconcile(t.Context(), f.project, archive, "project.zip", user, opts)
}

var replacementFlows = map[string]string{
	"a.flow": `{"id": "a", "nodes": [{"id": "step", "type": "command"}]}`,
	"c.flow": `{"id": "c", "nodes": [{"id": "step", "type": "command"}]}`,
}

func TestReconciler_ReplacesFlowSet(t *testing.T) {
	f := newReconcilerFixture(t)

	result, err := f.upload(t, replacementFlows, Options{SyncTriggers: true}, f.writer)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Version)
	assert.Equal(t, []string{"a", "c"}, f.project.FlowIDs())
}

func TestReconciler_RelocksSurvivingFlows(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.upload(t, replacementFlows, Options{SyncTriggers: true}, f.writer)
	require.NoError(t, err)

	// a survived the upload and regains its lock; c starts unlocked.
	a := f.project.Flow("a")
	assert.True(t, a.Locked)
	assert.Equal(t, "bad job type", a.LockErrorMessage)
	assert.False(t, f.project.Flow("c").Locked)
}

func TestReconciler_PrunesSchedulesOfDeletedFlows(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.triggers.Schedule(t.Context(), f.project, "b", "0 2 * * *", "writer")
	require.NoError(t, err)

	_, err = f.upload(t, replacementFlows, Options{SyncTriggers: true}, f.writer)
	require.NoError(t, err)

	schedules, err := f.triggers.SchedulesByProject(t.Context(), f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, schedules, "b no longer exists, its schedule must be pruned")

	pruned := f.publisher.byType(events.SchedulePrunedEvent)
	require.Len(t, pruned, 1, "exactly one audit event per pruned schedule")

	event, ok := pruned[0].(events.SchedulePruned)
	require.True(t, ok)
	assert.Equal(t, "b", event.FlowID)
}

func TestReconciler_KeepsSchedulesOfSurvivingFlows(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.triggers.Schedule(t.Context(), f.project, "a", "0 2 * * *", "writer")
	require.NoError(t, err)

	_, err = f.upload(t, replacementFlows, Options{SyncTriggers: true}, f.writer)
	require.NoError(t, err)

	schedules, err := f.triggers.SchedulesByProject(t.Context(), f.project.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "a", schedules[0].FlowID)
	assert.Empty(t, f.publisher.byType(events.SchedulePrunedEvent))
}

func TestReconciler_FailedInstallRestoresSchedules(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.triggers.Schedule(t.Context(), f.project, "a", "0 2 * * *", "writer")
	require.NoError(t, err)

	badArchive := map[string]string{
		"bad.flow": `{"id": "bad", "nodes": [{"id": "x", "type": "command"}], "edges": [{"source": "x", "target": "ghost"}]}`,
	}

	_, err = f.upload(t, badArchive, Options{SyncTriggers: true}, f.writer)
	require.ErrorIs(t, err, ErrInstallFailed)

	// The flow set is untouched and the unscheduled triggers are back.
	assert.Equal(t, []string{"a", "b"}, f.project.FlowIDs())

	schedules, err := f.triggers.SchedulesByProject(t.Context(), f.project.ID)
	require.NoError(t, err)
	assert.Len(t, schedules, 1)
}

type failingSaveRepository struct {
	persistence.ProjectRepository
}

func (r *failingSaveRepository) SaveProject(context.Context, *models.Project) error {
	return errors.New("connection reset")
}

func TestReconciler_FailedSaveRestoresSchedulesAndState(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.triggers.Schedule(t.Context(), f.project, "a", "0 2 * * *", "writer")
	require.NoError(t, err)

	failing := &failingSaveRepository{ProjectRepository: f.projects}
	reconciler := NewReconciler(f.gateway, f.installer, f.triggers, f.locks, failing, f.publisher)

	path := writeArchive(t, replacementFlows)
	archive, err := os.Open(path)
	require.NoError(t, err)

	defer archive.Close()

	_, err = reconciler.Reconcile(t.Context(), f.project, archive, "project.zip", f.writer, Options{SyncTriggers: true})
	require.Error(t, err)

	// The in-memory project matches the store again and the unscheduled
	// triggers are back.
	assert.Equal(t, 0, f.project.Version)
	assert.Equal(t, []string{"a", "b"}, f.project.FlowIDs())

	schedules, err := f.triggers.SchedulesByProject(t.Context(), f.project.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "a", schedules[0].FlowID)
}

func TestReconciler_ErrorMessageCarriesValidatorText(t *testing.T) {
	f := newReconcilerFixture(t)

	badArchive := map[string]string{
		"bad.flow": `{"id": "bad", "nodes": [{"id": "x", "type": "command"}], "edges": [{"source": "x", "target": "ghost"}]}`,
	}

	_, err := f.upload(t, badArchive, Options{}, f.writer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestReconciler_Forbidden(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.upload(t, replacementFlows, Options{}, f.reader)
	require.Error(t, err)
	assert.True(t, permissions.IsForbidden(err))
	assert.Equal(t, 0, f.project.Version)
}

func TestReconciler_RejectsNonZipExtension(t *testing.T) {
	f := newReconcilerFixture(t)

	path := writeArchive(t, replacementFlows)

	archive, err := os.Open(path)
	require.NoError(t, err)

	defer archive.Close()

	_, err = f.reconciler.Reconcile(t.Context(), f.project, archive, "project.tar.gz", f.writer, Options{})
	assert.ErrorIs(t, err, ErrInvalidExtension)
}

func TestReconciler_EmitsUploadEvent(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.upload(t, replacementFlows, Options{}, f.writer)
	require.NoError(t, err)

	uploaded := f.publisher.byType(events.ProjectUploadedEvent)
	require.Len(t, uploaded, 1)

	event, ok := uploaded[0].(events.ProjectUploaded)
	require.True(t, ok)
	assert.Equal(t, "writer", event.UploadedBy)
	assert.Equal(t, []string{"a", "c"}, event.FlowIDs)
}
