package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImpactInc/azkaban/pkg/flowgraph"
	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/permissions"
	"github.com/ImpactInc/azkaban/pkg/persistence/memory"
	"github.com/ImpactInc/azkaban/pkg/project"
	"github.com/ImpactInc/azkaban/pkg/props"
	"github.com/ImpactInc/azkaban/pkg/scheduler"
	"github.com/ImpactInc/azkaban/pkg/web"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	directory := permissions.NewStaticDirectory()
	directory.AddUser(&models.User{ID: "admin"})
	directory.AddUser(&models.User{ID: "reader"})
	directory.AddUser(&models.User{ID: "scheduler"})
	directory.AddUser(&models.User{ID: "etl-batch"})

	store := memory.NewPersistence()
	projects := store.ProjectRepository()

	seed := &models.Project{
		Name:   "warehouse",
		Active: true,
		Flows: map[string]*models.Flow{
			"daily": {
				ID: "daily",
				Nodes: []*models.Node{
					{ID: "extract", Type: "command"},
					{ID: "load", Type: "spark", Level: 1},
				},
				Edges: []*models.Edge{{Source: "extract", Target: "load"}},
			},
		},
		UserGrants: []*models.Grant{
			{Name: "admin", Permission: models.NewPermission(models.PermissionAdmin)},
			{Name: "reader", Permission: models.NewPermission(models.PermissionRead)},
			{Name: "scheduler", Permission: models.NewPermission(models.PermissionRead, models.PermissionSchedule)},
		},
	}
	require.NoError(t, projects.SaveProject(t.Context(), seed))

	logger := slog.Default()
	gateway := permissions.NewGateway(permissions.NewResolver(directory, projects, nil, logger))
	triggers := scheduler.NewTriggerScheduler(store.ScheduleRepository())
	locks := flowgraph.NewLockManager(triggers, projects, nil)
	resolver := props.NewResolver(props.NewFlowStore(), logger)
	manager := project.NewManager(gateway, triggers, projects, nil)

	installer, err := project.NewArchiveInstaller()
	require.NoError(t, err)

	reconciler := project.NewReconciler(gateway, installer, triggers, locks, projects, nil)

	handlers := web.NewAPIHandlers(manager, reconciler, gateway, locks, triggers, resolver, projects,
		validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	p := app.Group("/projects")
	p.Get("/", handlers.GetProjects)
	p.Post("/", handlers.CreateProject)
	p.Get("/:project", handlers.GetProject)
	p.Put("/:project/description", handlers.UpdateDescription)
	p.Delete("/:project", handlers.RemoveProject)
	p.Get("/:project/permissions", handlers.GetPermissions)
	p.Post("/:project/permissions", handlers.AddPermission)
	p.Get("/:project/schedules", handlers.GetSchedules)

	f := p.Group("/:project/flows/:flow")
	f.Get("/graph", handlers.GetFlowGraph)
	f.Get("/jobtypes", handlers.GetFlowJobTypes)
	f.Get("/jobs/:job/properties", handlers.GetJobProperties)
	f.Put("/jobs/:job/properties", handlers.SetJobProperties)
	f.Get("/lock", handlers.GetFlowLock)
	f.Put("/lock", handlers.SetFlowLock)
	f.Post("/schedule", handlers.ScheduleFlow)

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, user string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if user != "" {
		req.Header.Set("X-Azkaban-User", user)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return body
}

func TestGetProject(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/projects/warehouse", "reader", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "warehouse", body["name"])
}

func TestGetProject_Forbidden(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/projects/warehouse", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetProject_NotFound(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/projects/missing", "reader", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateProject(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/projects/", "admin",
		web.CreateProjectRequest{Name: "reporting", Description: "weekly reports"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "reporting", body["name"])

	resp = doRequest(t, app, http.MethodPost, "/projects/", "admin",
		web.CreateProjectRequest{Name: "reporting", Description: "weekly reports"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetFlowGraph(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/projects/warehouse/flows/daily/graph", "reader", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "daily", body["flow_id"])

	nodes, ok := body["nodes"].([]any)
	require.True(t, ok)
	assert.Len(t, nodes, 2)
}

func TestGetFlowGraph_UnknownFlow(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/projects/warehouse/flows/ghost/graph", "reader", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetFlowJobTypes(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodGet, "/projects/warehouse/flows/daily/jobtypes", "reader", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, []any{"command", "spark"}, body["job_types"])
}

func TestUpdateDescription(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPut, "/projects/warehouse/description", "admin",
		web.DescriptionRequest{Description: "nightly loads"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/projects/warehouse", "reader", nil)
	assert.Equal(t, "nightly loads", decodeBody(t, resp)["description"])
}

func TestUpdateDescription_RequiresWrite(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPut, "/projects/warehouse/description", "reader",
		web.DescriptionRequest{Description: "sneaky"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSetJobProperties(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPut, "/projects/warehouse/flows/daily/jobs/load/properties", "admin",
		web.JobOverrideRequest{Properties: map[string]string{"retries": "5"}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/projects/warehouse/flows/daily/jobs/load/properties", "reader", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	properties, ok := decodeBody(t, resp)["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "5", properties["retries"])
}

func TestSetJobProperties_RequiresWrite(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPut, "/projects/warehouse/flows/daily/jobs/load/properties", "reader",
		web.JobOverrideRequest{Properties: map[string]string{"retries": "5"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSetJobProperties_UnknownJob(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPut, "/projects/warehouse/flows/daily/jobs/ghost/properties", "admin",
		web.JobOverrideRequest{Properties: map[string]string{"retries": "5"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetFlowLock(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPut, "/projects/warehouse/flows/daily/lock", "admin",
		web.LockRequest{Locked: true, Message: "runaway job"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["locked"])
	assert.Equal(t, "runaway job", body["message"])

	resp = doRequest(t, app, http.MethodGet, "/projects/warehouse/flows/daily/lock", "reader", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["locked"])
}

func TestSetFlowLock_RequiresAdmin(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPut, "/projects/warehouse/flows/daily/lock", "reader",
		web.LockRequest{Locked: true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestScheduleFlow(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/projects/warehouse/flows/daily/schedule", "scheduler",
		web.ScheduleRequest{CronExpression: "30 4 * * *"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "daily", body["flow_id"])

	resp = doRequest(t, app, http.MethodGet, "/projects/warehouse/schedules", "reader", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	schedules, ok := decodeBody(t, resp)["schedules"].([]any)
	require.True(t, ok)
	assert.Len(t, schedules, 1)
}

func TestScheduleFlow_InvalidCron(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/projects/warehouse/flows/daily/schedule", "scheduler",
		web.ScheduleRequest{CronExpression: "not a cron"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScheduleFlow_RequiresSchedulePermission(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/projects/warehouse/flows/daily/schedule", "reader",
		web.ScheduleRequest{CronExpression: "30 4 * * *"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAddPermission(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/projects/warehouse/permissions", "admin",
		web.PermissionRequest{Name: "etl-batch", Permissions: []string{"READ", "WRITE"}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/projects/warehouse/permissions", "reader", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	grants, ok := decodeBody(t, resp)["grants"].([]any)
	require.True(t, ok)
	assert.Len(t, grants, 4)
}

func TestAddPermission_UnknownType(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/projects/warehouse/permissions", "admin",
		web.PermissionRequest{Name: "etl-batch", Permissions: []string{"OWN"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoveProject_RequiresAdmin(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, http.MethodDelete, "/projects/warehouse", "reader", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
