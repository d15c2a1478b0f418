// Package main provides the Azkaban web server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/ImpactInc/azkaban/pkg/eventbus"
	"github.com/ImpactInc/azkaban/pkg/flowgraph"
	"github.com/ImpactInc/azkaban/pkg/permissions"
	"github.com/ImpactInc/azkaban/pkg/persistence"
	"github.com/ImpactInc/azkaban/pkg/project"
	"github.com/ImpactInc/azkaban/pkg/props"
	"github.com/ImpactInc/azkaban/pkg/scheduler"
	"github.com/ImpactInc/azkaban/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	directory   permissions.Directory
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	directory permissions.Directory,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		directory:   directory,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	projects := a.persistence.ProjectRepository()
	schedules := a.persistence.ScheduleRepository()

	gateway := permissions.NewGateway(permissions.NewResolver(a.directory, projects, a.eventBus, a.logger))
	triggers := scheduler.NewTriggerScheduler(schedules)
	locks := flowgraph.NewLockManager(triggers, projects, a.eventBus)
	resolver := props.NewResolver(props.NewFlowStore(), a.logger)
	manager := project.NewManager(gateway, triggers, projects, a.eventBus)

	installer, err := project.NewArchiveInstaller()
	if err != nil {
		return nil, err
	}

	reconciler := project.NewReconciler(gateway, installer, triggers, locks, projects, a.eventBus)

	handlers := web.NewAPIHandlers(manager, reconciler, gateway, locks, triggers, resolver, projects, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Azkaban Web")
	})

	p := app.Group("/projects")
	p.Get("/", handlers.GetProjects)
	p.Post("/", handlers.CreateProject)
	p.Get("/:project", handlers.GetProject)
	p.Put("/:project/description", handlers.UpdateDescription)
	p.Delete("/:project", handlers.RemoveProject)
	p.Delete("/:project/purge", handlers.PurgeProject)
	p.Post("/:project/upload", handlers.UploadProject)

	p.Get("/:project/permissions", handlers.GetPermissions)
	p.Post("/:project/permissions", handlers.AddPermission)
	p.Put("/:project/permissions", handlers.ChangePermission)
	p.Delete("/:project/permissions/:name", handlers.RemovePermission)

	p.Post("/:project/proxy-users", handlers.AddProxyUser)
	p.Delete("/:project/proxy-users/:name", handlers.RemoveProxyUser)

	p.Get("/:project/schedules", handlers.GetSchedules)

	f := p.Group("/:project/flows/:flow")
	f.Get("/graph", handlers.GetFlowGraph)
	f.Get("/jobtypes", handlers.GetFlowJobTypes)
	f.Get("/jobs/:job/properties", handlers.GetJobProperties)
	f.Put("/jobs/:job/properties", handlers.SetJobProperties)
	f.Get("/lock", handlers.GetFlowLock)
	f.Put("/lock", handlers.SetFlowLock)
	f.Post("/schedule", handlers.ScheduleFlow)

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
