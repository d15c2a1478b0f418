package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/ImpactInc/azkaban/pkg/flowgraph"
	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/permissions"
	"github.com/ImpactInc/azkaban/pkg/persistence"
	"github.com/ImpactInc/azkaban/pkg/project"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case permissions.IsForbidden(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("forbidden").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case permissions.IsInvalidPrincipal(err),
		project.IsValidationError(err),
		errors.Is(err, permissions.ErrInvalidProxyUser),
		errors.Is(err, flowgraph.ErrEmbeddedFlowCycle),
		errors.Is(err, models.ErrInvalidSchedule):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case errors.Is(err, persistence.ErrPermissionExists),
		errors.Is(err, persistence.ErrProjectExists),
		errors.Is(err, permissions.ErrProxyUserExists),
		project.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsProjectNotFound(err):
		return notFound(c, "project not found")

	case persistence.IsFlowNotFound(err):
		return notFound(c, "flow not found")

	case persistence.IsNodeNotFound(err):
		return notFound(c, "job not found")

	case persistence.IsPropsNotFound(err):
		return notFound(c, "property source not found")

	case persistence.IsScheduleNotFound(err):
		return notFound(c, "schedule not found")

	case persistence.IsPermissionNotFound(err),
		errors.Is(err, permissions.ErrProxyUserNotFound):
		return notFound(c, "permission grant not found")

	case errors.Is(err, project.ErrSchedulerUnavailable),
		errors.Is(err, flowgraph.ErrTriggerUnavailable):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("scheduler_unavailable").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	case errors.Is(err, project.ErrInstallFailed):
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("install_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusInternalServerError).JSON(problem)

	default:
		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
