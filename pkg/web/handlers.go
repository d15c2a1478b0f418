// Package web provides HTTP handlers and REST API endpoints for project management.
package web

import (
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/ImpactInc/azkaban/pkg/flowgraph"
	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/permissions"
	"github.com/ImpactInc/azkaban/pkg/persistence"
	"github.com/ImpactInc/azkaban/pkg/project"
	"github.com/ImpactInc/azkaban/pkg/props"
	"github.com/ImpactInc/azkaban/pkg/scheduler"
)

// Identity headers set by the authenticating frontend.
const (
	userHeader   = "X-Azkaban-User"
	groupsHeader = "X-Azkaban-Groups"
	rolesHeader  = "X-Azkaban-Roles"
)

type APIHandlers struct {
	manager    *project.Manager
	reconciler *project.Reconciler
	gateway    *permissions.Gateway
	locks      *flowgraph.LockManager
	triggers   *scheduler.TriggerScheduler
	resolver   *props.Resolver
	projects   persistence.ProjectRepository
	validator  *validator.Validate
}

func NewAPIHandlers(
	manager *project.Manager,
	reconciler *project.Reconciler,
	gateway *permissions.Gateway,
	locks *flowgraph.LockManager,
	triggers *scheduler.TriggerScheduler,
	resolver *props.Resolver,
	projects persistence.ProjectRepository,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		manager:    manager,
		reconciler: reconciler,
		gateway:    gateway,
		locks:      locks,
		triggers:   triggers,
		resolver:   resolver,
		projects:   projects,
		validator:  validator,
	}
}

// userFromRequest builds the acting user from identity headers.
func userFromRequest(c fiber.Ctx) *models.User {
	user := &models.User{ID: c.Get(userHeader)}

	if groups := c.Get(groupsHeader); groups != "" {
		user.Groups = strings.Split(groups, ",")
	}

	if roles := c.Get(rolesHeader); roles != "" {
		user.Roles = strings.Split(roles, ",")
	}

	return user
}

func (h *APIHandlers) project(c fiber.Ctx) (*models.Project, error) {
	return h.projects.ProjectByName(c.Context(), c.Params("project"))
}

// authorizedProject loads the project and checks the acting user holds the
// required permission on it.
func (h *APIHandlers) authorizedProject(c fiber.Ctx, t models.PermissionType) (*models.Project, *models.User, error) {
	proj, err := h.project(c)
	if err != nil {
		return nil, nil, err
	}

	user := userFromRequest(c)
	if err := h.gateway.Authorize(proj, user, t); err != nil {
		return nil, nil, err
	}

	return proj, user, nil
}

func (h *APIHandlers) GetProjects(c fiber.Ctx) error {
	projects, err := h.projects.Projects(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"projects": projects})
}

func (h *APIHandlers) CreateProject(c fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	proj, err := h.manager.Create(c.Context(), req.Name, req.Description, userFromRequest(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(proj)
}

func (h *APIHandlers) GetProject(c fiber.Ctx) error {
	proj, _, err := h.authorizedProject(c, models.PermissionRead)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(proj)
}

func (h *APIHandlers) UpdateDescription(c fiber.Ctx) error {
	proj, err := h.project(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req DescriptionRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.manager.UpdateDescription(c.Context(), proj, req.Description, userFromRequest(c)); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(proj)
}

func (h *APIHandlers) RemoveProject(c fiber.Ctx) error {
	proj, err := h.project(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := h.manager.Remove(c.Context(), proj, userFromRequest(c)); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PurgeProject(c fiber.Ctx) error {
	proj, err := h.project(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := h.manager.Purge(c.Context(), proj, userFromRequest(c)); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// UploadProject accepts a multipart archive and runs the reconcile pipeline.
func (h *APIHandlers) UploadProject(c fiber.Ctx) error {
	proj, err := h.project(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	fileHeader, err := c.FormFile("archive")
	if err != nil {
		return badRequest(c, "Missing archive file: "+err.Error())
	}

	archive, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "Unreadable archive file: "+err.Error())
	}
	defer archive.Close()

	opts := project.Options{
		SyncTriggers: c.Query("sync_triggers", "true") != "false",
		AutoFix:      c.Query("auto_fix") == "true",
	}

	result, err := h.reconciler.Reconcile(c.Context(), proj, archive, fileHeader.Filename, userFromRequest(c), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetFlowGraph(c fiber.Ctx) error {
	proj, _, err := h.authorizedProject(c, models.PermissionRead)
	if err != nil {
		return handleServiceError(c, err)
	}

	flowID := c.Params("flow")

	if c.Query("deep") == "true" {
		description, err := flowgraph.DescribeDeep(proj, flowID)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(description)
	}

	flow := proj.Flow(flowID)
	if flow == nil {
		return handleServiceError(c, persistence.ErrFlowNotFound)
	}

	return c.JSON(flowgraph.Describe(flow))
}

func (h *APIHandlers) GetFlowJobTypes(c fiber.Ctx) error {
	proj, _, err := h.authorizedProject(c, models.PermissionRead)
	if err != nil {
		return handleServiceError(c, err)
	}

	flow := proj.Flow(c.Params("flow"))
	if flow == nil {
		return handleServiceError(c, persistence.ErrFlowNotFound)
	}

	jobTypes := flow.JobTypes()
	sort.Strings(jobTypes)

	return c.JSON(fiber.Map{"flow_id": flow.ID, "job_types": jobTypes})
}

// GetJobProperties resolves the effective configuration of one job. Values
// whose keys look secret-bearing are masked.
func (h *APIHandlers) GetJobProperties(c fiber.Ctx) error {
	proj, _, err := h.authorizedProject(c, models.PermissionRead)
	if err != nil {
		return handleServiceError(c, err)
	}

	flow := proj.Flow(c.Params("flow"))
	if flow == nil {
		return handleServiceError(c, persistence.ErrFlowNotFound)
	}

	jobID := c.Params("job")

	resolved, err := h.resolver.ResolveForJob(c.Context(), proj, flow, jobID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"flow_id":    flow.ID,
		"job_id":     jobID,
		"properties": props.MaskSecrets(resolved),
	})
}

// SetJobProperties replaces the property overrides of one job.
func (h *APIHandlers) SetJobProperties(c fiber.Ctx) error {
	proj, err := h.project(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req JobOverrideRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flowID := c.Params("flow")
	jobID := c.Params("job")

	if err := h.manager.SetJobOverride(c.Context(), proj, flowID, jobID, req.Properties, userFromRequest(c)); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetPermissions(c fiber.Ctx) error {
	proj, _, err := h.authorizedProject(c, models.PermissionRead)
	if err != nil {
		return handleServiceError(c, err)
	}

	grants := make([]GrantResponse, 0, len(proj.UserGrants)+len(proj.GroupGrants))

	for _, grant := range proj.UserGrants {
		grants = append(grants, TransformGrantResponse(grant, false))
	}

	for _, grant := range proj.GroupGrants {
		grants = append(grants, TransformGrantResponse(grant, true))
	}

	return c.JSON(fiber.Map{"grants": grants, "proxy_users": proj.ProxyUsers})
}

func (h *APIHandlers) AddPermission(c fiber.Ctx) error {
	proj, user, req, perm, err := h.parsePermissionRequest(c)
	if err != nil {
		return err
	}

	if err := h.gateway.Resolver().Add(c.Context(), proj, req.Name, req.Group, perm, user); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusCreated)
}

func (h *APIHandlers) ChangePermission(c fiber.Ctx) error {
	proj, user, req, perm, err := h.parsePermissionRequest(c)
	if err != nil {
		return err
	}

	if err := h.gateway.Resolver().Change(c.Context(), proj, req.Name, req.Group, perm, user); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RemovePermission(c fiber.Ctx) error {
	proj, user, err := h.authorizedProject(c, models.PermissionAdmin)
	if err != nil {
		return handleServiceError(c, err)
	}

	name := c.Params("name")
	group := c.Query("group") == "true"

	if err := h.gateway.Resolver().Remove(c.Context(), proj, name, group, user); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) parsePermissionRequest(c fiber.Ctx) (*models.Project, *models.User, *PermissionRequest, models.Permission, error) {
	proj, user, err := h.authorizedProject(c, models.PermissionAdmin)
	if err != nil {
		return nil, nil, nil, 0, handleServiceError(c, err)
	}

	var req PermissionRequest
	if err := c.Bind().Body(&req); err != nil {
		return nil, nil, nil, 0, badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, nil, nil, 0, badRequest(c, err.Error())
	}

	var perm models.Permission

	for _, name := range req.Permissions {
		t, ok := models.ParsePermissionType(name)
		if !ok {
			return nil, nil, nil, 0, badRequest(c, "Unknown permission type: "+name)
		}

		perm = perm.With(t)
	}

	return proj, user, &req, perm, nil
}

func (h *APIHandlers) AddProxyUser(c fiber.Ctx) error {
	proj, user, err := h.authorizedProject(c, models.PermissionAdmin)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req ProxyUserRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.gateway.Resolver().AddProxyUser(c.Context(), proj, req.Name, user); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusCreated)
}

func (h *APIHandlers) RemoveProxyUser(c fiber.Ctx) error {
	proj, user, err := h.authorizedProject(c, models.PermissionAdmin)
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := h.gateway.Resolver().RemoveProxyUser(c.Context(), proj, c.Params("name"), user); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetFlowLock(c fiber.Ctx) error {
	proj, _, err := h.authorizedProject(c, models.PermissionRead)
	if err != nil {
		return handleServiceError(c, err)
	}

	flow := proj.Flow(c.Params("flow"))
	if flow == nil {
		return handleServiceError(c, persistence.ErrFlowNotFound)
	}

	return c.JSON(LockResponse{
		FlowID:  flow.ID,
		Locked:  flow.Locked,
		Message: flow.LockErrorMessage,
	})
}

func (h *APIHandlers) SetFlowLock(c fiber.Ctx) error {
	proj, user, err := h.authorizedProject(c, models.PermissionAdmin)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req LockRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	flowID := c.Params("flow")
	if err := h.locks.SetLock(c.Context(), proj, flowID, req.Locked, req.Message, user.ID); err != nil {
		return handleServiceError(c, err)
	}

	flow := proj.Flow(flowID)

	return c.JSON(LockResponse{
		FlowID:  flow.ID,
		Locked:  flow.Locked,
		Message: flow.LockErrorMessage,
	})
}

func (h *APIHandlers) ScheduleFlow(c fiber.Ctx) error {
	proj, user, err := h.authorizedProject(c, models.PermissionSchedule)
	if err != nil {
		return handleServiceError(c, err)
	}

	flowID := c.Params("flow")
	if proj.Flow(flowID) == nil {
		return handleServiceError(c, persistence.ErrFlowNotFound)
	}

	var req ScheduleRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	schedule, err := h.triggers.Schedule(c.Context(), proj, flowID, req.CronExpression, user.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(schedule)
}

func (h *APIHandlers) GetSchedules(c fiber.Ctx) error {
	proj, _, err := h.authorizedProject(c, models.PermissionRead)
	if err != nil {
		return handleServiceError(c, err)
	}

	schedules, err := h.triggers.SchedulesByProject(c.Context(), proj.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"schedules": schedules})
}
