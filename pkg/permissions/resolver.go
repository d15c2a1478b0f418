package permissions

import (
	"context"
	"log/slog"

	"github.com/ImpactInc/azkaban/pkg/eventbus"
	"github.com/ImpactInc/azkaban/pkg/events"
	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/persistence"
)

// Resolver aggregates direct, group, role and proxy-user grants into
// effective permissions, and applies grant mutations. Every mutation emits
// an audit event.
type Resolver struct {
	directory Directory
	projects  persistence.ProjectRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

// NewResolver creates a permission resolver. The publisher may be nil, in
// which case mutations are not audited.
func NewResolver(directory Directory, projects persistence.ProjectRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		projects:  projects,
		publisher: publisher,
		logger:    logger.With("module", "permissions"),
	}
}

// Effective computes the full permission of a user on a project: the direct
// grant, unioned with every role grant and the collective group grant.
func (r *Resolver) Effective(project *models.Project, user *models.User) models.Permission {
	var perm models.Permission

	if grant := project.UserGrant(user.ID); grant != nil {
		perm = grant.Permission
	}

	for _, roleName := range user.Roles {
		role, ok := r.directory.Role(roleName)
		if !ok {
			r.logger.Warn("Unknown role assigned to user", "role", roleName, "user", user.ID)

			continue
		}

		perm = perm.Union(role.Permission)
	}

	return perm.Union(project.GroupPermission(user.Groups))
}

// Has reports whether the user's effective permission satisfies the
// requested type. ADMIN from any source satisfies everything.
func (r *Resolver) Has(project *models.Project, user *models.User, t models.PermissionType) bool {
	return r.Effective(project, user).Satisfies(t)
}

// HasRolePermission reports whether any of the user's roles carries the
// requested type, independent of any project.
func (r *Resolver) HasRolePermission(user *models.User, t models.PermissionType) bool {
	for _, roleName := range user.Roles {
		role, ok := r.directory.Role(roleName)
		if !ok {
			continue
		}

		if role.Permission.Satisfies(t) {
			return true
		}
	}

	return false
}

// Add creates a new grant for the named user or group. It fails if a grant
// already exists or the directory rejects the name.
func (r *Resolver) Add(ctx context.Context, project *models.Project, name string, group bool, perm models.Permission, actingUser *models.User) error {
	if group {
		if project.GroupGrant(name) != nil {
			return persistence.ErrPermissionExists
		}

		if !r.directory.ValidateGroup(name) {
			return ErrInvalidGroup
		}

		project.GroupGrants = append(project.GroupGrants, &models.Grant{Name: name, Permission: perm})
	} else {
		if project.UserGrant(name) != nil {
			return persistence.ErrPermissionExists
		}

		if !r.directory.ValidateUser(name) {
			return ErrInvalidUser
		}

		project.UserGrants = append(project.UserGrants, &models.Grant{Name: name, Permission: perm})
	}

	if err := r.projects.SaveProject(ctx, project); err != nil {
		return err
	}

	r.publishGrantChange(ctx, project, name, group, perm, actingUser, false)

	return nil
}

// Change replaces an existing grant. Granting ADMIN clears the individual
// flags; an empty permission removes the grant entirely.
func (r *Resolver) Change(ctx context.Context, project *models.Project, name string, group bool, perm models.Permission, actingUser *models.User) error {
	var grant *models.Grant
	if group {
		grant = project.GroupGrant(name)
	} else {
		grant = project.UserGrant(name)
	}

	if grant == nil {
		return persistence.ErrPermissionNotFound
	}

	if perm.IsEmpty() {
		return r.Remove(ctx, project, name, group, actingUser)
	}

	if perm.IsSet(models.PermissionAdmin) {
		perm = models.NewPermission(models.PermissionAdmin)
	}

	grant.Permission = perm

	if err := r.projects.SaveProject(ctx, project); err != nil {
		return err
	}

	r.publishGrantChange(ctx, project, name, group, perm, actingUser, false)

	return nil
}

// Remove deletes the grant for the named principal.
func (r *Resolver) Remove(ctx context.Context, project *models.Project, name string, group bool, actingUser *models.User) error {
	grants := project.UserGrants
	if group {
		grants = project.GroupGrants
	}

	index := -1

	for i, grant := range grants {
		if grant.Name == name {
			index = i

			break
		}
	}

	if index < 0 {
		return persistence.ErrPermissionNotFound
	}

	grants = append(grants[:index], grants[index+1:]...)
	if group {
		project.GroupGrants = grants
	} else {
		project.UserGrants = grants
	}

	if err := r.projects.SaveProject(ctx, project); err != nil {
		return err
	}

	r.publishGrantChange(ctx, project, name, group, models.NewPermission(), actingUser, true)

	return nil
}

// AddProxyUser registers a proxy identity after validating that the acting
// user is allowed to delegate to it. Proxy delegation is not a permission
// flag; it is an independent directory check.
func (r *Resolver) AddProxyUser(ctx context.Context, project *models.Project, name string, actingUser *models.User) error {
	if project.HasProxyUser(name) {
		return ErrProxyUserExists
	}

	if !r.directory.ValidateProxyUser(name, actingUser) {
		return ErrInvalidProxyUser
	}

	r.logger.Info("Adding proxy user", "proxy", name, "by", actingUser.ID, "project", project.Name)

	project.ProxyUsers = append(project.ProxyUsers, name)

	if err := r.projects.SaveProject(ctx, project); err != nil {
		return err
	}

	r.publishProxyChange(ctx, project, name, actingUser, false)

	return nil
}

// RemoveProxyUser unregisters a proxy identity.
func (r *Resolver) RemoveProxyUser(ctx context.Context, project *models.Project, name string, actingUser *models.User) error {
	index := -1

	for i, proxy := range project.ProxyUsers {
		if proxy == name {
			index = i

			break
		}
	}

	if index < 0 {
		return ErrProxyUserNotFound
	}

	r.logger.Info("Removing proxy user", "proxy", name, "by", actingUser.ID, "project", project.Name)

	project.ProxyUsers = append(project.ProxyUsers[:index], project.ProxyUsers[index+1:]...)

	if err := r.projects.SaveProject(ctx, project); err != nil {
		return err
	}

	r.publishProxyChange(ctx, project, name, actingUser, true)

	return nil
}

func (r *Resolver) publishGrantChange(ctx context.Context, project *models.Project, name string, group bool, perm models.Permission, actingUser *models.User, removed bool) {
	r.publish(ctx, project, events.PermissionChanged{
		BaseEvent:   events.NewBaseEvent(events.PermissionChangedEvent, project.ID),
		Principal:   name,
		Group:       group,
		Permissions: perm.Names(),
		ChangedBy:   actingUser.ID,
		Removed:     removed,
	})
}

func (r *Resolver) publishProxyChange(ctx context.Context, project *models.Project, name string, actingUser *models.User, removed bool) {
	r.publish(ctx, project, events.ProxyUserChanged{
		BaseEvent: events.NewBaseEvent(events.ProxyUserChangedEvent, project.ID),
		ProxyUser: name,
		ChangedBy: actingUser.ID,
		Removed:   removed,
	})
}

func (r *Resolver) publish(ctx context.Context, project *models.Project, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.Publish(ctx, project.Name, event); err != nil {
		r.logger.Warn("Could not publish audit event",
			"project", project.Name, "event", event.GetType(), "error", err)
	}
}
