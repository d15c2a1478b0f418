package models

import (
	"sort"
	"time"
)

// Grant pairs a principal name with its permission on a project.
type Grant struct {
	Name       string     `json:"name"       validate:"required"`
	Permission Permission `json:"permission"`
}

// Project owns a versioned set of flows together with the grants and proxy
// users that govern access to them. The persistence layer owns the durable
// copy; the core operates on an in-memory snapshot passed in by reference.
type Project struct {
	ID          int    `json:"id"`
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	Version     int    `json:"version"`

	Flows map[string]*Flow `json:"flows,omitempty"`

	UserGrants  []*Grant `json:"user_grants,omitempty"`
	GroupGrants []*Grant `json:"group_grants,omitempty"`
	ProxyUsers  []string `json:"proxy_users,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Flow returns the flow with the given id, or nil.
func (p *Project) Flow(id string) *Flow {
	return p.Flows[id]
}

// FlowIDs returns the ids of all flows, sorted.
func (p *Project) FlowIDs() []string {
	ids := make([]string, 0, len(p.Flows))
	for id := range p.Flows {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// LockedFlowIDs returns the ids of flows currently locked, sorted.
func (p *Project) LockedFlowIDs() []string {
	ids := make([]string, 0, len(p.Flows))

	for id, flow := range p.Flows {
		if flow.Locked {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}

// UserGrant returns the direct grant for the named user, or nil.
func (p *Project) UserGrant(name string) *Grant {
	return findGrant(p.UserGrants, name)
}

// GroupGrant returns the grant for the named group, or nil.
func (p *Project) GroupGrant(name string) *Grant {
	return findGrant(p.GroupGrants, name)
}

func findGrant(grants []*Grant, name string) *Grant {
	for _, grant := range grants {
		if grant.Name == name {
			return grant
		}
	}

	return nil
}

// GroupPermission unions the grants of all listed groups.
func (p *Project) GroupPermission(groups []string) Permission {
	var perm Permission

	for _, group := range groups {
		if grant := p.GroupGrant(group); grant != nil {
			perm = perm.Union(grant.Permission)
		}
	}

	return perm
}

// UsersWithPermission returns names of users whose direct grant satisfies the
// given type, sorted.
func (p *Project) UsersWithPermission(t PermissionType) []string {
	var names []string

	for _, grant := range p.UserGrants {
		if grant.Permission.Satisfies(t) {
			names = append(names, grant.Name)
		}
	}

	sort.Strings(names)

	return names
}

// HasProxyUser reports whether the name is registered as a proxy user.
func (p *Project) HasProxyUser(name string) bool {
	for _, proxy := range p.ProxyUsers {
		if proxy == name {
			return true
		}
	}

	return false
}
