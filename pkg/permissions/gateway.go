package permissions

import (
	"github.com/ImpactInc/azkaban/pkg/models"
)

// Gateway is the thin policy-check layer every operation goes through before
// touching a project.
type Gateway struct {
	resolver *Resolver
}

// NewGateway creates a gateway over the given resolver.
func NewGateway(resolver *Resolver) *Gateway {
	return &Gateway{resolver: resolver}
}

// Authorize returns a forbidden error unless the user's effective permission
// on the project satisfies the required type.
func (g *Gateway) Authorize(project *models.Project, user *models.User, t models.PermissionType) error {
	if g.resolver.Has(project, user, t) {
		return nil
	}

	return &ForbiddenError{Need: t}
}

// Resolver exposes the underlying resolver for effective-permission queries.
func (g *Gateway) Resolver() *Resolver {
	return g.resolver
}
