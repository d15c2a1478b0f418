// Package web provides HTTP request and response types for the project API.
package web

import (
	"github.com/ImpactInc/azkaban/pkg/models"
)

// CreateProjectRequest represents the request body for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description" validate:"required"`
}

// DescriptionRequest replaces a project's description.
type DescriptionRequest struct {
	Description string `json:"description" validate:"required"`
}

// JobOverrideRequest replaces the property overrides of one job.
type JobOverrideRequest struct {
	Properties map[string]string `json:"properties" validate:"required"`
}

// PermissionRequest adds or replaces one principal's grant on a project.
type PermissionRequest struct {
	Name        string   `json:"name"        validate:"required"`
	Group       bool     `json:"group"`
	Permissions []string `json:"permissions" validate:"required"`
}

// ProxyUserRequest adds or removes a proxy user.
type ProxyUserRequest struct {
	Name string `json:"name" validate:"required"`
}

// LockRequest sets the lock state of a flow.
type LockRequest struct {
	Locked  bool   `json:"locked"`
	Message string `json:"message,omitempty"`
}

// ScheduleRequest registers a cron trigger for a flow.
type ScheduleRequest struct {
	CronExpression string `json:"cron_expression" validate:"required"`
}

// GrantResponse is one principal's effective grant.
type GrantResponse struct {
	Name        string   `json:"name"`
	Group       bool     `json:"group"`
	Permissions []string `json:"permissions"`
}

// TransformGrantResponse converts a stored grant for API output.
func TransformGrantResponse(grant *models.Grant, group bool) GrantResponse {
	return GrantResponse{
		Name:        grant.Name,
		Group:       group,
		Permissions: grant.Permission.Names(),
	}
}

// LockResponse is the lock state of a flow.
type LockResponse struct {
	FlowID  string `json:"flow_id"`
	Locked  bool   `json:"locked"`
	Message string `json:"message,omitempty"`
}
