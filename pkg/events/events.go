// Package events defines audit event types emitted on project lifecycle changes.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic for project audit events.
const Topic = "azkaban.project.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ProjectCreatedEvent    EventType = "project.created"
	ProjectUploadedEvent   EventType = "project.uploaded"
	ProjectDeletedEvent    EventType = "project.deleted"
	SchedulePrunedEvent    EventType = "project.schedule.pruned"
	PermissionChangedEvent EventType = "project.permission.changed"
	ProxyUserChangedEvent  EventType = "project.proxy_user.changed"
	FlowLockChangedEvent   EventType = "project.flow.lock.changed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID int            `json:"project_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type ProjectCreated struct {
	BaseEvent

	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

func (p ProjectCreated) GetType() EventType {
	return ProjectCreatedEvent
}

type ProjectUploaded struct {
	BaseEvent

	Version    int      `json:"version"`
	UploadedBy string   `json:"uploaded_by"`
	FlowIDs    []string `json:"flow_ids"`
	Warnings   []string `json:"warnings,omitempty"`
}

func (p ProjectUploaded) GetType() EventType {
	return ProjectUploadedEvent
}

type ProjectDeleted struct {
	BaseEvent

	Name      string `json:"name"`
	DeletedBy string `json:"deleted_by"`
	Purged    bool   `json:"purged"`
}

func (p ProjectDeleted) GetType() EventType {
	return ProjectDeletedEvent
}

// SchedulePruned is emitted once per schedule removed because its flow no
// longer exists after an upload.
type SchedulePruned struct {
	BaseEvent

	ScheduleID     string `json:"schedule_id"`
	FlowID         string `json:"flow_id"`
	CronExpression string `json:"cron_expression"`
}

func (s SchedulePruned) GetType() EventType {
	return SchedulePrunedEvent
}

type PermissionChanged struct {
	BaseEvent

	Principal   string   `json:"principal"`
	Group       bool     `json:"group"`
	Permissions []string `json:"permissions"`
	ChangedBy   string   `json:"changed_by"`
	Removed     bool     `json:"removed,omitempty"`
}

func (p PermissionChanged) GetType() EventType {
	return PermissionChangedEvent
}

type ProxyUserChanged struct {
	BaseEvent

	ProxyUser string `json:"proxy_user"`
	ChangedBy string `json:"changed_by"`
	Removed   bool   `json:"removed,omitempty"`
}

func (p ProxyUserChanged) GetType() EventType {
	return ProxyUserChangedEvent
}

type FlowLockChanged struct {
	BaseEvent

	FlowID    string `json:"flow_id"`
	Locked    bool   `json:"locked"`
	Message   string `json:"message,omitempty"`
	ChangedBy string `json:"changed_by"`
}

func (f FlowLockChanged) GetType() EventType {
	return FlowLockChangedEvent
}

func NewBaseEvent(eventType EventType, projectID int) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID,
		Metadata:  make(map[string]any),
	}
}
