package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain lifecycle change that subscribers can opt into.
type EventType string

const (
	EventTaskCreated       EventType = "task.created"
	EventTaskUpdated       EventType = "task.updated"
	EventTaskStatusChanged EventType = "task.status_changed"
	EventTaskAssigned      EventType = "task.assigned"
	EventTaskDeleted       EventType = "task.deleted"
	EventCommentAdded      EventType = "comment.added"
	EventProjectUpdated    EventType = "project.updated"
	EventMemberAdded       EventType = "member.added"
	EventMemberRoleChanged EventType = "member.role_changed"
	EventMemberRemoved     EventType = "member.removed"
)

// EventWebhookTest is sent by the management API's test endpoint. It is not
// part of the subscribable catalog; every endpoint receives it on demand.
const EventWebhookTest EventType = "webhook.test"

var knownEventTypes = map[EventType]struct{}{
	EventTaskCreated:       {},
	EventTaskUpdated:       {},
	EventTaskStatusChanged: {},
	EventTaskAssigned:      {},
	EventTaskDeleted:       {},
	EventCommentAdded:      {},
	EventProjectUpdated:    {},
	EventMemberAdded:       {},
	EventMemberRoleChanged: {},
	EventMemberRemoved:     {},
}

// Known reports whether the event type is part of the published catalog.
func (t EventType) Known() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// DomainEvent is an internal fact submitted for webhook dispatch. It is
// immutable once enqueued and discarded after its fan-out settles.
type DomainEvent struct {
	ID         uuid.UUID
	Type       EventType
	Data       map[string]any
	EnqueuedAt time.Time
}
