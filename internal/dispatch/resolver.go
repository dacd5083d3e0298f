package dispatch

import (
	"context"

	"github.com/google/uuid"
)

// Subscription is the read-only view of a registered webhook endpoint. The
// engine never mutates subscriptions; ownership stays with the store.
type Subscription struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	URL       string
	Events    []EventType
	Active    bool
	Secret    string
}

// Matches reports whether the subscription opted into the event type.
func (s Subscription) Matches(eventType EventType) bool {
	for _, t := range s.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

// SubscriptionResolver yields the active subscriptions of a project that
// contain the given event type.
type SubscriptionResolver interface {
	Resolve(ctx context.Context, projectID uuid.UUID, eventType EventType) ([]Subscription, error)
}

// ProjectIDFromEvent extracts the owning project from heterogeneous event
// payloads. Precedence: data.project.id, data.task.project_id,
// data.project_id; first match wins.
func ProjectIDFromEvent(data map[string]any) (uuid.UUID, bool) {
	if project, ok := data["project"].(map[string]any); ok {
		if id, ok := parseUUIDField(project["id"]); ok {
			return id, true
		}
	}
	if task, ok := data["task"].(map[string]any); ok {
		if id, ok := parseUUIDField(task["project_id"]); ok {
			return id, true
		}
	}
	if id, ok := parseUUIDField(data["project_id"]); ok {
		return id, true
	}
	return uuid.Nil, false
}

func parseUUIDField(value any) (uuid.UUID, bool) {
	switch v := value.(type) {
	case string:
		if id, err := uuid.Parse(v); err == nil {
			return id, true
		}
	case uuid.UUID:
		return v, true
	}
	return uuid.Nil, false
}
