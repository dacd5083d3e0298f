package dispatch

// payloadTemplates maps known event types to the subset of event data their
// envelope carries. Types without a template fall back to a generic
// {event, data} envelope.
var payloadTemplates = map[EventType][]string{
	EventTaskCreated:       {"task", "user", "project"},
	EventTaskUpdated:       {"task", "changes", "user", "project"},
	EventTaskStatusChanged: {"task", "old_status", "new_status", "user", "project"},
	EventTaskAssigned:      {"task", "assignee", "user", "project"},
	EventTaskDeleted:       {"task", "user", "project"},
	EventCommentAdded:      {"comment", "task", "user", "project"},
	EventProjectUpdated:    {"project", "changes", "user"},
	EventMemberAdded:       {"project", "member", "user"},
	EventMemberRoleChanged: {"project", "member", "old_role", "new_role", "changed_by"},
	EventMemberRemoved:     {"project", "member", "user"},
}

// BuildPayload shapes the wire envelope for an event. The caller overwrites
// timestamp and delivery_id unconditionally afterwards; neither is ever
// derived from domain data.
func BuildPayload(eventType EventType, data map[string]any) map[string]any {
	keys, ok := payloadTemplates[eventType]
	if !ok {
		return map[string]any{
			"event": string(eventType),
			"data":  data,
		}
	}

	envelope := map[string]any{"event": string(eventType)}
	for _, key := range keys {
		if value, present := data[key]; present {
			envelope[key] = value
		}
	}
	return envelope
}
