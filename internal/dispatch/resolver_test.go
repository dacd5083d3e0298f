package dispatch

import (
	"testing"

	"github.com/google/uuid"
)

func TestProjectIDFromEventPrecedence(t *testing.T) {
	fromProject := uuid.New()
	fromTask := uuid.New()
	topLevel := uuid.New()

	tests := []struct {
		name string
		data map[string]any
		want uuid.UUID
		ok   bool
	}{
		{
			name: "project.id wins over everything",
			data: map[string]any{
				"project":    map[string]any{"id": fromProject.String()},
				"task":       map[string]any{"project_id": fromTask.String()},
				"project_id": topLevel.String(),
			},
			want: fromProject,
			ok:   true,
		},
		{
			name: "task.project_id wins over top-level",
			data: map[string]any{
				"task":       map[string]any{"project_id": fromTask.String()},
				"project_id": topLevel.String(),
			},
			want: fromTask,
			ok:   true,
		},
		{
			name: "top-level project_id as last resort",
			data: map[string]any{"project_id": topLevel.String()},
			want: topLevel,
			ok:   true,
		},
		{
			name: "typed uuid values are accepted",
			data: map[string]any{"project": map[string]any{"id": fromProject}},
			want: fromProject,
			ok:   true,
		},
		{
			name: "malformed project.id falls through to task",
			data: map[string]any{
				"project": map[string]any{"id": "not-a-uuid"},
				"task":    map[string]any{"project_id": fromTask.String()},
			},
			want: fromTask,
			ok:   true,
		},
		{
			name: "no extractable project id",
			data: map[string]any{"task": map[string]any{"title": "orphan"}},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ProjectIDFromEvent(tt.data)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Fatalf("expected %s got %s", tt.want, got)
			}
		})
	}
}

func TestSubscriptionMatches(t *testing.T) {
	sub := Subscription{Events: []EventType{EventTaskCreated, EventCommentAdded}}
	if !sub.Matches(EventTaskCreated) {
		t.Fatal("expected match for task.created")
	}
	if sub.Matches(EventTaskDeleted) {
		t.Fatal("unexpected match for task.deleted")
	}
}
