package dispatch

import (
	"reflect"
	"testing"
)

func TestBuildPayloadPicksTemplateSubset(t *testing.T) {
	task := map[string]any{"id": "t1", "title": "ship it"}
	user := map[string]any{"id": "u1"}
	project := map[string]any{"id": "p1"}

	envelope := BuildPayload(EventTaskCreated, map[string]any{
		"task":     task,
		"user":     user,
		"project":  project,
		"internal": "should not leak",
	})

	if envelope["event"] != string(EventTaskCreated) {
		t.Fatalf("unexpected event %v", envelope["event"])
	}
	if !reflect.DeepEqual(envelope["task"], task) {
		t.Fatalf("task not carried over: %v", envelope["task"])
	}
	if !reflect.DeepEqual(envelope["user"], user) {
		t.Fatalf("user not carried over: %v", envelope["user"])
	}
	if _, leaked := envelope["internal"]; leaked {
		t.Fatal("untemplated key leaked into envelope")
	}
}

func TestBuildPayloadStatusChangeCarriesTransition(t *testing.T) {
	envelope := BuildPayload(EventTaskStatusChanged, map[string]any{
		"task":       map[string]any{"id": "t1"},
		"old_status": "todo",
		"new_status": "done",
		"user":       map[string]any{"id": "u1"},
		"project":    map[string]any{"id": "p1"},
	})

	if envelope["old_status"] != "todo" || envelope["new_status"] != "done" {
		t.Fatalf("status transition missing: %v", envelope)
	}
}

func TestBuildPayloadSkipsAbsentTemplateKeys(t *testing.T) {
	envelope := BuildPayload(EventTaskUpdated, map[string]any{
		"task": map[string]any{"id": "t1"},
	})

	if _, present := envelope["changes"]; present {
		t.Fatal("absent key should not appear in envelope")
	}
	if _, present := envelope["task"]; !present {
		t.Fatal("present key should appear in envelope")
	}
}

func TestBuildPayloadFallbackForUnknownType(t *testing.T) {
	raw := map[string]any{"anything": "goes", "project_id": "p1"}
	envelope := BuildPayload(EventType("sprint.archived"), raw)

	if envelope["event"] != "sprint.archived" {
		t.Fatalf("unexpected event %v", envelope["event"])
	}
	data, ok := envelope["data"].(map[string]any)
	if !ok {
		t.Fatalf("fallback envelope missing data: %v", envelope)
	}
	if !reflect.DeepEqual(data, raw) {
		t.Fatalf("fallback data should equal raw input, got %v", data)
	}
}
