package stream

import (
	"testing"
	"time"
)

func TestNormalize_FillsDefaults(t *testing.T) {
	e := normalize(Event{Type: "file_changed"})
	if e.ID == "" {
		t.Fatal("no ID generated")
	}
	if e.Timestamp.IsZero() {
		t.Fatal("no timestamp assigned")
	}
	if e.Priority != PriorityMedium {
		t.Fatalf("priority = %q, want medium", e.Priority)
	}
}

func TestNormalize_KeepsExplicitFields(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := normalize(Event{ID: "fixed", Timestamp: ts, Priority: PriorityCritical})
	if e.ID != "fixed" || !e.Timestamp.Equal(ts) || e.Priority != PriorityCritical {
		t.Fatalf("normalize rewrote explicit fields: %+v", e)
	}
}

func TestNormalize_InvalidPriorityBecomesMedium(t *testing.T) {
	e := normalize(Event{Priority: "urgent"})
	if e.Priority != PriorityMedium {
		t.Fatalf("priority = %q, want medium", e.Priority)
	}
}

func TestSerialize_StableKeyOrder(t *testing.T) {
	a := &Event{Payload: map[string]interface{}{"b": 2, "a": "one", "c": true}}
	b := &Event{Payload: map[string]interface{}{"c": true, "a": "one", "b": 2}}

	sa, sb := a.serialize(), b.serialize()
	if sa != sb {
		t.Fatalf("identical payloads serialized differently:\n%q\n%q", sa, sb)
	}
	want := "a=\"one\"\nb=2\nc=true\n"
	if sa != want {
		t.Fatalf("serialize = %q, want %q", sa, want)
	}
}

func TestSerialize_EmptyPayload(t *testing.T) {
	e := &Event{}
	if got := e.serialize(); got != "" {
		t.Fatalf("serialize(empty) = %q, want empty", got)
	}
}
