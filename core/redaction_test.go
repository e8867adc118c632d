package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"trace_id":       "trace_1",
		"request_id":     "req_1",
		"bounty_id":      int64(7),
		"repository":     "goliatone/widgets",
		"webhook_secret": "whsec_abc",
		"authorization":  "Bearer secret-token",
		"nested":         map[string]any{"api_key": "key_1", "trace_id": "trace_nested"},
		"events":         []any{map[string]any{"signature": "sha256=deadbeef"}, map[string]any{"delivery_id": "gh_1"}},
	})

	if redacted["trace_id"] != "trace_1" {
		t.Fatalf("expected trace_id to remain visible, got %#v", redacted["trace_id"])
	}
	if redacted["repository"] != "goliatone/widgets" {
		t.Fatalf("expected repository to remain visible, got %#v", redacted["repository"])
	}
	if redacted["webhook_secret"] != RedactedValue {
		t.Fatalf("expected webhook_secret to be redacted, got %#v", redacted["webhook_secret"])
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["api_key"] != RedactedValue {
		t.Fatalf("expected nested api_key to be redacted, got %#v", nested["api_key"])
	}
	if nested["trace_id"] != "trace_nested" {
		t.Fatalf("expected nested trace_id to remain visible, got %#v", nested["trace_id"])
	}
	events, ok := redacted["events"].([]any)
	if !ok || len(events) != 2 {
		t.Fatalf("expected redacted events slice, got %#v", redacted["events"])
	}
	first, _ := events[0].(map[string]any)
	if first["signature"] != RedactedValue {
		t.Fatalf("expected event signature to be redacted, got %#v", first["signature"])
	}
}
