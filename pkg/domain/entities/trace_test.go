package entities

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestReason_NamesAreUniqueAndParseable(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range AllReasons() {
		name := r.String()
		if name == "" || name == "unknown" {
			t.Fatalf("Reason %d has no name", int(r))
		}
		if seen[name] {
			t.Fatalf("Duplicate reason name %q", name)
		}
		seen[name] = true

		parsed, err := ParseReason(name)
		if err != nil || parsed != r {
			t.Errorf("ParseReason(%q) = %v, %v; want %v", name, parsed, err, r)
		}
	}
}

func TestDecisionTraceEntry_JSONUsesReasonName(t *testing.T) {
	entry := DecisionTraceEntry{
		ProductID: "SKU-1",
		OutletID:  "S1",
		Reason:    ReasonSkipLineCap,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"reason":"skip_line_cap"`) {
		t.Errorf("Expected reason name in JSON, got %s", data)
	}

	var decoded DecisionTraceEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Reason != ReasonSkipLineCap {
		t.Errorf("Expected skip_line_cap, got %s", decoded.Reason)
	}
}

func TestReason_UnknownValues(t *testing.T) {
	if Reason(999).String() != "unknown" {
		t.Error("Expected unknown for out-of-range reason")
	}
	if _, err := Reason(-1).MarshalText(); err == nil {
		t.Error("Expected marshal error for out-of-range reason")
	}
	if _, err := ParseReason("not_a_reason"); err == nil {
		t.Error("Expected parse error for unknown name")
	}
}

func TestDecisionTraceEntry_IsProductLevel(t *testing.T) {
	if !(DecisionTraceEntry{ProductID: "SKU-1"}).IsProductLevel() {
		t.Error("Expected entry without outlet to be product level")
	}
	if (DecisionTraceEntry{ProductID: "SKU-1", OutletID: "S1"}).IsProductLevel() {
		t.Error("Expected entry with outlet to be outlet level")
	}
}
