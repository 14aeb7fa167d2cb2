package engine

import (
	"errors"
	"sort"
	"testing"
	"testing/quick"

	"github.com/coffersTech/eventdeck/internal/model"
)

func sampleEvents() []model.Event {
	return []model.Event{
		{Severity: "ERROR", SourceType: "GCS", Message: "Connection Timeout occurred", CustomFields: map[string]interface{}{"job_id": "01000000"}},
		{Severity: "INFO", SourceType: "GCS", Message: "node added", CustomFields: map[string]interface{}{"node_id": "abc"}},
		{Severity: "WARNING", SourceType: "CORE_WORKER", Message: "slow task", CustomFields: map[string]interface{}{"job_id": "02000000"}},
		{Severity: "ERROR", SourceType: "RAYLET", Message: "worker died", CustomFields: map[string]interface{}{"job_id": float64(7)}},
		{Severity: "INFO", SourceType: "CORE_WORKER", Message: "task finished"},
	}
}

func TestUpdateToggleList(t *testing.T) {
	f := NewFilterEngine(nil)

	if changed, err := f.Update(KeySourceType, "GCS"); err != nil || !changed {
		t.Fatalf("toggle on: changed=%v err=%v", changed, err)
	}
	if changed, _ := f.Update(KeySourceType, "RAYLET"); !changed {
		t.Fatal("second toggle on should change")
	}
	if got := f.Criteria().SourceType; len(got) != 2 || got[0] != "GCS" || got[1] != "RAYLET" {
		t.Fatalf("unexpected source types: %v", got)
	}
	if changed, _ := f.Update(KeySourceType, "GCS"); !changed {
		t.Fatal("toggle off should change")
	}
	if got := f.Criteria().SourceType; len(got) != 1 || got[0] != "RAYLET" {
		t.Fatalf("unexpected source types after toggle off: %v", got)
	}
}

func TestUpdateEmptyListValueIsNoop(t *testing.T) {
	f := NewFilterEngine([]string{"ERROR"})
	for _, v := range []string{"", "   "} {
		changed, err := f.Update(KeySeverityLevel, v)
		if err != nil || changed {
			t.Fatalf("Update(%q) changed=%v err=%v", v, changed, err)
		}
	}
	if got := f.Criteria().SeverityLevel; len(got) != 1 || got[0] != "ERROR" {
		t.Fatalf("defaults lost: %v", got)
	}
}

func TestUpdateScalarReplaceAndClear(t *testing.T) {
	f := NewFilterEngine(nil)
	f.Update(KeyMessage, "timeout")
	f.Update(KeyMessage, "died")
	if got := f.Criteria().Message; got != "died" {
		t.Fatalf("message = %q, want died", got)
	}
	if changed, _ := f.Update(KeyMessage, "died"); changed {
		t.Error("same value should not report a change")
	}
	f.Update(KeyMessage, "")
	if got := f.Criteria().Message; got != "" {
		t.Fatalf("message should be cleared, got %q", got)
	}
}

func TestUpdateErrors(t *testing.T) {
	f := NewFilterEngine(nil)

	if _, err := f.Update("colour", "red"); !errors.Is(err, ErrUnknownCriterion) {
		t.Errorf("expected ErrUnknownCriterion, got %v", err)
	}
	f.Update(KeyQuery, "severity:ERROR")
	if _, err := f.Update(KeyQuery, "severity:"); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
	if got := f.Criteria().Query; got != "severity:ERROR" {
		t.Errorf("invalid query must leave criterion untouched, got %q", got)
	}
}

func TestParseCriterionKey(t *testing.T) {
	tests := map[string]CriterionKey{
		"severity":      KeySeverityLevel,
		"severityLevel": KeySeverityLevel,
		"source":        KeySourceType,
		"sourceType":    KeySourceType,
		"entityName":    KeyEntityName,
		"entityId":      KeyEntityID,
		"message":       KeyMessage,
		"q":             KeyQuery,
	}
	for in, want := range tests {
		got, err := ParseCriterionKey(in)
		if err != nil || got != want {
			t.Errorf("ParseCriterionKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseCriterionKey("pageNo"); !errors.Is(err, ErrUnknownCriterion) {
		t.Errorf("expected ErrUnknownCriterion, got %v", err)
	}
}

func TestMatches(t *testing.T) {
	events := sampleEvents()

	tests := []struct {
		name    string
		updates [][2]string
		want    int
	}{
		{"no criteria", nil, 5},
		{"severity", [][2]string{{"severityLevel", "ERROR"}}, 2},
		{"severity or", [][2]string{{"severityLevel", "ERROR"}, {"severityLevel", "INFO"}}, 4},
		{"severity is case sensitive", [][2]string{{"severityLevel", "error"}}, 0},
		{"source and severity", [][2]string{{"sourceType", "GCS"}, {"severityLevel", "ERROR"}}, 1},
		{"message ignores case", [][2]string{{"message", "timeout"}}, 1},
		{"message substring", [][2]string{{"message", "TASK"}}, 2},
		{"entity id", [][2]string{{"entityName", "job"}, {"entityId", "02000000"}}, 1},
		{"entity numeric id", [][2]string{{"entityName", "job"}, {"entityId", "7"}}, 1},
		{"entity wildcard", [][2]string{{"entityName", "job"}, {"entityId", "*"}}, 5},
		{"entity name only", [][2]string{{"entityName", "job"}}, 5},
		{"entity id only", [][2]string{{"entityId", "7"}}, 5},
		{"query", [][2]string{{"query", "NOT sourceType:GCS AND job_id:*"}}, 0},
		{"query on custom field", [][2]string{{"query", `node_id:"abc" OR msg~died`}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilterEngine(nil)
			for _, u := range tt.updates {
				key, err := ParseCriterionKey(u[0])
				if err != nil {
					t.Fatal(err)
				}
				if _, err := f.Update(key, u[1]); err != nil {
					t.Fatalf("Update(%s, %s): %v", u[0], u[1], err)
				}
			}
			if got := len(f.Apply(events)); got != tt.want {
				t.Errorf("matched %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestMatchesErrorScenario(t *testing.T) {
	var events []model.Event
	for i := 0; i < 10; i++ {
		sev := "INFO"
		if i%3 == 0 {
			sev = "ERROR"
		}
		events = append(events, model.Event{Severity: sev})
	}

	f := NewFilterEngine([]string{"ERROR"})
	filtered := f.Apply(events)
	if len(filtered) != 4 {
		t.Fatalf("filtered count = %d, want 4", len(filtered))
	}
	if total := TotalPages(len(filtered), 10); total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	events := sampleEvents()
	f := NewFilterEngine([]string{"INFO"})
	got := f.Apply(events)
	if len(got) != 2 || got[0].Message != "node added" || got[1].Message != "task finished" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

// TestPropertyToggleInvolution verifies that toggling the same value twice
// restores the original membership.
func TestPropertyToggleInvolution(t *testing.T) {
	f := func(initial []string, value string) bool {
		engine := NewFilterEngine(initial)
		before := engine.Criteria().SeverityLevel

		engine.Update(KeySeverityLevel, value)
		engine.Update(KeySeverityLevel, value)

		return sameSet(before, engine.Criteria().SeverityLevel)
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a = append([]string{}, a...)
	b = append([]string{}, b...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
