package engine

import (
	"sort"

	"github.com/coffersTech/eventdeck/internal/model"
)

// Selector extracts one attribute from an event.
type Selector func(*model.Event) string

// SourceTypeOf selects the event source type.
func SourceTypeOf(e *model.Event) string { return e.SourceType }

// SeverityOf selects the event severity.
func SeverityOf(e *model.Event) string { return e.Severity }

// Options holds the filter suggestions derived from a full collection.
type Options struct {
	SourceOptions   []string       `json:"sourceOptions"`
	SeverityOptions []string       `json:"severityOptions"`
	SourceCounts    map[string]int `json:"sourceCounts"`   // e.g. "GCS": 12
	SeverityCounts  map[string]int `json:"severityCounts"` // e.g. "ERROR": 4
}

// DistinctValues returns the distinct non-empty values of field across
// events, sorted.
func DistinctValues(events []model.Event, field Selector) []string {
	return sortedKeys(Distribution(events, field))
}

// Distribution counts events per non-empty value of field.
func Distribution(events []model.Event, field Selector) map[string]int {
	dist := make(map[string]int)
	for i := range events {
		if v := field(&events[i]); v != "" {
			dist[v]++
		}
	}
	return dist
}

// DeriveOptions computes the suggestion lists. Pass the full fetched
// collection, not a filtered subset, so options never shrink with filters.
func DeriveOptions(events []model.Event) Options {
	sources := Distribution(events, SourceTypeOf)
	severities := Distribution(events, SeverityOf)
	return Options{
		SourceOptions:   sortedKeys(sources),
		SeverityOptions: sortedKeys(severities),
		SourceCounts:    sources,
		SeverityCounts:  severities,
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
