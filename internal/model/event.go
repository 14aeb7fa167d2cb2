package model

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Event represents a single structured event record as fetched from a source.
// Events are treated as immutable once fetched.
type Event struct {
	Severity           string                 `json:"severity"`
	Timestamp          float64                `json:"timestamp"`           // Seconds since epoch, fractional allowed
	FormattedTimestamp string                 `json:"timeStamp,omitempty"` // Pre-rendered time, wins over Timestamp
	SourceType         string                 `json:"sourceType"`
	HostName           string                 `json:"hostName,omitempty"`
	SourceHostname     string                 `json:"sourceHostname,omitempty"`
	PID                int64                  `json:"pid,omitempty"`
	SourcePID          int64                  `json:"sourcePid,omitempty"`
	Message            string                 `json:"message"`
	CustomFields       map[string]interface{} `json:"customFields,omitempty"`
}

// NodeMap is the node/host lookup table handed to a view by its host
// application. It is passed through to the presentation layer untouched.
type NodeMap map[string]interface{}

// Field returns the custom field stored under key rendered as a string.
// The second result reports whether the field exists.
func (e *Event) Field(key string) (string, bool) {
	if e.CustomFields == nil {
		return "", false
	}
	v, ok := e.CustomFields[key]
	if !ok {
		return "", false
	}
	return FieldString(v), true
}

// FieldString renders a decoded JSON value for display and comparison.
func FieldString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Host returns the reporting host, preferring HostName over SourceHostname.
func (e *Event) Host() string {
	if e.HostName != "" {
		return e.HostName
	}
	return e.SourceHostname
}

// Accessors used by the NanoQL evaluator.

func (e *Event) GetSeverity() string   { return e.Severity }
func (e *Event) GetSourceType() string { return e.SourceType }
func (e *Event) GetHost() string       { return e.Host() }
func (e *Event) GetMessage() string    { return e.Message }
func (e *Event) GetTimestamp() float64 { return e.Timestamp }

// GetField resolves custom fields plus the pid columns for NanoQL lookups.
func (e *Event) GetField(key string) (string, bool) {
	switch key {
	case "pid":
		return strconv.FormatInt(e.PID, 10), e.PID != 0
	case "sourcePid":
		return strconv.FormatInt(e.SourcePID, 10), e.SourcePID != 0
	}
	return e.Field(key)
}

// NewerThan orders events newest first. Non-finite timestamps sort after
// every finite one and compare equal among themselves.
func NewerThan(a, b *Event) bool {
	aOK := !math.IsNaN(a.Timestamp) && !math.IsInf(a.Timestamp, 0)
	bOK := !math.IsNaN(b.Timestamp) && !math.IsInf(b.Timestamp, 0)
	if aOK != bOK {
		return aOK
	}
	return aOK && a.Timestamp > b.Timestamp
}

// SortNewestFirst sorts events in place, keeping the fetch order of equal
// timestamps.
func SortNewestFirst(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return NewerThan(&events[i], &events[j])
	})
}
