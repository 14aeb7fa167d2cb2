package engine

import (
	"encoding/json"
	"math"
	"time"

	"github.com/coffersTech/eventdeck/internal/model"
)

// TimestampLayout is the fixed display format (YYYY-MM-DD HH:mm:ss).
const TimestampLayout = "2006-01-02 15:04:05"

// FallbackDisplay is shown for values that cannot be rendered.
const FallbackDisplay = "-"

// Millisecond bounds of years 0000 and 9999.
const (
	minDisplayMillis = -62167219200000
	maxDisplayMillis = 253402300799999
)

// TimestampNormalizer renders event timestamps for display.
type TimestampNormalizer struct {
	loc *time.Location
}

// NewTimestampNormalizer formats in loc, or in the local zone when loc is nil.
func NewTimestampNormalizer(loc *time.Location) *TimestampNormalizer {
	if loc == nil {
		loc = time.Local
	}
	return &TimestampNormalizer{loc: loc}
}

// Normalize returns the pre-formatted timestamp when present, otherwise the
// epoch-seconds timestamp floored to milliseconds and formatted with
// TimestampLayout. Unrepresentable values yield FallbackDisplay.
func (n *TimestampNormalizer) Normalize(e *model.Event) string {
	if e.FormattedTimestamp != "" {
		return e.FormattedTimestamp
	}
	if !displayable(e.Timestamp) {
		return FallbackDisplay
	}
	millis := math.Floor(e.Timestamp * 1000)
	return time.UnixMilli(int64(millis)).In(n.loc).Format(TimestampLayout)
}

// displayable reports whether ts, in epoch seconds, renders as a date
// between years 0000 and 9999.
func displayable(ts float64) bool {
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return false
	}
	millis := math.Floor(ts * 1000)
	return millis >= minDisplayMillis && millis <= maxDisplayMillis
}

// FormatCustomFields renders custom fields as compact JSON, or
// FallbackDisplay when there are none.
func FormatCustomFields(e *model.Event) string {
	if len(e.CustomFields) == 0 {
		return FallbackDisplay
	}
	// encoding/json sorts map keys
	b, err := json.Marshal(e.CustomFields)
	if err != nil {
		return FallbackDisplay
	}
	return string(b)
}
