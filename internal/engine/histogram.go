package engine

import (
	"math"
	"sort"

	"github.com/coffersTech/eventdeck/internal/model"
)

// HistogramPoint is the event count of one time bucket. Time is the bucket
// start in epoch seconds.
type HistogramPoint struct {
	Time  int64 `json:"time"`
	Count int   `json:"count"`
}

// histogramSteps are the bucket widths AutoInterval picks from, in seconds.
var histogramSteps = []int64{1, 5, 10, 30, 60, 300, 600, 1800, 3600, 3 * 3600, 6 * 3600, 12 * 3600, 86400, 7 * 86400}

// weekSeconds is the largest table step; wider spans use multiples of it.
const weekSeconds = 7 * 86400

// AutoInterval picks the smallest step that spreads [minTs, maxTs] over at
// most maxBuckets buckets. Spans too wide for the table get a width of
// ceil(span/maxBuckets) rounded up to whole weeks.
func AutoInterval(minTs, maxTs float64, maxBuckets int) int64 {
	if maxBuckets <= 0 {
		maxBuckets = 60
	}
	lo, hi := int64(math.Floor(minTs)), int64(math.Floor(maxTs))
	if hi < lo {
		lo, hi = hi, lo
	}
	for _, step := range histogramSteps {
		if bucketCount(lo, hi, step) <= int64(maxBuckets) {
			return step
		}
	}

	width := int64(math.Ceil(float64(hi-lo) / float64(maxBuckets)))
	width = (width + weekSeconds - 1) / weekSeconds * weekSeconds
	if width < weekSeconds {
		width = weekSeconds
	}
	// Bucket alignment can add one bucket past the estimate
	for bucketCount(lo, hi, width) > int64(maxBuckets) {
		width += weekSeconds
	}
	return width
}

// bucketCount is the number of step-aligned buckets covering [lo, hi].
func bucketCount(lo, hi, step int64) int64 {
	return bucketStart(hi, step)/step - bucketStart(lo, step)/step + 1
}

// bucketStart floors sec to a multiple of interval, negative values included.
func bucketStart(sec, interval int64) int64 {
	bucket := sec / interval * interval
	if sec < 0 && sec%interval != 0 {
		bucket -= interval
	}
	return bucket
}

// ComputeHistogram aggregates event counts over time buckets of interval
// seconds. Events with non-finite timestamps are skipped. Empty buckets are
// not emitted; points come back in time order.
func ComputeHistogram(events []model.Event, interval int64) []HistogramPoint {
	if interval <= 0 || len(events) == 0 {
		return []HistogramPoint{}
	}

	buckets := make(map[int64]int)
	for i := range events {
		ts := events[i].Timestamp
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			continue
		}
		buckets[bucketStart(int64(math.Floor(ts)), interval)]++
	}

	points := make([]HistogramPoint, 0, len(buckets))
	for t, c := range buckets {
		points = append(points, HistogramPoint{Time: t, Count: c})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time < points[j].Time
	})
	return points
}

// EventHistogram buckets events with an interval chosen by AutoInterval.
// Records without a usable date (timestamp not positive, or outside the
// displayable range) are left out of the buckets and counted as undated.
func EventHistogram(events []model.Event, maxBuckets int) (interval int64, points []HistogramPoint, undated int) {
	dated := make([]model.Event, 0, len(events))
	minTs, maxTs := math.Inf(1), math.Inf(-1)
	for i := range events {
		ts := events[i].Timestamp
		if ts <= 0 || !displayable(ts) {
			undated++
			continue
		}
		dated = append(dated, events[i])
		minTs = math.Min(minTs, ts)
		maxTs = math.Max(maxTs, ts)
	}
	if len(dated) == 0 {
		return 0, []HistogramPoint{}, undated
	}
	interval = AutoInterval(minTs, maxTs, maxBuckets)
	return interval, ComputeHistogram(dated, interval), undated
}
