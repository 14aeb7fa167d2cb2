package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/coffersTech/eventdeck/internal/engine"
	"github.com/coffersTech/eventdeck/internal/model"
)

func makeEvents(n int) []model.Event {
	events := make([]model.Event, n)
	for i := range events {
		sev := "INFO"
		if i%5 == 0 {
			sev = "ERROR"
		}
		src := "GCS"
		if i%2 == 1 {
			src = "RAYLET"
		}
		events[i] = model.Event{
			Severity:   sev,
			SourceType: src,
			Timestamp:  float64(1700000000 + i),
			Message:    fmt.Sprintf("event %d", i),
		}
	}
	return events
}

func staticFetcher(events []model.Event) Fetcher {
	return FetcherFunc(func(ctx context.Context, scope string) ([]model.Event, error) {
		out := make([]model.Event, len(events))
		copy(out, events)
		return out, nil
	})
}

func newTestController(t *testing.T, events []model.Event, opts Options) *Controller {
	t.Helper()
	opts.Normalizer = engine.NewTimestampNormalizer(time.UTC)
	c := New(staticFetcher(events), opts)
	c.Refresh(context.Background())
	return c
}

func TestInitialState(t *testing.T) {
	c := New(staticFetcher(nil), Options{DefaultSeverityLevels: []string{"ERROR", "WARNING"}})
	v := c.View()
	if !v.IsLoading {
		t.Error("a new view must start loading")
	}
	if v.Pagination.PageNo != 1 || v.Pagination.PageSize != engine.DefaultPageSize || v.Pagination.Total != 0 {
		t.Errorf("unexpected initial pagination: %+v", v.Pagination)
	}
	if !reflect.DeepEqual(v.Filters.SeverityLevel, []string{"ERROR", "WARNING"}) {
		t.Errorf("default severities not applied: %v", v.Filters.SeverityLevel)
	}
	if len(v.Filters.SourceType) != 0 || v.Filters.Message != "" {
		t.Errorf("other criteria must start empty: %+v", v.Filters)
	}
}

func TestRefreshSortsNewestFirst(t *testing.T) {
	c := newTestController(t, makeEvents(25), Options{})
	v := c.View()
	if v.IsLoading {
		t.Fatal("view should be ready after refresh")
	}
	if v.Pagination.Total != 3 || v.FilteredCount != 25 {
		t.Fatalf("unexpected pagination: %+v count=%d", v.Pagination, v.FilteredCount)
	}
	if got := v.VisibleEvents[0].Message; got != "event 24" {
		t.Errorf("first row = %q, want newest event", got)
	}
	if got := v.VisibleEvents[0].DisplayTime; got != "2023-11-14 22:13:44" {
		t.Errorf("display time = %q", got)
	}
	if got := v.VisibleEvents[0].DisplayFields; got != "-" {
		t.Errorf("display fields = %q", got)
	}
}

func TestLastPageScenario(t *testing.T) {
	c := newTestController(t, makeEvents(25), Options{PageSize: 10})
	v := c.GoToPage(3)
	if v.Pagination.PageNo != 3 || len(v.VisibleEvents) != 5 {
		t.Fatalf("page 3: pageNo=%d rows=%d", v.Pagination.PageNo, len(v.VisibleEvents))
	}
	if got := v.VisibleEvents[4].Message; got != "event 0" {
		t.Errorf("last row = %q, want oldest event", got)
	}
}

func TestFilterUpdateResetsPage(t *testing.T) {
	c := newTestController(t, makeEvents(25), Options{})
	c.GoToPage(2)

	v, err := c.UpdateFilter("severity", "ERROR")
	if err != nil {
		t.Fatal(err)
	}
	if v.Pagination.PageNo != 1 || v.FilteredCount != 5 || v.Pagination.Total != 1 {
		t.Fatalf("unexpected view after filter: %+v count=%d", v.Pagination, v.FilteredCount)
	}

	// A no-op update still lands on page 1
	c.UpdateFilter("severity", "ERROR")
	if v := c.GoToPage(3); v.Pagination.PageNo != 3 {
		t.Fatalf("pageNo = %d, want 3", v.Pagination.PageNo)
	}
	v, _ = c.UpdateFilter("sourceType", "")
	if v.Pagination.PageNo != 1 {
		t.Fatalf("pageNo = %d after update, want 1", v.Pagination.PageNo)
	}
}

func TestUpdateFilterErrors(t *testing.T) {
	c := newTestController(t, makeEvents(5), Options{})
	c.GoToPage(1)
	before := c.View()

	if _, err := c.UpdateFilter("colour", "red"); !errors.Is(err, engine.ErrUnknownCriterion) {
		t.Errorf("expected ErrUnknownCriterion, got %v", err)
	}
	if _, err := c.UpdateFilter("query", "severity:"); !errors.Is(err, engine.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
	if after := c.View(); !reflect.DeepEqual(before.Filters, after.Filters) {
		t.Errorf("failed updates changed filters: %+v -> %+v", before.Filters, after.Filters)
	}
}

func TestOptionsIgnoreFilters(t *testing.T) {
	c := newTestController(t, makeEvents(25), Options{})
	before := c.View()

	after, _ := c.UpdateFilter("severityLevel", "ERROR")
	after, _ = c.UpdateFilter("sourceType", "GCS")

	if !reflect.DeepEqual(before.SourceOptions, after.SourceOptions) ||
		!reflect.DeepEqual(before.SeverityOptions, after.SeverityOptions) {
		t.Errorf("options changed with filters: %v/%v -> %v/%v",
			before.SourceOptions, before.SeverityOptions, after.SourceOptions, after.SeverityOptions)
	}
	if !reflect.DeepEqual(after.SeverityOptions, []string{"ERROR", "INFO"}) {
		t.Errorf("severity options = %v", after.SeverityOptions)
	}
}

func TestSetPageSize(t *testing.T) {
	c := newTestController(t, makeEvents(25), Options{})
	c.GoToPage(3)

	v, err := c.SetPageSize(5)
	if err != nil {
		t.Fatal(err)
	}
	if v.Pagination.PageNo != 1 || v.Pagination.Total != 5 || len(v.VisibleEvents) != 5 {
		t.Fatalf("unexpected view: %+v rows=%d", v.Pagination, len(v.VisibleEvents))
	}
	if _, err := c.SetPageSize(-1); !errors.Is(err, engine.ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
}

func TestFetchFailureDegradesToEmpty(t *testing.T) {
	c := New(FetcherFunc(func(ctx context.Context, scope string) ([]model.Event, error) {
		return nil, errors.New("connection refused")
	}), Options{})

	v := c.Refresh(context.Background())
	if v.IsLoading {
		t.Error("failed fetch must still leave the loading state")
	}
	if len(v.VisibleEvents) != 0 || v.Pagination.Total != 0 || v.Pagination.PageNo != 1 {
		t.Errorf("expected empty view, got %+v", v.Pagination)
	}
	if v.FetchError != "connection refused" {
		t.Errorf("fetch error = %q", v.FetchError)
	}
}

func TestRefreshPassesScope(t *testing.T) {
	var got string
	c := New(FetcherFunc(func(ctx context.Context, scope string) ([]model.Event, error) {
		got = scope
		return nil, nil
	}), Options{Scope: "64000000"})
	c.Refresh(context.Background())
	if got != "64000000" {
		t.Errorf("fetcher saw scope %q", got)
	}
}

func TestRefreshCollectionChangeResetsPage(t *testing.T) {
	var mu sync.Mutex
	n := 25
	c := New(FetcherFunc(func(ctx context.Context, scope string) ([]model.Event, error) {
		mu.Lock()
		defer mu.Unlock()
		return makeEvents(n), nil
	}), Options{})
	c.Refresh(context.Background())
	c.GoToPage(3)

	mu.Lock()
	n = 12
	mu.Unlock()
	v := c.Refresh(context.Background())
	if v.Pagination.PageNo != 1 || v.Pagination.Total != 2 {
		t.Fatalf("unexpected pagination after refresh: %+v", v.Pagination)
	}
}

func TestSupersededFetchIsDropped(t *testing.T) {
	slow := make(chan struct{})
	calls := 0
	var mu sync.Mutex

	c := New(FetcherFunc(func(ctx context.Context, scope string) ([]model.Event, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			<-slow
			return makeEvents(3), nil
		}
		return makeEvents(7), nil
	}), Options{})

	done := make(chan struct{})
	go func() {
		c.Refresh(context.Background())
		close(done)
	}()

	// Wait for the first fetch to be in flight
	for {
		mu.Lock()
		started := calls == 1
		mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	v := c.Refresh(context.Background())
	if v.FilteredCount != 7 || v.IsLoading {
		t.Fatalf("newer fetch should apply: count=%d loading=%v", v.FilteredCount, v.IsLoading)
	}

	close(slow)
	<-done

	if v := c.View(); v.FilteredCount != 7 || v.IsLoading {
		t.Fatalf("older fetch overwrote newer data: count=%d loading=%v", v.FilteredCount, v.IsLoading)
	}
}

func TestNodeMapPassThrough(t *testing.T) {
	nodes := model.NodeMap{"node-1": map[string]interface{}{"ip": "10.0.0.1"}}
	c := newTestController(t, makeEvents(1), Options{NodeMap: nodes})
	if got := c.View().NodeMap; !reflect.DeepEqual(got, nodes) {
		t.Errorf("node map = %v", got)
	}
}

func TestHistogramFollowsFilter(t *testing.T) {
	c := newTestController(t, makeEvents(25), Options{})
	v := c.View()
	if v.HistogramInterval != 1 {
		t.Errorf("interval = %d, want 1 for a 24s span", v.HistogramInterval)
	}
	if len(v.Histogram) != 25 {
		t.Fatalf("expected 25 buckets, got %d", len(v.Histogram))
	}

	v, _ = c.UpdateFilter("message", "event 1")
	total := 0
	for _, p := range v.Histogram {
		total += p.Count
	}
	if total != v.FilteredCount {
		t.Errorf("histogram covers %d events, filtered %d", total, v.FilteredCount)
	}
}

func TestRefreshSortsNonFiniteLast(t *testing.T) {
	events := makeEvents(6)
	events[2].Timestamp = math.NaN()
	events[4].Timestamp = math.Inf(1)
	c := newTestController(t, events, Options{})

	var got []string
	for _, row := range c.View().VisibleEvents {
		got = append(got, row.Message)
	}
	want := []string{"event 5", "event 3", "event 1", "event 0", "event 2", "event 4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if last := c.View().VisibleEvents[5].DisplayTime; last != engine.FallbackDisplay {
		t.Errorf("non-finite display time = %q", last)
	}
}
