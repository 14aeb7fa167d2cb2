package controller

import (
	"github.com/coffersTech/eventdeck/internal/engine"
	"github.com/coffersTech/eventdeck/internal/model"
)

// Row is one visible event together with its display strings.
type Row struct {
	model.Event
	DisplayTime   string `json:"displayTime"`
	DisplayFields string `json:"displayFields"`
}

// ViewModel is everything the presentation layer needs to render a view.
type ViewModel struct {
	VisibleEvents   []Row             `json:"visibleEvents"`
	Filters         engine.Criteria   `json:"filters"`
	Pagination      engine.Pagination `json:"pagination"`
	IsLoading       bool              `json:"isLoading"`
	SourceOptions   []string          `json:"sourceOptions"`
	SeverityOptions []string          `json:"severityOptions"`
	SourceCounts    map[string]int    `json:"sourceCounts"`
	SeverityCounts  map[string]int    `json:"severityCounts"`
	FilteredCount   int               `json:"filteredCount"`

	// Timeline of the filtered events
	HistogramInterval int64                   `json:"histogramInterval"`
	Histogram         []engine.HistogramPoint `json:"histogram"`
	HistogramUndated  int                     `json:"histogramUndated"`

	NodeMap    model.NodeMap `json:"nodeMap,omitempty"`
	FetchError string        `json:"fetchError,omitempty"`
}

type viewInput struct {
	filtered   []model.Event
	criteria   engine.Criteria
	pagination engine.Pagination
	state      State
	options    engine.Options
	nodeMap    model.NodeMap
	fetchErr   error
	normalizer *engine.TimestampNormalizer
}

// histogramBuckets caps the number of timeline buckets per view.
const histogramBuckets = 60

// deriveView is a pure function of its input.
func deriveView(in viewInput) ViewModel {
	start, end := engine.WindowFor(in.pagination.PageNo, in.pagination.PageSize)
	page := engine.Window(in.filtered, start, end)

	rows := make([]Row, len(page))
	for i := range page {
		rows[i] = Row{
			Event:         page[i],
			DisplayTime:   in.normalizer.Normalize(&page[i]),
			DisplayFields: engine.FormatCustomFields(&page[i]),
		}
	}

	vm := ViewModel{
		VisibleEvents:   rows,
		Filters:         in.criteria,
		Pagination:      in.pagination,
		IsLoading:       in.state == StateLoading,
		SourceOptions:   in.options.SourceOptions,
		SeverityOptions: in.options.SeverityOptions,
		SourceCounts:    in.options.SourceCounts,
		SeverityCounts:  in.options.SeverityCounts,
		FilteredCount:   len(in.filtered),
		NodeMap:         in.nodeMap,
	}
	vm.HistogramInterval, vm.Histogram, vm.HistogramUndated = engine.EventHistogram(in.filtered, histogramBuckets)
	if in.fetchErr != nil {
		vm.FetchError = in.fetchErr.Error()
	}
	return vm
}
