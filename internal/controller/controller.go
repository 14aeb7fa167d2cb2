package controller

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/engine"
	"github.com/coffersTech/eventdeck/internal/model"
)

// Fetcher is the data-fetch collaborator. An empty scope asks for the
// events of every scope.
type Fetcher interface {
	FetchEvents(ctx context.Context, scope string) ([]model.Event, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, scope string) ([]model.Event, error)

func (f FetcherFunc) FetchEvents(ctx context.Context, scope string) ([]model.Event, error) {
	return f(ctx, scope)
}

// State is the loading state of a view.
type State int

const (
	StateLoading State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "loading"
}

// Options configures a Controller.
type Options struct {
	Scope                 string // Empty for all scopes
	DefaultSeverityLevels []string
	PageSize              int
	NodeMap               model.NodeMap
	Normalizer            *engine.TimestampNormalizer
	Logger                *zap.Logger
}

// Controller owns one view: the fetched events, the filter criteria and the
// pagination. All state changes go through UpdateFilter, SetPageSize,
// GoToPage and Refresh; each of them returns the re-derived view.
type Controller struct {
	mu sync.Mutex

	fetcher    Fetcher
	scope      string
	nodeMap    model.NodeMap
	normalizer *engine.TimestampNormalizer
	logger     *zap.Logger

	filter *engine.FilterEngine
	pager  *engine.Paginator

	events   []model.Event
	options  engine.Options
	state    State
	fetchErr error

	// Fetch generations: started is bumped per Refresh, applied is the
	// newest generation whose result replaced events.
	started uint64
	applied uint64

	view ViewModel
}

// New creates a controller in the Loading state. Call Refresh to fetch.
func New(fetcher Fetcher, opts Options) *Controller {
	if opts.Normalizer == nil {
		opts.Normalizer = engine.NewTimestampNormalizer(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		fetcher:    fetcher,
		scope:      opts.Scope,
		nodeMap:    opts.NodeMap,
		normalizer: opts.Normalizer,
		logger:     opts.Logger,
		filter:     engine.NewFilterEngine(opts.DefaultSeverityLevels),
		pager:      engine.NewPaginator(opts.PageSize),
		events:     []model.Event{},
		options:    engine.DeriveOptions(nil),
		state:      StateLoading,
	}
	c.recomputeLocked()
	return c
}

// Scope returns the scope this view was mounted for.
func (c *Controller) Scope() string {
	return c.scope
}

// View returns the latest derived view.
func (c *Controller) View() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Refresh fetches the collection and re-derives the view. A failed fetch
// leaves an empty collection and still leaves the Loading state. When
// refreshes overlap, a response older than one already applied is dropped.
func (c *Controller) Refresh(ctx context.Context) ViewModel {
	c.mu.Lock()
	c.started++
	gen := c.started
	c.state = StateLoading
	c.recomputeLocked()
	c.mu.Unlock()

	events, err := c.fetcher.FetchEvents(ctx, c.scope)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.applied {
		c.logger.Debug("Dropping superseded fetch result",
			zap.Uint64("generation", gen), zap.Uint64("applied", c.applied))
		return c.view
	}

	if err != nil {
		c.logger.Warn("Event fetch failed, showing empty collection",
			zap.String("scope", c.scope), zap.Error(err))
		events = nil
	}
	c.applyLocked(gen, events, err)
	return c.view
}

func (c *Controller) applyLocked(gen uint64, events []model.Event, err error) {
	if events == nil {
		events = []model.Event{}
	}
	// Newest first
	model.SortNewestFirst(events)

	c.applied = gen
	c.events = events
	c.fetchErr = err
	c.options = engine.DeriveOptions(events)
	if gen == c.started {
		c.state = StateReady
	}
	c.pager.Reset()
	c.recomputeLocked()

	c.logger.Debug("Applied event collection",
		zap.String("scope", c.scope),
		zap.Int("events", len(events)),
		zap.Int("filtered", c.view.FilteredCount))
}

// UpdateFilter changes one criterion and moves back to the first page.
// An unknown key or an invalid query leaves the view unchanged.
func (c *Controller) UpdateFilter(key, value string) (ViewModel, error) {
	criterion, err := engine.ParseCriterionKey(key)
	if err != nil {
		return c.View(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.filter.Update(criterion, value); err != nil {
		return c.view, err
	}
	c.pager.Reset()
	c.recomputeLocked()
	return c.view, nil
}

// SetPageSize changes the page size and moves back to the first page.
func (c *Controller) SetPageSize(pageSize int) (ViewModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.pager.SetPageSize(pageSize); err != nil {
		return c.view, err
	}
	c.pager.Reset()
	c.recomputeLocked()
	return c.view, nil
}

// GoToPage moves to the requested page, clamped into the valid range.
func (c *Controller) GoToPage(pageNo int) ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pager.GoToPage(pageNo)
	c.view = deriveView(c.inputLocked(c.filter.Apply(c.events)))
	return c.view
}

// recomputeLocked re-applies the filter, refreshes the page count and
// rebuilds the view.
func (c *Controller) recomputeLocked() {
	filtered := c.filter.Apply(c.events)
	c.pager.Recompute(len(filtered), c.pager.State().PageSize)
	c.view = deriveView(c.inputLocked(filtered))
}

func (c *Controller) inputLocked(filtered []model.Event) viewInput {
	return viewInput{
		filtered:   filtered,
		criteria:   c.filter.Criteria(),
		pagination: c.pager.State(),
		state:      c.state,
		options:    c.options,
		nodeMap:    c.nodeMap,
		fetchErr:   c.fetchErr,
		normalizer: c.normalizer,
	}
}
