package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/controller"
	"github.com/coffersTech/eventdeck/internal/engine"
	"github.com/coffersTech/eventdeck/internal/model"
)

var ErrViewNotFound = errors.New("view not found")

// View is one mounted event view.
type View struct {
	ID         string
	Scope      string
	OpenedAt   int64
	LastSeenAt int64
	Controller *controller.Controller
}

// Summary is the listing form of a view.
type Summary struct {
	ID            string `json:"id"`
	Scope         string `json:"scope"`
	OpenedAt      int64  `json:"opened_at"`
	LastSeenAt    int64  `json:"last_seen_at"`
	IsLoading     bool   `json:"isLoading"`
	FilteredCount int    `json:"filteredCount"`
}

// OpenRequest describes a view to mount.
type OpenRequest struct {
	Scope          string   `json:"scope"`
	SeverityLevels []string `json:"severityLevels"`
	PageSize       int      `json:"pageSize"`
	// Wait makes Open fetch synchronously instead of in the background.
	Wait bool `json:"wait"`
}

// Defaults apply to every view opened through a Store.
type Defaults struct {
	PageSize       int
	SeverityLevels []string
	NodeMap        model.NodeMap
	Normalizer     *engine.TimestampNormalizer
	RefreshTimeout time.Duration
}

// Store holds the live views, one controller each, all sharing one fetcher.
type Store struct {
	mu    sync.RWMutex
	views map[string]*View

	fetcher  controller.Fetcher
	defaults Defaults
	logger   *zap.Logger
}

// NewStore creates a new view store.
func NewStore(fetcher controller.Fetcher, defaults Defaults, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.PageSize <= 0 {
		defaults.PageSize = engine.DefaultPageSize
	}
	if defaults.RefreshTimeout <= 0 {
		defaults.RefreshTimeout = 30 * time.Second
	}
	return &Store{
		views:    make(map[string]*View),
		fetcher:  fetcher,
		defaults: defaults,
		logger:   logger,
	}
}

// Open mounts a new view and starts its initial fetch. Request fields left
// empty fall back to the store defaults.
func (s *Store) Open(ctx context.Context, req OpenRequest) *View {
	severities := req.SeverityLevels
	if severities == nil {
		severities = s.defaults.SeverityLevels
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = s.defaults.PageSize
	}

	id := uuid.NewString()
	now := time.Now().Unix()
	v := &View{
		ID:         id,
		Scope:      req.Scope,
		OpenedAt:   now,
		LastSeenAt: now,
		Controller: controller.New(s.fetcher, controller.Options{
			Scope:                 req.Scope,
			DefaultSeverityLevels: severities,
			PageSize:              pageSize,
			NodeMap:               s.defaults.NodeMap,
			Normalizer:            s.defaults.Normalizer,
			Logger:                s.logger.With(zap.String("view", id)),
		}),
	}

	s.mu.Lock()
	s.views[id] = v
	s.mu.Unlock()

	s.logger.Info("View opened", zap.String("view", id), zap.String("scope", req.Scope))

	if req.Wait {
		s.refresh(ctx, v)
	} else {
		go s.refresh(context.Background(), v)
	}
	return v
}

func (s *Store) refresh(ctx context.Context, v *View) {
	ctx, cancel := context.WithTimeout(ctx, s.defaults.RefreshTimeout)
	defer cancel()
	v.Controller.Refresh(ctx)
}

// Get returns the view with id and marks it as seen.
func (s *Store) Get(id string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	v.LastSeenAt = time.Now().Unix()
	return v, nil
}

// List returns summaries of all views, oldest first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	list := make([]Summary, 0, len(s.views))
	views := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		list = append(list, Summary{ID: v.ID, Scope: v.Scope, OpenedAt: v.OpenedAt, LastSeenAt: v.LastSeenAt})
		views = append(views, v)
	}
	s.mu.RUnlock()

	// Controller locks are taken outside the store lock.
	for i, v := range views {
		vm := v.Controller.View()
		list[i].IsLoading = vm.IsLoading
		list[i].FilteredCount = vm.FilteredCount
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].OpenedAt != list[j].OpenedAt {
			return list[i].OpenedAt < list[j].OpenedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Close tears down the view with id.
func (s *Store) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[id]; !ok {
		return ErrViewNotFound
	}
	delete(s.views, id)
	s.logger.Info("View closed", zap.String("view", id))
	return nil
}

// RefreshAll refreshes every open view in parallel and returns how many
// views were refreshed.
func (s *Store) RefreshAll(ctx context.Context) int {
	s.mu.RLock()
	views := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, v := range views {
		wg.Add(1)
		go func(v *View) {
			defer wg.Done()
			s.refresh(ctx, v)
		}(v)
	}
	wg.Wait()
	return len(views)
}

// PruneStale removes views that haven't been seen for a duration.
func (s *Store) PruneStale(timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().Unix()
	count := 0
	timeoutSec := int64(timeout.Seconds())

	for id, v := range s.views {
		if now-v.LastSeenAt > timeoutSec {
			delete(s.views, id)
			count++
		}
	}
	if count > 0 {
		s.logger.Info("Pruned idle views", zap.Int("count", count))
	}
	return count
}

// StartCleanupLoop starts a background goroutine to prune idle views.
func (s *Store) StartCleanupLoop(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.PruneStale(timeout)
			case <-ctx.Done():
				return
			}
		}
	}()
}
