package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/model"
)

// Aggregator performs a scatter-gather fetch across several REST backends.
type Aggregator struct {
	Nodes  []*HTTPSource
	logger *zap.Logger
}

// NewAggregator creates one HTTPSource per node URL sharing the same paths.
func NewAggregator(nodes []string, scopePath, globalPath string, timeout time.Duration, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{logger: logger}
	for _, node := range nodes {
		a.Nodes = append(a.Nodes, NewHTTPSource(node, scopePath, globalPath, timeout, logger.With(zap.String("node", node))))
	}
	return a
}

// FetchEvents queries every node in parallel and merges the results newest
// first. Failing nodes are logged and skipped; an error is returned only when
// every node fails.
func (a *Aggregator) FetchEvents(ctx context.Context, scope string) ([]model.Event, error) {
	if len(a.Nodes) == 0 {
		return nil, errors.New("aggregator has no nodes")
	}

	var (
		all  = []model.Event{}
		errs []error
		mu   sync.Mutex
		wg   sync.WaitGroup
	)

	for _, node := range a.Nodes {
		wg.Add(1)
		go func(n *HTTPSource) {
			defer wg.Done()
			events, err := n.FetchEvents(ctx, scope)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.logger.Warn("node fetch failed", zap.String("node", n.BaseURL), zap.Error(err))
				errs = append(errs, err)
				return
			}
			all = append(all, events...)
		}(node)
	}
	wg.Wait()

	if len(errs) == len(a.Nodes) {
		return nil, fmt.Errorf("all %d nodes failed: %w", len(a.Nodes), errors.Join(errs...))
	}

	// Merge-sort by timestamp descending
	model.SortNewestFirst(all)
	return all, nil
}
