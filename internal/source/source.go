package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/config"
	"github.com/coffersTech/eventdeck/internal/controller"
)

// Source is a fetcher plus its lifecycle. Start and Close are no-ops for
// stateless sources.
type Source struct {
	controller.Fetcher

	// WatchPath is the file whose changes should refresh open views.
	WatchPath string
	// Updates, when non-nil, signals that new events are available.
	Updates <-chan struct{}

	start func(ctx context.Context) error
	close func() error
}

// Start begins any background work of the source.
func (s *Source) Start(ctx context.Context) error {
	if s.start == nil {
		return nil
	}
	return s.start(ctx)
}

// Close releases the source.
func (s *Source) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// New builds the source selected by cfg.Kind.
func New(cfg config.SourceConfig, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lg := logger.Named("source").With(zap.String("kind", cfg.Kind))

	switch cfg.Kind {
	case config.SourceHTTP:
		h := cfg.HTTP
		return &Source{Fetcher: NewHTTPSource(h.BaseURL, h.ScopePath, h.GlobalPath, h.Timeout, lg)}, nil

	case config.SourceCluster:
		h := cfg.HTTP
		return &Source{Fetcher: NewAggregator(cfg.Cluster.Nodes, h.ScopePath, h.GlobalPath, h.Timeout, lg)}, nil

	case config.SourceClickHouse:
		ch, err := NewClickHouseSource(cfg.ClickHouse, lg)
		if err != nil {
			return nil, err
		}
		return &Source{Fetcher: ch, close: ch.Close}, nil

	case config.SourceFile:
		fs, err := NewFileSource(cfg.File.Path, lg)
		if err != nil {
			return nil, err
		}
		src := &Source{Fetcher: fs, close: fs.Close}
		if cfg.File.Watch {
			src.WatchPath = cfg.File.Path
		}
		return src, nil

	case config.SourceTail:
		ts := NewTailSource(cfg.Tail.Path, cfg.Tail.Retention, lg)
		return &Source{Fetcher: ts, Updates: ts.Updates(), start: ts.Start, close: ts.Stop}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}
