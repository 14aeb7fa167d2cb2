package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hpcloud/tail"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/model"
)

// TailSource follows an append-only JSONL file and keeps the newest
// Retention events in memory. Fetches serve from memory.
type TailSource struct {
	Path      string
	Retention int

	mu      sync.RWMutex
	events  []model.Event // ring buffer once full
	next    int
	full    bool
	updates chan struct{}

	t      *tail.Tail
	parser fastjson.Parser
	logger *zap.Logger
}

// NewTailSource creates a tail source; call Start to begin following.
func NewTailSource(path string, retention int, logger *zap.Logger) *TailSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 10000
	}
	return &TailSource{
		Path:      path,
		Retention: retention,
		events:    make([]model.Event, 0, retention),
		updates:   make(chan struct{}, 1),
		logger:    logger,
	}
}

// Start tails the file from its beginning until ctx is cancelled.
func (s *TailSource) Start(ctx context.Context) error {
	t, err := tail.TailFile(s.Path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("tail %s: %w", s.Path, err)
	}
	s.t = t
	s.logger.Info("tailing events", zap.String("file", s.Path), zap.Int("retention", s.Retention))
	go s.readTail(ctx)
	return nil
}

// Stop stops following the file.
func (s *TailSource) Stop() error {
	if s.t == nil {
		return nil
	}
	return s.t.Stop()
}

// Updates signals, without blocking the reader, that new events arrived.
func (s *TailSource) Updates() <-chan struct{} {
	return s.updates
}

func (s *TailSource) readTail(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in tail reader recovered", zap.Any("error", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-s.t.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				s.logger.Warn("tail error", zap.String("file", s.Path), zap.Error(line.Err))
				continue
			}
			text := strings.ReplaceAll(line.Text, "\x00", "")
			if strings.TrimSpace(text) == "" {
				continue
			}
			e, ok := decodeLine(&s.parser, []byte(text))
			if !ok {
				s.logger.Warn("skipped malformed line", zap.String("file", s.Path))
				continue
			}
			s.append(e)
		}
	}
}

func (s *TailSource) append(e model.Event) {
	s.mu.Lock()
	if !s.full {
		s.events = append(s.events, e)
		if len(s.events) == s.Retention {
			s.full = true
		}
	} else {
		s.events[s.next] = e
		s.next = (s.next + 1) % s.Retention
	}
	s.mu.Unlock()

	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Len reports how many events are retained.
func (s *TailSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// FetchEvents implements controller.Fetcher. Events come back oldest first.
func (s *TailSource) FetchEvents(ctx context.Context, scope string) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.Event, 0, len(s.events))
	out = append(out, s.events[s.next:]...)
	out = append(out, s.events[:s.next]...)
	s.mu.RUnlock()
	return filterScope(out, scope), nil
}
