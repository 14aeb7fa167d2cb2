package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces bursts of writes into one callback.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls OnChange after the watched file is written, created or
// renamed into place. The parent directory is watched so that atomic
// replace-by-rename is seen.
type Watcher struct {
	Path     string
	Debounce time.Duration
	OnChange func(ctx context.Context)
	Logger   *zap.Logger

	fw *fsnotify.Watcher
}

// New creates a watcher for path.
func New(path string, onChange func(ctx context.Context), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		Path:     filepath.Clean(path),
		Debounce: DefaultDebounce,
		OnChange: onChange,
		Logger:   logger,
	}
}

// Start begins watching; events are handled until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.Path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.Path), err)
	}
	w.fw = fw
	w.Logger.Info("Watching file", zap.String("path", w.Path))
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.fw.Close()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.Path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.Logger.Debug("File changed", zap.String("path", w.Path), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			timerC = timer.C
			pending = true

		case <-timerC:
			timerC = nil
			if pending {
				pending = false
				w.OnChange(ctx)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.Logger.Error("Watcher error", zap.String("path", w.Path), zap.Error(err))
		}
	}
}
