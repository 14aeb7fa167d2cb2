package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/config"
	"github.com/coffersTech/eventdeck/internal/engine"
	"github.com/coffersTech/eventdeck/internal/logger"
	"github.com/coffersTech/eventdeck/internal/model"
	"github.com/coffersTech/eventdeck/internal/pkg/security"
	"github.com/coffersTech/eventdeck/internal/registry"
	"github.com/coffersTech/eventdeck/internal/server"
	"github.com/coffersTech/eventdeck/internal/source"
	"github.com/coffersTech/eventdeck/internal/watcher"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-token" {
		if err := hashToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lg, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	os.Exit(exitCode(lg, run(cfg, lg)))
}

// exitCode logs a run error and flushes buffered log entries. os.Exit skips
// deferred calls, so the flush has to happen here.
func exitCode(lg *zap.Logger, err error) int {
	code := 0
	if err != nil {
		lg.Error("eventdeck stopped", zap.Error(err))
		code = 1
	}
	_ = lg.Sync()
	return code
}

// hashToken prints a bcrypt hash for auth.token_hash. Without an argument a
// fresh token is generated and printed first.
func hashToken(args []string) error {
	token := ""
	if len(args) > 0 {
		token = args[0]
	} else {
		t, err := security.GenerateToken()
		if err != nil {
			return err
		}
		token = t
		fmt.Println("token:", token)
	}
	hash, err := security.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Println("token_hash:", hash)
	return nil
}

func loadNodeMap(path string) (model.NodeMap, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var nodes model.NodeMap
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return nodes, nil
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lg.Info("eventdeck starting",
		zap.String("listen", cfg.Listen),
		zap.String("source", cfg.Source.Kind),
		zap.Int("page_size", cfg.PageSize))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	nodes, err := loadNodeMap(cfg.NodeMapFile)
	if err != nil {
		return fmt.Errorf("node map: %w", err)
	}
	verifier, err := security.NewVerifier(cfg.Auth.TokenHash)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if verifier == nil {
		lg.Warn("auth.token_hash not set, view API is unauthenticated")
	}

	// 1. Event source
	src, err := source.New(cfg.Source, lg)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("start source: %w", err)
	}

	// 2. View registry with idle cleanup
	store := registry.NewStore(src, registry.Defaults{
		PageSize:       cfg.PageSize,
		SeverityLevels: cfg.DefaultSeverity,
		NodeMap:        nodes,
		Normalizer:     engine.NewTimestampNormalizer(loc),
	}, lg.Named("registry"))
	store.StartCleanupLoop(ctx, time.Minute, cfg.ViewIdleTimeout)

	// 3. Refresh open views when the source changes
	refreshAll := func(ctx context.Context) {
		n := store.RefreshAll(ctx)
		lg.Debug("Refreshed views after source change", zap.Int("views", n))
	}
	if src.WatchPath != "" {
		w := watcher.New(src.WatchPath, refreshAll, lg.Named("watcher"))
		if err := w.Start(ctx); err != nil {
			return err
		}
	}
	if src.Updates != nil {
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			dirty := false
			for {
				select {
				case <-ctx.Done():
					return
				case <-src.Updates:
					dirty = true
				case <-ticker.C:
					if dirty {
						dirty = false
						refreshAll(ctx)
					}
				}
			}
		}()
	}

	// 4. HTTP server
	srv := server.NewAPIServer(store, verifier, lg.Named("http"))
	errCh := make(chan error, 1)
	go func() {
		lg.Info("Listening", zap.String("addr", cfg.Listen))
		errCh <- srv.Start(cfg.Listen)
	}()

	// 5. Graceful shutdown hook
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		lg.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown error", zap.Error(err))
	}

	lg.Info("eventdeck exited gracefully")
	return nil
}
