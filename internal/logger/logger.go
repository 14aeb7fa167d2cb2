package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coffersTech/eventdeck/internal/config"
)

// New builds the process logger:
// - console gets everything from the configured level up;
// - the optional file gets Error+ only;
// - with Sentry enabled, Error+ entries are also reported there.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	consoleLevel := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := consoleLevel.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	fileLevel := zapcore.ErrorLevel

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	newEncoder := zapcore.NewConsoleEncoder
	if cfg.JSON {
		newEncoder = zapcore.NewJSONEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(encoderCfg), zapcore.AddSync(os.Stdout), consoleLevel),
	}

	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir %s: %w", dir, err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder(encoderCfg), zapcore.AddSync(f), fileLevel))
	}

	logger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(fileLevel),
	)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			fmt.Fprintf(os.Stderr, "Sentry init failed: %v\n", err)
		} else {
			logger = logger.WithOptions(zap.Hooks(sentryHook))
		}
	}

	return logger, nil
}

func sentryHook(entry zapcore.Entry) error {
	if entry.Level >= zapcore.ErrorLevel {
		sentry.CaptureMessage(fmt.Sprintf("%s [%s] %s", entry.Caller.TrimmedPath(), entry.LoggerName, entry.Message))
		sentry.Flush(2 * time.Second)
	}
	return nil
}
