// Package logging provides structured logging for the engine, device, and
// control-surface packages: a JSON file logger rotated by lumberjack per
// conf.Setting().Log, and a human-readable console logger, both driven
// through the package-level Debug/Info/Warn/Error helpers.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/ChangeCaps/musix/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	humanLogger      *slog.Logger
	loggerMu         sync.RWMutex

	currentLogLevel = new(slog.LevelVar)
	initOnce        sync.Once
)

// defaultReplaceAttr formats timestamps to second precision and truncates
// float64 attributes to two decimal places.
func defaultReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	if a.Value.Kind() == slog.KindFloat64 {
		truncated := math.Trunc(a.Value.Float64()*100) / 100.0
		a.Value = slog.Float64Value(truncated)
	}
	return a
}

// Init sets up the structured (JSON) file logger, rotated via lumberjack
// according to conf.Setting().Log, and the human-readable console logger.
// Safe to call more than once; only the first call takes effect.
func Init() {
	initOnce.Do(func() {
		currentLogLevel.Set(slog.LevelInfo)

		logConf := conf.Setting().Log
		path := logConf.Path
		if path == "" {
			path = "logs/studio.log"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // accept 0o755 for now
				fmt.Printf("failed to create log directory %s: %v\n", dir, err)
			}
		}

		maxSizeMB := logConf.MaxSizeMB
		if maxSizeMB <= 0 {
			maxSizeMB = 100
		}
		maxBackups := logConf.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		maxAge := logConf.MaxAgeDays
		if maxAge <= 0 {
			maxAge = 28
		}

		rotated := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
		}

		structuredHandler := slog.NewJSONHandler(rotated, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})
		humanHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})

		loggerMu.Lock()
		structuredLogger = slog.New(structuredHandler)
		humanLogger = slog.New(humanHandler)
		loggerMu.Unlock()
	})
}

func loggers() (*slog.Logger, *slog.Logger) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return structuredLogger, humanLogger
}

// log fans a message out to both loggers, falling back to the standard
// library default logger if Init has not run yet (best-effort logging from
// a path that must not block or panic on a missing setup step).
func log(level slog.Level, msg string, args ...any) {
	structured, human := loggers()
	if structured == nil && human == nil {
		slog.Log(context.Background(), level, msg, args...)
		return
	}
	if structured != nil {
		structured.Log(context.Background(), level, msg, args...)
	}
	if human != nil {
		human.Log(context.Background(), level, msg, args...)
	}
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { log(slog.LevelDebug, msg, args...) }

// Info logs an info message.
func Info(msg string, args ...any) { log(slog.LevelInfo, msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { log(slog.LevelWarn, msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { log(slog.LevelError, msg, args...) }
