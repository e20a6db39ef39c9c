package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Level represents logging severity.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// slogTrace sits below slog.LevelDebug.
const slogTrace = slog.LevelDebug - 4

var (
	mu               sync.RWMutex
	currentLevel     = LevelWarn
	currentVerbosity = 0

	levelVar = new(slog.LevelVar)
	logger   = newLogger(os.Stderr)
)

func init() {
	levelVar.Set(toSlog(currentLevel))
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      levelVar,
		TimeFormat: time.TimeOnly,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == slogTrace {
					return slog.String(slog.LevelKey, "TRC")
				}
			}
			return a
		},
	}))
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

// Logger returns the shared structured logger for adapters.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetVerbosity configures logger output from count of -v flags (0-4).
func SetVerbosity(count int) {
	if count < 0 {
		count = 0
	}
	if count > 4 {
		count = 4
	}
	var l Level
	switch count {
	case 0:
		l = LevelWarn
	case 1:
		l = LevelInfo
	case 2:
		l = LevelDebug
	default:
		l = LevelTrace
	}

	mu.Lock()
	currentVerbosity = count
	currentLevel = l
	mu.Unlock()
	levelVar.Set(toSlog(l))
}

// SetLevelName applies a named level such as the one from the config file.
// "error" is kept distinct from the default warn level.
func SetLevelName(name string) error {
	l, count, err := ParseLevel(name)
	if err != nil {
		return err
	}
	mu.Lock()
	currentVerbosity = count
	currentLevel = l
	mu.Unlock()
	levelVar.Set(toSlog(l))
	return nil
}

// Verbosity returns the stored -v count.
func Verbosity() int {
	mu.RLock()
	defer mu.RUnlock()
	return currentVerbosity
}

// LevelName returns current level label.
func LevelName() string {
	mu.RLock()
	defer mu.RUnlock()
	return LevelToString(currentLevel)
}

// LevelToString converts a Level to human readable text.
func LevelToString(l Level) string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLevel returns Level + verbosity count from string.
func ParseLevel(s string) (Level, int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, 0, nil
	case "warn", "warning":
		return LevelWarn, 0, nil
	case "info":
		return LevelInfo, 1, nil
	case "debug":
		return LevelDebug, 2, nil
	case "trace":
		return LevelTrace, 4, nil
	default:
		return LevelWarn, Verbosity(), fmt.Errorf("unknown level %s", s)
	}
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slogTrace
	}
}

func logf(l Level, format string, args ...any) {
	lg := Logger()
	sl := toSlog(l)
	if !lg.Enabled(context.Background(), sl) {
		return
	}
	lg.Log(context.Background(), sl, fmt.Sprintf(format, args...))
}

// Errorf is printed at every verbosity.
func Errorf(format string, args ...any) {
	logf(LevelError, format, args...)
}

func Warnf(format string, args ...any) {
	logf(LevelWarn, format, args...)
}

func Infof(format string, args ...any) {
	logf(LevelInfo, format, args...)
}

func Debugf(format string, args ...any) {
	logf(LevelDebug, format, args...)
}

func Tracef(format string, args ...any) {
	logf(LevelTrace, format, args...)
}
