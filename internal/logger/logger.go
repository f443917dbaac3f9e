// Package logger sets up the daemon's structured logger: a custom
// slog.Handler that reformats sipgo's JSON (zerolog) log lines to match
// our own bracketed [time] [LEVEL] format, so the SIP driver's log
// output doesn't stand out from the rest of the daemon's logs.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	globalLevel  = slog.LevelInfo
	handlerMutex sync.RWMutex
)

// JSONParsingWriter wraps an io.Writer and reformats any JSON log line
// written through it (sipgo logs via zerolog, which emits JSON) into our
// bracketed text format; non-JSON lines pass through unchanged.
type JSONParsingWriter struct {
	base io.Writer
}

func (w *JSONParsingWriter) Write(p []byte) (int, error) {
	line := string(p)
	if !strings.HasPrefix(strings.TrimSpace(line), "{") {
		return w.base.Write(p)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(p, &entry); err != nil {
		return w.base.Write(p)
	}

	level := "info"
	if lv, ok := entry["level"]; ok {
		level = fmt.Sprint(lv)
	}
	message := "unknown"
	if msg, ok := entry["message"]; ok {
		message = fmt.Sprint(msg)
	}
	timestamp := time.Now().Format("15:04:05")
	if t, ok := entry["time"]; ok {
		if ts, err := time.Parse(time.RFC3339, fmt.Sprint(t)); err == nil {
			timestamp = ts.Format("15:04:05")
		}
	}

	var attrs []string
	for k, v := range entry {
		if k != "level" && k != "message" && k != "time" && k != "caller" {
			attrs = append(attrs, fmt.Sprintf("%s=%v", k, v))
		}
	}
	formatted := fmt.Sprintf("[%s] [%s] %s", timestamp, strings.ToUpper(level), message)
	if len(attrs) > 0 {
		formatted += " " + strings.Join(attrs, " ")
	}
	formatted += "\n"
	return w.base.Write([]byte(formatted))
}

// SetLevel sets the global log level.
func SetLevel(levelStr string) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	globalLevel = ParseLevel(levelStr)
}

// ParseLevel parses a string to an slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// handler is a minimal multi-output slog.Handler with global level
// filtering, writing through JSONParsingWriter so sipgo's own logging
// renders consistently with the rest of the daemon.
type handler struct {
	outs []io.Writer
	mu   sync.Mutex
}

func (h *handler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	handlerMutex.RLock()
	below := record.Level < globalLevel
	handlerMutex.RUnlock()
	if below {
		return nil
	}

	timestamp := record.Time.Format("15:04:05")
	message := record.Message
	var attrs []string
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a.Key+"="+a.Value.String())
		return true
	})
	if len(attrs) > 0 {
		message += " " + strings.Join(attrs, " ")
	}
	line := fmt.Sprintf("[%s] [%s] %s\n", timestamp, strings.ToUpper(record.Level.String()), message)
	for _, out := range h.outs {
		if out != nil {
			_, _ = out.Write([]byte(line))
		}
	}
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *handler) WithGroup(name string) slog.Handler       { return h }
func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return level >= globalLevel
}

// Init installs the process-wide default logger over the given outputs.
func Init(outputs ...io.Writer) {
	wrapped := make([]io.Writer, len(outputs))
	for i, out := range outputs {
		wrapped[i] = &JSONParsingWriter{base: out}
	}
	slog.SetDefault(slog.New(&handler{outs: wrapped}))
}
