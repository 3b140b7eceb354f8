// File path: internal/common/log.go
package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultLogHistory = 1000

var (
	logger     *slog.Logger
	loggerOnce sync.Once
	logLevel   = new(slog.LevelVar)
	sink       = newLogSink(defaultLogHistory)
)

// LogEntry is a log record kept in memory for the /v1/logs endpoint.
type LogEntry struct {
	Time       time.Time              `json:"time"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Component  string                 `json:"component,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// LogFilter narrows LogEntries. Zero values match everything.
type LogFilter struct {
	Component string
	Level     string
	Limit     int
}

// Logger returns the process-wide logger. LOG_LEVEL selects the threshold and
// LOG_FORMAT=json switches the output from text to JSON.
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		logLevel.Set(ParseLevel(os.Getenv("LOG_LEVEL")))
		logger = slog.New(newCapturingHandler(os.Stderr, os.Getenv("LOG_FORMAT")))
	})
	return logger
}

// SetLogLevel changes the threshold of the shared logger at runtime.
func SetLogLevel(name string) {
	Logger()
	logLevel.Set(ParseLevel(name))
}

// ParseLevel maps debug, warn and error onto slog levels; anything else is info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newCapturingHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: logLevel}
	var base slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		base = slog.NewJSONHandler(w, opts)
	} else {
		base = slog.NewTextHandler(w, opts)
	}
	return &capturingHandler{handler: base, sink: sink}
}

// LogEntries returns captured entries, oldest first.
func LogEntries(filter LogFilter) []LogEntry {
	if sink == nil {
		return nil
	}
	return sink.entries(filter)
}

type capturingHandler struct {
	handler slog.Handler
	sink    *logSink
	attrs   []slog.Attr
}

func (h *capturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *capturingHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.handler.Handle(ctx, record)
	if h.sink != nil {
		h.sink.capture(record, h.attrs)
	}
	return err
}

func (h *capturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &capturingHandler{handler: h.handler.WithAttrs(attrs), sink: h.sink, attrs: merged}
}

func (h *capturingHandler) WithGroup(name string) slog.Handler {
	return &capturingHandler{handler: h.handler.WithGroup(name), sink: h.sink, attrs: h.attrs}
}

type logSink struct {
	mu      sync.RWMutex
	max     int
	history []LogEntry
}

func newLogSink(max int) *logSink {
	if max <= 0 {
		max = defaultLogHistory
	}
	return &logSink{max: max}
}

func (s *logSink) capture(record slog.Record, inherited []slog.Attr) {
	entry := buildLogEntry(record, inherited)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	if len(s.history) > s.max {
		s.history = s.history[len(s.history)-s.max:]
	}
}

func (s *logSink) entries(filter LogFilter) []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	component := strings.ToLower(strings.TrimSpace(filter.Component))
	minLevel := slog.LevelDebug
	if strings.TrimSpace(filter.Level) != "" {
		minLevel = ParseLevel(filter.Level)
	}
	var out []LogEntry
	for _, entry := range s.history {
		if component != "" && strings.ToLower(entry.Component) != component {
			continue
		}
		if ParseLevel(entry.Level) < minLevel {
			continue
		}
		out = append(out, entry)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

func buildLogEntry(record slog.Record, inherited []slog.Attr) LogEntry {
	entry := LogEntry{
		Time:    record.Time,
		Level:   strings.ToLower(record.Level.String()),
		Message: record.Message,
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	entry.Time = entry.Time.UTC()

	attrs := make(map[string]interface{})
	collect := func(a slog.Attr) bool {
		value := valueToAny(a.Value.Resolve())
		if a.Key == "component" {
			entry.Component = strings.TrimSpace(valueString(value))
			return true
		}
		attrs[a.Key] = value
		return true
	}
	for _, a := range inherited {
		collect(a)
	}
	record.Attrs(collect)

	// Messages follow the "component: text" convention.
	if entry.Component == "" {
		if idx := strings.Index(entry.Message, ":"); idx > 0 {
			entry.Component = strings.TrimSpace(entry.Message[:idx])
		}
	}
	if len(attrs) > 0 {
		entry.Attributes = attrs
	}
	return entry
}

func valueToAny(v slog.Value) interface{} {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return v.Bool()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC()
	case slog.KindGroup:
		group := make(map[string]interface{}, len(v.Group()))
		for _, a := range v.Group() {
			group[a.Key] = valueToAny(a.Value.Resolve())
		}
		return group
	default:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	}
}

func valueString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
