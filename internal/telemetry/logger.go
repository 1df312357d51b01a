package telemetry

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
)

// JSONLogger writes one JSON object per event. Event names are dotted
// (board.reload.begin); fields become top-level keys.
type JSONLogger struct {
	logger *log.Logger
	w      io.WriteCloser
}

func NewJSONLogger(path string) (*JSONLogger, error) {
	if path == "" {
		return newLogger(nopCloser{Writer: io.Discard}), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return newLogger(f), nil
}

// NewWriterLogger logs to w without taking ownership of it.
func NewWriterLogger(w io.Writer) *JSONLogger {
	return newLogger(nopCloser{Writer: w})
}

func newLogger(w io.WriteCloser) *JSONLogger {
	l := log.NewWithOptions(w, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		TimeFunction:    log.NowUTC,
		Formatter:       log.JSONFormatter,
	})
	return &JSONLogger{logger: l, w: w}
}

func (l *JSONLogger) Info(msg string, fields map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info(msg, keyvals(fields)...)
}

func (l *JSONLogger) Warn(msg string, fields map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn(msg, keyvals(fields)...)
}

func (l *JSONLogger) Error(msg string, fields map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Error(msg, keyvals(fields)...)
}

// With returns a logger that adds fields to every event. The child shares
// the parent's writer; only the parent closes it.
func (l *JSONLogger) With(fields map[string]any) *JSONLogger {
	if l == nil || l.logger == nil {
		return l
	}
	return &JSONLogger{logger: l.logger.With(keyvals(fields)...), w: nopCloser{Writer: io.Discard}}
}

func (l *JSONLogger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}
	return l.w.Close()
}

func keyvals(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
