package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("line is not json: %q: %v", sc.Text(), err)
		}
		out = append(out, entry)
	}
	return out
}

func TestWriterLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)
	l.Info("board.reload.begin", map[string]any{"ticket": 3})
	l.Error("board.reload.failed", map[string]any{"error": "boom"})
	l.With(map[string]any{"session": "s1"}).Warn("api.breaker.state", nil)

	entries := decodeLines(t, buf.Bytes())
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %s", len(entries), buf.String())
	}
	if entries[0]["msg"] != "board.reload.begin" || entries[0]["ticket"] != float64(3) {
		t.Fatalf("unexpected first entry %v", entries[0])
	}
	if entries[1]["level"] != "error" || entries[1]["error"] != "boom" {
		t.Fatalf("unexpected error entry %v", entries[1])
	}
	if entries[2]["session"] != "s1" {
		t.Fatalf("expected child fields, got %v", entries[2])
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ctfboard.jsonl")
	for i := 0; i < 2; i++ {
		l, err := NewJSONLogger(path)
		if err != nil {
			t.Fatalf("new logger: %v", err)
		}
		l.Info("app.start", map[string]any{"run": i})
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := len(decodeLines(t, data)); got != 2 {
		t.Fatalf("expected 2 lines across runs, got %d", got)
	}
}

func TestEmptyPathDiscards(t *testing.T) {
	l, err := NewJSONLogger("")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	l.Info("ignored", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	var nilLogger *JSONLogger
	nilLogger.Info("safe", nil)
}
