package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvoss/sonara/internal/transcript"
)

func TestWriterAppendsToDaily(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	msg := transcript.Message{
		ID:        "m-1",
		Role:      transcript.RoleAssistant,
		Content:   "Hello there.",
		Timestamp: time.Date(2026, 8, 26, 10, 30, 0, 0, time.Local),
	}

	if err := w.Append(msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	path := filepath.Join(dir, "2026-08-26.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "Assistant") {
		t.Errorf("expected Assistant in content, got: %s", content)
	}
	if !strings.Contains(content, "Hello there.") {
		t.Errorf("expected 'Hello there.' in content, got: %s", content)
	}
}

func TestWriterMultipleAppends(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	ts := time.Date(2026, 8, 26, 10, 30, 0, 0, time.Local)

	_ = w.Append(transcript.Message{Role: transcript.RoleUser, Content: "First.", Timestamp: ts})
	_ = w.Append(transcript.Message{Role: transcript.RoleAssistant, Content: "Second.", Timestamp: ts})

	path := filepath.Join(dir, "2026-08-26.md")
	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	if len(lines) < 2 {
		t.Fatalf("expected at least 2 lines, got %d", len(lines))
	}
}
