package termlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEventWritesJSONLFile(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	defer l.Close()

	if err := l.Event("sess1", EventStart, ""); err != nil {
		t.Fatalf("Event() error = %v", err)
	}
	if err := l.Event("sess1", EventInput, "ls\n"); err != nil {
		t.Fatalf("Event() error = %v", err)
	}

	var found []string
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && strings.HasSuffix(path, ".jsonl") {
			found = append(found, path)
		}
		return nil
	})
	if len(found) != 1 {
		t.Fatalf("found %d jsonl files, want 1: %v", len(found), found)
	}

	data, err := os.ReadFile(found[0])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"type":"start"`) {
		t.Errorf("first line missing start event marker: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"data":"ls\n"`) {
		t.Errorf("second line missing input data: %s", lines[1])
	}
}

func TestSeparateSessionsGetSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	defer l.Close()

	l.Event("alpha", EventStart, "")
	l.Event("beta", EventStart, "")

	var found []string
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && strings.HasSuffix(path, ".jsonl") {
			found = append(found, path)
		}
		return nil
	})
	if len(found) != 2 {
		t.Fatalf("found %d jsonl files, want 2: %v", len(found), found)
	}
}

func TestCloseSessionForgetsLogger(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	defer l.Close()

	l.Event("sess1", EventStart, "")
	if err := l.CloseSession("sess1"); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if _, ok := l.loggers["sess1"]; ok {
		t.Error("session logger should be forgotten after CloseSession")
	}
	// Re-opening the same session name should succeed (new file handle).
	if err := l.Event("sess1", EventEnd, ""); err != nil {
		t.Fatalf("Event() after CloseSession error = %v", err)
	}
}

func TestWarnLogsWithoutError(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	defer l.Close()

	if err := l.Warn("sess1", "decoder", "unhandled CSI final byte"); err != nil {
		t.Fatalf("Warn() error = %v", err)
	}
}
