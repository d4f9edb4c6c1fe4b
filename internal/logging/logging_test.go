package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modscan.log")
	log, err := New(Config{Level: "debug", File: path})
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("process skipped")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "process skipped") {
		t.Fatalf("log file = %q", data)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "chatty"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestForTUIWithoutFileIsNop(t *testing.T) {
	log, err := ForTUI(Config{Level: "info"})
	if err != nil {
		t.Fatal(err)
	}
	if log.Core().Enabled(0) {
		t.Fatal("expected no-op core")
	}
}
