package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]pterm.LogLevel{
		"trace":   pterm.LogLevelTrace,
		"DEBUG":   pterm.LogLevelDebug,
		"info":    pterm.LogLevelInfo,
		"warn":    pterm.LogLevelWarn,
		"warning": pterm.LogLevelWarn,
		"error":   pterm.LogLevelError,
		"fatal":   pterm.LogLevelFatal,
		"bogus":   pterm.LogLevelInfo,
		"":        pterm.LogLevelInfo,
	}

	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", input, want, got)
		}
	}
}

func TestNew_WithoutFile(t *testing.T) {
	logger, closer, err := New("debug", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger.Level != pterm.LogLevelDebug {
		t.Errorf("Expected debug level, got %v", logger.Level)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Expected no-op close, got %v", err)
	}
}

func TestNew_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "webhook-recv.log")

	logger, closer, err := New("info", path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("Captured to file", logger.Args("id", "req_00001"))
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	if !strings.Contains(string(data), "Captured to file") {
		t.Errorf("Expected log line in file, got %q", data)
	}
}
