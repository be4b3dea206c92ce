package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	log, err := New(Config{Output: "file", Level: "warn", FilePath: logPath})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Errorf("messages below warn level were logged: %s", content)
	}
	if !strings.Contains(content, "[WARN] warn message") {
		t.Errorf("warn message missing: %s", content)
	}
	if !strings.Contains(content, "[ERROR] error message") {
		t.Errorf("error message missing: %s", content)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInvalidOutput(t *testing.T) {
	if _, err := New(Config{Output: "syslog"}); err == nil {
		t.Error("expected error for invalid output")
	}
}

func TestNoOpLoggerDiscards(t *testing.T) {
	log := NewNoOp()
	log.Info("should go nowhere")
	log.Error("also nowhere")
}
