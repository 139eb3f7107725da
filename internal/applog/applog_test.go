package applog

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Output: &buf})

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Error("messages below the level should be filtered")
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Error("messages at or above the level should be written")
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Output: &buf})

	log.WithField("b", 2).WithField("a", 1).Info("with fields")

	out := buf.String()
	if !strings.Contains(out, "{a=1, b=2}") {
		t.Errorf("fields should be sorted and formatted, got %q", out)
	}
}

func TestNopLogger(t *testing.T) {
	var buf bytes.Buffer
	log := Nop()
	log.SetOutput(&buf)

	log.Error("should not appear")

	if buf.Len() != 0 {
		t.Errorf("nop logger wrote %q", buf.String())
	}
}
