package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLoggerStampsServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "info"}, &buf)
	logger.Info().Msg("hello")

	var line struct {
		Service string `json:"service"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}
	if line.Service != "palmbudget" {
		t.Fatalf("expected default service stamp, got %q", line.Service)
	}
	if line.Message != "hello" {
		t.Fatalf("unexpected message %q", line.Message)
	}
}

func TestLoggerServiceOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "info", Service: "palmbudget-keeper"}, &buf)
	logger.Info().Msg("tick")

	var line struct {
		Service string `json:"service"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}
	if line.Service != "palmbudget-keeper" {
		t.Fatalf("expected overridden service stamp, got %q", line.Service)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "warn"}, &buf)
	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered at warn level, got %q", buf.String())
	}
}
