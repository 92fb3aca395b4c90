package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/wonny/vigil/pkg/config"
)

func testConfig(level, format string) *config.Config {
	return &config.Config{
		Env:       "development",
		LogLevel:  level,
		LogFormat: format,
	}
}

func TestNew(t *testing.T) {
	log := New(testConfig("info", "json"))
	if log == nil {
		t.Fatal("Expected logger to be created")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"DEBUG", zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithField(t *testing.T) {
	log := New(testConfig("error", "json"))

	child := log.WithField("component", "scan")
	if child == nil {
		t.Fatal("Expected child logger")
	}
	if child == log {
		t.Error("WithField should return a new logger")
	}
}

func TestWithFields(t *testing.T) {
	log := New(testConfig("error", "json"))

	child := log.WithFields(map[string]interface{}{
		"symbol": "SPY",
		"cycle":  42,
	})
	if child == nil {
		t.Fatal("Expected child logger")
	}
}
