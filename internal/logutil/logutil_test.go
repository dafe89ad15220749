package logutil

import (
	"log/slog"
	"testing"

	"github.com/spf13/viper"
)

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tc := range tests {
		got, err := parseSlogLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("parseSlogLevel(%q) error mismatch: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseSlogLevel(%q) mismatch: got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoggerFromViperRejectsUnknownFormat(t *testing.T) {
	viper.Reset()
	viper.Set("logging.format", "xml")
	if _, err := LoggerFromViper(); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerFromViperTraceImpliesDebug(t *testing.T) {
	viper.Reset()
	viper.Set("trace", true)
	logger, err := LoggerFromViper()
	if err != nil {
		t.Fatalf("LoggerFromViper: %v", err)
	}
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("trace should enable debug level")
	}
}
