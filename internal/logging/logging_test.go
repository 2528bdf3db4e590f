package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omochice/relay-chat/internal/config"
	"github.com/omochice/relay-chat/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"INFO", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"warning", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"", zap.InfoLevel},
		{"bogus", zap.InfoLevel},
	}

	for _, tt := range tests {
		if got := logging.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetup_FileOutput(t *testing.T) {
	tests := []struct {
		name   string
		rotate bool
		format string
	}{
		{"plain console", false, "console"},
		{"rotated json", true, "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "logs", "client.log")
			c := config.Default().Log
			c.Format = tt.format
			c.Outputs = []string{path}
			c.Rotation.Enable = tt.rotate

			logger, err := logging.Setup(c)
			if err != nil {
				t.Fatalf("Setup() error = %v", err)
			}
			logger.Info("session started", zap.String("session", "abc"))
			logger.Debug("hidden")
			_ = logger.Sync()

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read log: %v", err)
			}
			if !strings.Contains(string(data), "session started") {
				t.Errorf("log = %q, want entry", data)
			}
			if strings.Contains(string(data), "hidden") {
				t.Error("debug entry written at info level")
			}
		})
	}
}

func TestSetup_NoOutputs(t *testing.T) {
	logger, err := logging.Setup(config.LogConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	logger.Info("discarded")
}

func TestSetup_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	c := config.LogConfig{Outputs: []string{filepath.Join(blocker, "client.log")}}
	if _, err := logging.Setup(c); err == nil {
		t.Error("expected error when the log directory cannot be created")
	}
}
