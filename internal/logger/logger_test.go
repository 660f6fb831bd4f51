package logger

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("InvalidLevel", func(t *testing.T) {
		if _, err := New(Config{Level: "loud", Format: "json"}); err == nil {
			t.Fatal("expected error for invalid level")
		}
	})

	t.Run("FileOutput", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "app.log")
		l, err := New(Config{Level: "info", Format: "console", File: &FileConfig{Enabled: true, Path: path}})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		l.Info("written to file")
		_ = l.Sync()

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "written to file") {
			t.Errorf("log file missing message: %s", data)
		}
	})
}

func TestSetLevel(t *testing.T) {
	l, err := New(Config{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	child := l.WithComponent("api").WithRequestID("req-1")

	if child.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug enabled at info level")
	}

	if err := l.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if !child.Core().Enabled(zapcore.DebugLevel) {
		t.Error("derived logger did not follow level change")
	}
	if l.Level() != "debug" {
		t.Errorf("Level() = %q, want debug", l.Level())
	}

	if err := l.SetLevel("nonsense"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestRedactHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer secret")
	headers.Set("X-Api-Key", "key")
	headers.Set("Content-Type", "application/json")

	safe := redactHeaders(headers)
	if safe["Authorization"] != "[REDACTED]" || safe["X-Api-Key"] != "[REDACTED]" {
		t.Errorf("credentials not redacted: %v", safe)
	}
	if safe["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q", safe["Content-Type"])
	}
}
