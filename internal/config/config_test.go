package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("DefaultsWithoutFile", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		config, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if config.Server.Port != 3100 {
			t.Errorf("port = %d, want 3100", config.Server.Port)
		}
		if config.Store.CollectionName() != "ingredients" {
			t.Errorf("collection = %q, want ingredients", config.Store.CollectionName())
		}
		if config.Search.DefaultLimit != 3 {
			t.Errorf("default limit = %d, want 3", config.Search.DefaultLimit)
		}
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 8080
  read_timeout: 45s
store:
  environment: test
embedding:
  provider: hash
  dimensions: 128
`)
		config, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if config.Server.Port != 8080 {
			t.Errorf("port = %d, want 8080", config.Server.Port)
		}
		if config.Server.ReadTimeout != 45*time.Second {
			t.Errorf("read timeout = %v, want 45s", config.Server.ReadTimeout)
		}
		if config.Server.WriteTimeout != 120*time.Second {
			t.Errorf("write timeout = %v, want default 120s", config.Server.WriteTimeout)
		}
		if config.Store.CollectionName() != "ingredients_test" {
			t.Errorf("collection = %q, want ingredients_test", config.Store.CollectionName())
		}
		if config.Embedding.Provider != "hash" || config.Embedding.Dimensions != 128 {
			t.Errorf("embedding = %+v", config.Embedding)
		}
		if config.Embedding.QueryPrefix == "" {
			t.Error("query prefix default was lost")
		}
	})

	t.Run("EnvironmentOverridesFile", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 8080\n")
		t.Setenv("RECIPE_AI_SERVER_PORT", "9090")
		t.Setenv("RECIPE_AI_SEARCH_MAX_LIMIT", "50")

		config, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if config.Server.Port != 9090 {
			t.Errorf("port = %d, want 9090", config.Server.Port)
		}
		if config.Search.MaxLimit != 50 {
			t.Errorf("max limit = %d, want 50", config.Search.MaxLimit)
		}
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})

	t.Run("InvalidValues", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"port", "server:\n  port: 70000\n"},
			{"log level", "logging:\n  level: verbose\n"},
			{"backend", "store:\n  backend: chroma\n"},
			{"environment", "store:\n  environment: staging\n"},
			{"provider", "embedding:\n  provider: onnx\n"},
			{"search limits", "search:\n  default_limit: 10\n  max_limit: 5\n"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := Load(writeConfig(t, tt.body)); err == nil {
					t.Fatalf("expected validation error for %s", tt.name)
				}
			})
		}
	})
}

func TestWatch(t *testing.T) {
	t.Run("RequiresConfigFile", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		if _, err := Load(""); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if err := Watch(func(*Config) {}, nil); err == nil {
			t.Fatal("expected error when no file is in use")
		}
	})

	t.Run("ReloadsOnChange", func(t *testing.T) {
		path := writeConfig(t, "logging:\n  level: info\n")
		if _, err := Load(path); err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		changed := make(chan *Config, 1)
		if err := Watch(func(c *Config) {
			select {
			case changed <- c:
			default:
			}
		}, nil); err != nil {
			t.Fatalf("Watch() error = %v", err)
		}

		// Give the watcher time to attach before editing.
		time.Sleep(100 * time.Millisecond)
		if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
			t.Fatalf("failed to rewrite config: %v", err)
		}

		select {
		case c := <-changed:
			if c.Logging.Level != "debug" {
				t.Errorf("level = %q, want debug", c.Logging.Level)
			}
			if c.Server.Port != 3100 {
				t.Errorf("port = %d, want default after reload", c.Server.Port)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for reload")
		}
	})
}

func TestStoreConfig(t *testing.T) {
	s := GetDefaults().Store
	if got := s.CollectionName(); got != "ingredients" {
		t.Errorf("production collection = %q", got)
	}
	s.Environment = "test"
	if got := s.CollectionName(); got != "ingredients_test" {
		t.Errorf("test collection = %q", got)
	}

	vc := s.VectorConfig()
	if vc.Backend != "memory" || vc.Postgres.MaxOpenConns != 20 {
		t.Errorf("vector config = %+v", vc)
	}
}
