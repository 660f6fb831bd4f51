package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/raaihank/recipe-ai/internal/embeddings"
)

const envPrefix = "RECIPE_AI"

var (
	mu      sync.Mutex
	current *viper.Viper
)

// Load loads configuration from file and environment variables.
// Every key has a default so RECIPE_AI_* variables override settings absent from the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v, GetDefaults()); err != nil {
		return nil, fmt.Errorf("failed to register defaults: %w", err)
	}

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/recipe-ai/")
	v.AddConfigPath("$HOME/.recipe-ai/")

	// Environment variable overrides
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Use specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config, err := decode(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	current = v
	mu.Unlock()

	return config, nil
}

// Watch starts watching the file used by the last Load for changes.
// Invalid edits are reported to onError and the previous configuration stays in effect.
func Watch(callback func(*Config), onError func(error)) error {
	mu.Lock()
	v := current
	mu.Unlock()

	if v == nil {
		return errors.New("configuration not loaded")
	}
	if v.ConfigFileUsed() == "" {
		return errors.New("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	config := GetDefaults()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// setDefaults registers every field of defaults under its dotted key
func setDefaults(v *viper.Viper, defaults *Config) error {
	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}

	registerDefaults(v, "", tree)
	return nil
}

func registerDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			registerDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, value)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if err := embeddings.ValidateConfig(&config.Embedding); err != nil {
		return fmt.Errorf("invalid embedding config: %w", err)
	}

	switch config.Store.Backend {
	case "memory":
	case "postgres":
		if config.Store.Postgres.DatabaseURL == "" {
			return fmt.Errorf("store.postgres.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid store backend: %s (must be memory or postgres)", config.Store.Backend)
	}

	if config.Store.Environment != "production" && config.Store.Environment != "test" {
		return fmt.Errorf("invalid store environment: %s (must be production or test)", config.Store.Environment)
	}

	if config.Store.CollectionName() == "" {
		return fmt.Errorf("collection name for environment %s is empty", config.Store.Environment)
	}

	if config.Search.DefaultLimit < 1 || config.Search.MaxLimit < config.Search.DefaultLimit {
		return fmt.Errorf("invalid search limits: default %d, max %d", config.Search.DefaultLimit, config.Search.MaxLimit)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required when the cache is enabled")
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst < 1) {
		return fmt.Errorf("invalid rate limit: %v requests/s with burst %d", config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
	}

	if config.Import.ChunkSize < 1 || config.Import.FetchBatchSize < 1 || config.Import.MaxRetries < 1 {
		return fmt.Errorf("import chunk_size, fetch_batch_size and max_retries must be positive")
	}

	return nil
}
