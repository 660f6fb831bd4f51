package embeddings

import (
	"fmt"

	"go.uber.org/zap"
)

// ProviderType names an embedding provider implementation
type ProviderType string

const (
	// OllamaEmbedding calls a local or remote Ollama server
	OllamaEmbedding ProviderType = "ollama"

	// OpenAIEmbedding calls an OpenAI-compatible API
	OpenAIEmbedding ProviderType = "openai"

	// HashEmbedding uses deterministic token hashing, no network
	HashEmbedding ProviderType = "hash"
)

// NewProvider creates the configured provider, wrapped with cache when cache is non-nil
func NewProvider(config *Config, cache Cache, logger *zap.Logger) (Provider, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	var provider Provider
	switch ProviderType(config.Provider) {
	case OllamaEmbedding:
		p, err := NewOllamaProvider(config, logger)
		if err != nil {
			return nil, err
		}
		provider = p
	case OpenAIEmbedding:
		p, err := NewOpenAIProvider(config, logger)
		if err != nil {
			return nil, err
		}
		provider = p
	case HashEmbedding:
		provider = NewHashProvider(config.Dimensions, logger)
	}

	if cache != nil {
		logger.Info("Embedding cache enabled", zap.String("model", provider.ModelName()))
		provider = NewCachedProvider(provider, cache, logger)
	}
	return provider, nil
}

// ValidateConfig validates the embedding configuration
func ValidateConfig(config *Config) error {
	switch ProviderType(config.Provider) {
	case OllamaEmbedding, OpenAIEmbedding:
		if config.Model == "" {
			return fmt.Errorf("%w: model is required for provider %s", ErrConfigError, config.Provider)
		}
	case HashEmbedding:
		// no model needed
	default:
		return fmt.Errorf("%w: invalid provider: %s (must be one of: ollama, openai, hash)", ErrConfigError, config.Provider)
	}

	if config.Dimensions < 0 {
		return fmt.Errorf("%w: dimensions cannot be negative", ErrConfigError)
	}
	if config.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second cannot be negative", ErrConfigError)
	}
	return nil
}
