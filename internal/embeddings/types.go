package embeddings

import (
	"time"
)

// Config contains embedding provider configuration
type Config struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"`       // ollama, openai or hash
	Model     string        `yaml:"model" mapstructure:"model"`             // "mxbai-embed-large"
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`       // "http://localhost:11434"
	APIKeyEnv string        `yaml:"api_key_env" mapstructure:"api_key_env"` // "OPENAI_API_KEY"
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`         // 30s
	// QueryPrefix is prepended to search queries for models trained on asymmetric
	// query/passage pairs. Empty disables it.
	QueryPrefix       string  `yaml:"query_prefix" mapstructure:"query_prefix"`
	Dimensions        int     `yaml:"dimensions" mapstructure:"dimensions"`                   // hash provider only
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 = unlimited
	BatchConcurrency  int     `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// EmbeddingError is a classified provider failure
type EmbeddingError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *EmbeddingError) Error() string {
	return e.Message
}

// Common error types
var (
	ErrInvalidInput   = &EmbeddingError{Type: "invalid_input", Message: "invalid input text", Code: 1001}
	ErrProviderFailed = &EmbeddingError{Type: "provider_failed", Message: "embedding provider failed", Code: 1003}
	ErrConfigError    = &EmbeddingError{Type: "config_error", Message: "configuration error", Code: 1005}
	ErrNetworkError   = &EmbeddingError{Type: "network_error", Message: "network operation failed", Code: 1006}
)

// DefaultQueryPrefix is the retrieval instruction recommended for mxbai-embed-large.
const DefaultQueryPrefix = "Represent this sentence for searching relevant passages: "
