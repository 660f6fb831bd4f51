package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OllamaProvider calls the native Ollama embeddings endpoint
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaProvider creates a provider for an Ollama server
func NewOllamaProvider(config *Config, logger *zap.Logger) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrConfigError)
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	logger.Info("Ollama embedding provider initialized",
		zap.String("base_url", baseURL),
		zap.String("model", config.Model),
		zap.Duration("timeout", timeout))

	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   config.Model,
		client:  &http.Client{Timeout: timeout},
		limiter: newLimiter(config.RequestsPerSecond),
		logger:  logger,
	}, nil
}

// Embed returns the embedding of text
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrInvalidInput)
	}

	start := time.Now()
	var resp ollamaResponse
	err := postJSON(ctx, p.client, p.limiter, p.baseURL+"/api/embeddings", nil,
		ollamaRequest{Model: p.model, Prompt: text}, &resp)
	if err != nil {
		p.logger.Warn("Ollama embedding failed", zap.String("model", p.model), zap.Error(err))
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: ollama returned an empty embedding", ErrProviderFailed)
	}

	p.logger.Debug("Embedding generated",
		zap.String("model", p.model),
		zap.Int("dimensions", len(resp.Embedding)),
		zap.Duration("duration", time.Since(start)))

	return resp.Embedding, nil
}

func (p *OllamaProvider) ModelName() string {
	return p.model
}
