package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAIProvider talks to any OpenAI-compatible /embeddings endpoint
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type openAIRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIResponse struct {
	Data  []openAIData `json:"data"`
	Error *apiError    `json:"error,omitempty"`
}

type openAIData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIProvider reads the API key from config.APIKeyEnv
func NewOpenAIProvider(config *Config, logger *zap.Logger) (*OpenAIProvider, error) {
	apiKeyEnv := config.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key not found in environment variable: %s", ErrConfigError, apiKeyEnv)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrConfigError)
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logger.Info("OpenAI-compatible embedding provider initialized",
		zap.String("base_url", baseURL),
		zap.String("model", config.Model))

	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   config.Model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: newLimiter(config.RequestsPerSecond),
		logger:  logger,
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrInvalidInput)
	}

	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	err := postJSON(ctx, p.client, p.limiter, p.baseURL+"/embeddings", headers,
		openAIRequest{Input: []string{text}, Model: p.model}, &resp)
	if err != nil {
		p.logger.Warn("OpenAI embedding failed", zap.String("model", p.model), zap.Error(err))
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("%w: API error: %s", ErrProviderFailed, resp.Error.Message)
	}
	for _, data := range resp.Data {
		if data.Index == 0 && len(data.Embedding) > 0 {
			return data.Embedding, nil
		}
	}
	return nil, fmt.Errorf("%w: response contained no embedding", ErrProviderFailed)
}

func (p *OpenAIProvider) ModelName() string {
	return p.model
}
