package embeddings

import (
	"context"
)

// Provider turns a text fragment into a fixed-length vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// Cache stores embeddings by model and text. Implementations report a miss as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Set(ctx context.Context, model, text string, embedding []float32) error
}

var (
	_ Provider = (*OllamaProvider)(nil)
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*HashProvider)(nil)
	_ Provider = (*CachedProvider)(nil)
)
