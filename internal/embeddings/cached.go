package embeddings

import (
	"context"

	"go.uber.org/zap"
)

// CachedProvider serves embeddings from a cache and falls back to the wrapped provider.
// Cache failures are logged and bypassed; provider failures always propagate.
type CachedProvider struct {
	provider Provider
	cache    Cache
	logger   *zap.Logger
}

// NewCachedProvider wraps provider with cache
func NewCachedProvider(provider Provider, cache Cache, logger *zap.Logger) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		logger:   logger,
	}
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	model := p.provider.ModelName()

	embedding, found, err := p.cache.Get(ctx, model, text)
	if err != nil {
		p.logger.Warn("Embedding cache read failed", zap.Error(err))
	} else if found {
		return embedding, nil
	}

	embedding, err = p.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, model, text, embedding); err != nil {
		p.logger.Warn("Embedding cache write failed", zap.Error(err))
	}
	return embedding, nil
}

func (p *CachedProvider) ModelName() string {
	return p.provider.ModelName()
}
