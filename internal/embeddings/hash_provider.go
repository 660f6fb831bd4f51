package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// DefaultHashDimensions is used when no dimension is configured
const DefaultHashDimensions = 384

// HashProvider produces deterministic bag-of-words embeddings by hashing each token
// into a signed bucket. Texts sharing tokens score higher under cosine similarity.
// Best for: offline development, tests, and demos without a model server.
type HashProvider struct {
	dimensions int
	logger     *zap.Logger
}

// NewHashProvider creates a hash-based provider
func NewHashProvider(dimensions int, logger *zap.Logger) *HashProvider {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}

	logger.Info("Hash embedding provider initialized",
		zap.String("type", "deterministic_hash"),
		zap.Int("embedding_dimensions", dimensions))

	return &HashProvider{dimensions: dimensions, logger: logger}
}

func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding := make([]float32, p.dimensions)
	for _, token := range tokenize(text) {
		hash := sha256.Sum256([]byte(token))
		bucket := binary.BigEndian.Uint64(hash[0:8]) % uint64(p.dimensions)
		sign := float32(1)
		if hash[8]&1 == 1 {
			sign = -1
		}
		embedding[bucket] += sign
	}

	return normalize(embedding), nil
}

func (p *HashProvider) ModelName() string {
	return fmt.Sprintf("hash-%d", p.dimensions)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalize scales v to unit length in place; a zero vector is returned unchanged
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
