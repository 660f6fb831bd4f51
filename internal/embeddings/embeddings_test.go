package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestHashProvider(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("Deterministic", func(t *testing.T) {
		p := NewHashProvider(64, logger)
		a, err := p.Embed(ctx, "tomatoes, cheese, basil")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		b, _ := p.Embed(ctx, "tomatoes, cheese, basil")
		if len(a) != 64 {
			t.Fatalf("Expected 64 dimensions, got %d", len(a))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatal("Same text should produce same embedding")
			}
		}
	})

	t.Run("Normalized", func(t *testing.T) {
		p := NewHashProvider(0, logger)
		v, _ := p.Embed(ctx, "flour, eggs, sugar")
		if len(v) != DefaultHashDimensions {
			t.Fatalf("Expected default dimensions, got %d", len(v))
		}
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("Embedding not unit length: %f", sum)
		}
	})

	t.Run("SharedTokensAreCloser", func(t *testing.T) {
		p := NewHashProvider(1024, logger)
		query, _ := p.Embed(ctx, "tomatoes")
		tomato, _ := p.Embed(ctx, "tomatoes, onions, garlic")
		baking, _ := p.Embed(ctx, "flour, eggs, sugar")

		if dot(query, tomato) <= dot(query, baking) {
			t.Error("Document sharing a token should score higher")
		}
	})

	t.Run("EmptyText", func(t *testing.T) {
		p := NewHashProvider(8, logger)
		if _, err := p.Embed(ctx, "   "); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestOllamaProvider(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("Embed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
				t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
			}
			var req ollamaRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("Bad request body: %v", err)
			}
			if req.Model != "mxbai-embed-large" || req.Prompt != "tomatoes" {
				t.Errorf("Unexpected request: %+v", req)
			}
			json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{0.1, 0.2, 0.3}})
		}))
		defer server.Close()

		p, err := NewOllamaProvider(&Config{Model: "mxbai-embed-large", BaseURL: server.URL + "/"}, logger)
		if err != nil {
			t.Fatalf("NewOllamaProvider failed: %v", err)
		}
		v, err := p.Embed(ctx, "tomatoes")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if len(v) != 3 || v[2] != 0.3 {
			t.Errorf("Unexpected embedding: %v", v)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer server.Close()

		p, _ := NewOllamaProvider(&Config{Model: "missing", BaseURL: server.URL}, logger)
		if _, err := p.Embed(ctx, "tomatoes"); !errors.Is(err, ErrProviderFailed) {
			t.Errorf("Expected ErrProviderFailed, got %v", err)
		}
	})

	t.Run("EmptyEmbedding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"embedding":[]}`))
		}))
		defer server.Close()

		p, _ := NewOllamaProvider(&Config{Model: "m", BaseURL: server.URL}, logger)
		if _, err := p.Embed(ctx, "tomatoes"); !errors.Is(err, ErrProviderFailed) {
			t.Errorf("Expected ErrProviderFailed, got %v", err)
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		p, _ := NewOllamaProvider(&Config{Model: "m", BaseURL: url}, logger)
		if _, err := p.Embed(ctx, "tomatoes"); !errors.Is(err, ErrNetworkError) {
			t.Errorf("Expected ErrNetworkError, got %v", err)
		}
	})
}

func TestOpenAIProvider(t *testing.T) {
	logger := zap.NewNop()

	t.Run("MissingKey", func(t *testing.T) {
		t.Setenv("RECIPE_AI_TEST_KEY", "")
		_, err := NewOpenAIProvider(&Config{Model: "text-embedding-3-small", APIKeyEnv: "RECIPE_AI_TEST_KEY"}, logger)
		if !errors.Is(err, ErrConfigError) {
			t.Errorf("Expected ErrConfigError, got %v", err)
		}
	})

	t.Run("Embed", func(t *testing.T) {
		t.Setenv("RECIPE_AI_TEST_KEY", "sk-test")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
				t.Errorf("Unexpected auth header: %s", got)
			}
			w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
		}))
		defer server.Close()

		p, err := NewOpenAIProvider(&Config{Model: "m", APIKeyEnv: "RECIPE_AI_TEST_KEY", BaseURL: server.URL}, logger)
		if err != nil {
			t.Fatalf("NewOpenAIProvider failed: %v", err)
		}
		v, err := p.Embed(context.Background(), "eggs")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if len(v) != 2 || v[0] != 1 {
			t.Errorf("Unexpected embedding: %v", v)
		}
	})

	t.Run("APIError", func(t *testing.T) {
		t.Setenv("RECIPE_AI_TEST_KEY", "sk-test")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
		}))
		defer server.Close()

		p, _ := NewOpenAIProvider(&Config{Model: "m", APIKeyEnv: "RECIPE_AI_TEST_KEY", BaseURL: server.URL}, logger)
		if _, err := p.Embed(context.Background(), "eggs"); !errors.Is(err, ErrProviderFailed) {
			t.Errorf("Expected ErrProviderFailed, got %v", err)
		}
	})
}

type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]float32
	failGet bool
	failSet bool
}

func (c *memoryCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[model+"|"+text]
	return v, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, model, text string, embedding []float32) error {
	if c.failSet {
		return errors.New("cache down")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[model+"|"+text] = embedding
	return nil
}

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(len(text))}, nil
}

func (p *countingProvider) ModelName() string { return "counting" }

func TestCachedProvider(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("HitSkipsProvider", func(t *testing.T) {
		inner := &countingProvider{}
		p := NewCachedProvider(inner, &memoryCache{data: map[string][]float32{}}, logger)

		p.Embed(ctx, "eggs")
		v, err := p.Embed(ctx, "eggs")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if inner.calls != 1 {
			t.Errorf("Expected 1 provider call, got %d", inner.calls)
		}
		if len(v) != 1 || v[0] != 4 {
			t.Errorf("Unexpected embedding: %v", v)
		}
	})

	t.Run("CacheFailureBypassed", func(t *testing.T) {
		inner := &countingProvider{}
		p := NewCachedProvider(inner, &memoryCache{failGet: true, failSet: true}, logger)
		if _, err := p.Embed(ctx, "eggs"); err != nil {
			t.Errorf("Cache failure should be bypassed, got %v", err)
		}
	})

	t.Run("ProviderFailurePropagates", func(t *testing.T) {
		inner := &countingProvider{err: ErrProviderFailed}
		p := NewCachedProvider(inner, &memoryCache{data: map[string][]float32{}}, logger)
		if _, err := p.Embed(ctx, "eggs"); !errors.Is(err, ErrProviderFailed) {
			t.Errorf("Expected ErrProviderFailed, got %v", err)
		}
	})
}

func TestFactory(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"hash", Config{Provider: "hash", Dimensions: 16}, false},
		{"ollama", Config{Provider: "ollama", Model: "mxbai-embed-large"}, false},
		{"ollama without model", Config{Provider: "ollama"}, true},
		{"unknown", Config{Provider: "onnx"}, true},
		{"negative dimensions", Config{Provider: "hash", Dimensions: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(&tt.config, nil, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("WrapsWithCache", func(t *testing.T) {
		p, err := NewProvider(&Config{Provider: "hash"}, &memoryCache{data: map[string][]float32{}}, logger)
		if err != nil {
			t.Fatalf("NewProvider failed: %v", err)
		}
		if _, ok := p.(*CachedProvider); !ok {
			t.Errorf("Expected *CachedProvider, got %T", p)
		}
	})
}
