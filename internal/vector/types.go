package vector

import (
	"context"
	"errors"
	"time"
)

// Document is one stored record: an id, its embedding, flat string metadata and the
// original text the embedding was computed from.
type Document struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	Content   string            `json:"content"`
}

// Match is a query hit ranked by cosine similarity (higher is closer).
type Match struct {
	Document
	Similarity float64 `json:"similarity"`
}

// Where is an equality filter over document metadata. Every key must match.
type Where map[string]string

// Matches reports whether metadata satisfies every condition of w. An empty filter matches all.
func (w Where) Matches(metadata map[string]string) bool {
	for k, v := range w {
		if got, ok := metadata[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Backend opens named collections. Implementations must be safe for concurrent use.
type Backend interface {
	// OpenCollection returns the named collection, creating it if needed.
	// Reopening an existing collection never erases its contents.
	OpenCollection(ctx context.Context, name string) (Collection, error)
	// Close releases resources held by the backend.
	Close() error
}

// Collection is a named, isolated set of documents with a fixed embedding dimension.
type Collection interface {
	Name() string

	// Upsert stores all documents or none of them. Existing ids are replaced.
	Upsert(ctx context.Context, docs []Document) error

	// Get returns the documents whose metadata satisfies where, in insertion order.
	Get(ctx context.Context, where Where) ([]Document, error)

	// Query returns at most topK documents ordered by descending cosine similarity to
	// embedding, ties broken by insertion order. Fewer rows are returned when the
	// collection is smaller; an empty collection yields an empty result.
	Query(ctx context.Context, embedding []float32, topK int) ([]Match, error)

	// Delete removes the given ids and reports how many were actually present.
	Delete(ctx context.Context, ids []string) (int, error)

	// DeleteAll empties the collection and reports how many documents were removed.
	DeleteAll(ctx context.Context) (int, error)

	Count(ctx context.Context) (int, error)
}

// Config contains vector backend configuration
type Config struct {
	Backend  string         `yaml:"backend" mapstructure:"backend"` // memory or postgres
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig contains database configuration for the pgvector backend
type PostgresConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	// Dimensions pins the embedding column width. Zero leaves it untyped, which
	// rules out an ANN index.
	Dimensions  int  `yaml:"dimensions" mapstructure:"dimensions"`
	CreateIndex bool `yaml:"create_index" mapstructure:"create_index"`
}

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the collection's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidDocument is returned for documents without an id or embedding.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrBackendClosed is returned by collections whose backend has been closed.
	ErrBackendClosed = errors.New("vector backend closed")
)
