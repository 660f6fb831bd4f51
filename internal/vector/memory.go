package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MemoryBackend is the exact in-process backend: every query is a linear cosine scan
// over all documents of the collection. Suitable for tests and small deployments.
type MemoryBackend struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
	closed      bool
	logger      *zap.Logger
}

// NewMemoryBackend creates an empty in-process backend
func NewMemoryBackend(logger *zap.Logger) *MemoryBackend {
	return &MemoryBackend{
		collections: make(map[string]*memoryCollection),
		logger:      logger,
	}
}

// OpenCollection returns the named collection, creating it on first use.
func (b *MemoryBackend) OpenCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBackendClosed
	}

	if c, ok := b.collections[name]; ok {
		return c, nil
	}

	c := &memoryCollection{
		name:    name,
		backend: b,
		index:   make(map[string]int),
	}
	b.collections[name] = c

	b.logger.Info("Memory collection created", zap.String("collection", name))
	return c, nil
}

// Close drops every collection. Handles obtained earlier return ErrBackendClosed.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.collections = make(map[string]*memoryCollection)
	return nil
}

func (b *MemoryBackend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// memoryCollection keeps documents in insertion order. Mutations take the write
// lock; queries share the read lock.
type memoryCollection struct {
	name    string
	backend *MemoryBackend

	mu        sync.RWMutex
	docs      []Document
	index     map[string]int
	dimension int
}

func (c *memoryCollection) Name() string {
	return c.name
}

func (c *memoryCollection) Upsert(ctx context.Context, docs []Document) error {
	if c.backend.isClosed() {
		return ErrBackendClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Validate the whole batch before touching state.
	dimension := c.dimension
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("%w: document %d has no id", ErrInvalidDocument, i)
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("%w: document %q has no embedding", ErrInvalidDocument, doc.ID)
		}
		if dimension == 0 {
			dimension = len(doc.Embedding)
		}
		if len(doc.Embedding) != dimension {
			return fmt.Errorf("%w: document %q has %d dimensions, collection has %d",
				ErrDimensionMismatch, doc.ID, len(doc.Embedding), dimension)
		}
	}

	c.dimension = dimension
	for _, doc := range docs {
		stored := cloneDocument(doc)
		if pos, ok := c.index[doc.ID]; ok {
			c.docs[pos] = stored
			continue
		}
		c.index[doc.ID] = len(c.docs)
		c.docs = append(c.docs, stored)
	}

	c.backend.logger.Debug("Documents upserted",
		zap.String("collection", c.name),
		zap.Int("count", len(docs)),
		zap.Int("total", len(c.docs)))

	return nil
}

func (c *memoryCollection) Get(ctx context.Context, where Where) ([]Document, error) {
	if c.backend.isClosed() {
		return nil, ErrBackendClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Document
	for _, doc := range c.docs {
		if where.Matches(doc.Metadata) {
			out = append(out, cloneDocument(doc))
		}
	}
	return out, nil
}

func (c *memoryCollection) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if c.backend.isClosed() {
		return nil, ErrBackendClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if topK <= 0 || len(c.docs) == 0 {
		return []Match{}, nil
	}
	if len(embedding) != c.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			ErrDimensionMismatch, len(embedding), c.dimension)
	}

	matches := make([]Match, len(c.docs))
	for i, doc := range c.docs {
		matches[i] = Match{
			Document: Document{
				ID:       doc.ID,
				Metadata: cloneMetadata(doc.Metadata),
				Content:  doc.Content,
			},
			Similarity: CosineSimilarity(embedding, doc.Embedding),
		}
	}

	// c.docs is in insertion order, so a stable sort keeps earlier documents first on ties.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (c *memoryCollection) Delete(ctx context.Context, ids []string) (int, error) {
	if c.backend.isClosed() {
		return 0, ErrBackendClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]Document, 0, len(c.docs))
	index := make(map[string]int, len(c.docs))
	for _, doc := range c.docs {
		if _, ok := remove[doc.ID]; ok {
			continue
		}
		index[doc.ID] = len(kept)
		kept = append(kept, doc)
	}

	removed := len(c.docs) - len(kept)
	c.docs = kept
	c.index = index
	return removed, nil
}

func (c *memoryCollection) DeleteAll(ctx context.Context) (int, error) {
	if c.backend.isClosed() {
		return 0, ErrBackendClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.docs)
	c.docs = nil
	c.index = make(map[string]int)
	return removed, nil
}

func (c *memoryCollection) Count(ctx context.Context) (int, error) {
	if c.backend.isClosed() {
		return 0, ErrBackendClosed
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs), nil
}

func cloneDocument(doc Document) Document {
	out := Document{
		ID:       doc.ID,
		Metadata: cloneMetadata(doc.Metadata),
		Content:  doc.Content,
	}
	if doc.Embedding != nil {
		out.Embedding = make([]float32, len(doc.Embedding))
		copy(out.Embedding, doc.Embedding)
	}
	return out
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
