package ingredients

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raaihank/recipe-ai/internal/embeddings"
	"github.com/raaihank/recipe-ai/internal/vector"
)

// Service maps recipe ingredient lists to embeddings and answers similarity queries.
// It is safe for concurrent use. Every operation initializes the service on first use.
type Service struct {
	provider embeddings.Provider
	backend  vector.Backend
	options  Options
	logger   *zap.Logger
	notifier Notifier

	initMu     sync.Mutex
	state      atomic.Int32
	collection vector.Collection
}

// New creates a service in the Uninitialized state
func New(provider embeddings.Provider, backend vector.Backend, options Options, logger *zap.Logger) *Service {
	if options.BatchConcurrency <= 0 {
		options.BatchConcurrency = defaultBatchConcurrency
	}
	return &Service{
		provider: provider,
		backend:  backend,
		options:  options,
		logger:   logger,
	}
}

// SetNotifier registers a receiver for change events. Call before serving traffic.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// State returns the current lifecycle state
func (s *Service) State() State {
	return State(s.state.Load())
}

// Initialize opens the collection. It is idempotent and safe for concurrent callers;
// a failed attempt leaves the service Uninitialized so the next call retries.
func (s *Service) Initialize(ctx context.Context) error {
	if s.State() == Ready {
		return nil
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.State() == Ready {
		return nil
	}

	s.state.Store(int32(Initializing))
	start := time.Now()

	collection, err := s.backend.OpenCollection(ctx, s.options.Collection)
	if err != nil {
		s.state.Store(int32(Uninitialized))
		s.logger.Error("Failed to initialize embedding service",
			zap.String("collection", s.options.Collection),
			zap.Error(err))
		return &StoreError{Op: "initialize", Err: err}
	}

	s.collection = collection
	s.state.Store(int32(Ready))

	s.logger.Info("Embedding service initialized",
		zap.String("collection", s.options.Collection),
		zap.String("model", s.provider.ModelName()),
		zap.Duration("duration", time.Since(start)))

	return nil
}

func (s *Service) ready(ctx context.Context) (vector.Collection, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s.collection, nil
}

// AddIngredient embeds ingredients and stores them under recipeID, returning the new document id
func (s *Service) AddIngredient(ctx context.Context, recipeID, ingredients string) (string, error) {
	if err := validateRecord(Record{RecipeID: recipeID, Ingredients: ingredients}, ""); err != nil {
		return "", err
	}

	collection, err := s.ready(ctx)
	if err != nil {
		return "", err
	}

	embedding, err := s.provider.Embed(ctx, ingredients)
	if err != nil {
		return "", &ProviderError{Op: "add", Err: err}
	}

	doc := newDocument(recipeID, ingredients, embedding)
	if err := collection.Upsert(ctx, []vector.Document{doc}); err != nil {
		return "", &StoreError{Op: "add", Err: err}
	}

	s.logger.Debug("Ingredient added",
		zap.String("id", doc.ID),
		zap.String("recipe_id", recipeID))

	s.publish(Event{Type: EventDocumentAdded, ID: doc.ID, RecipeID: recipeID, Count: 1})
	return doc.ID, nil
}

// AddIngredientsBatch embeds every record in parallel and stores them with a single upsert.
// The returned ids follow the order of records. One invalid record rejects the whole batch.
func (s *Service) AddIngredientsBatch(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, &ValidationError{Field: "records", Message: "must not be empty"}
	}
	for i, record := range records {
		if err := validateRecord(record, fmt.Sprintf("records[%d].", i)); err != nil {
			return nil, err
		}
	}

	collection, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	vectors := make([][]float32, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.BatchConcurrency)
	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			embedding, err := s.provider.Embed(gctx, record.Ingredients)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			vectors[i] = embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &ProviderError{Op: "add batch", Err: err}
	}

	docs := make([]vector.Document, len(records))
	ids := make([]string, len(records))
	for i, record := range records {
		docs[i] = newDocument(record.RecipeID, record.Ingredients, vectors[i])
		ids[i] = docs[i].ID
	}

	if err := collection.Upsert(ctx, docs); err != nil {
		return nil, &StoreError{Op: "add batch", Err: err}
	}

	s.logger.Info("Ingredient batch added",
		zap.Int("count", len(docs)),
		zap.Duration("duration", time.Since(start)))

	for _, doc := range docs {
		s.publish(Event{Type: EventDocumentAdded, ID: doc.ID, RecipeID: doc.Metadata[metadataRecipeID], Count: 1})
	}
	return ids, nil
}

// SearchSimilarIngredients returns up to limit stored lists ordered by similarity to query
func (s *Service) SearchSimilarIngredients(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "ingredients", Message: "is required"}
	}
	if limit < 1 {
		return nil, &ValidationError{Field: "limit", Message: "must be at least 1"}
	}

	collection, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	embedding, err := s.provider.Embed(ctx, s.options.QueryPrefix+query)
	if err != nil {
		return nil, &ProviderError{Op: "search", Err: err}
	}

	matches, err := collection.Query(ctx, embedding, limit)
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			RecipeID:    m.Metadata[metadataRecipeID],
			Ingredients: m.Content,
		})
	}

	s.logger.Debug("Similarity search completed",
		zap.Int("limit", limit),
		zap.Int("results", len(results)))

	return results, nil
}

// DeleteByRecipeID removes every document stored under recipeID and reports how many were removed
func (s *Service) DeleteByRecipeID(ctx context.Context, recipeID string) (int, error) {
	if strings.TrimSpace(recipeID) == "" {
		return 0, &ValidationError{Field: "recipe_id", Message: "is required"}
	}

	collection, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	docs, err := collection.Get(ctx, vector.Where{metadataRecipeID: recipeID})
	if err != nil {
		return 0, &StoreError{Op: "delete", Err: err}
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}

	deleted, err := collection.Delete(ctx, ids)
	if err != nil {
		return 0, &StoreError{Op: "delete", Err: err}
	}

	s.logger.Info("Ingredients deleted",
		zap.String("recipe_id", recipeID),
		zap.Int("deleted", deleted))

	if deleted > 0 {
		s.publish(Event{Type: EventDocumentsDeleted, RecipeID: recipeID, Count: deleted})
	}
	return deleted, nil
}

// Clear removes every document in the collection and reports how many were removed
func (s *Service) Clear(ctx context.Context) (int, error) {
	collection, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	deleted, err := collection.DeleteAll(ctx)
	if err != nil {
		return 0, &StoreError{Op: "clear", Err: err}
	}

	s.logger.Info("Collection cleared",
		zap.String("collection", collection.Name()),
		zap.Int("deleted", deleted))

	s.publish(Event{Type: EventCollectionCleared, Count: deleted})
	return deleted, nil
}

// Stats reports lifecycle state and collection size
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	collection, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	count, err := collection.Count(ctx)
	if err != nil {
		return nil, &StoreError{Op: "stats", Err: err}
	}

	return &Stats{
		State:      s.State().String(),
		Collection: collection.Name(),
		Model:      s.provider.ModelName(),
		Documents:  count,
	}, nil
}

func (s *Service) publish(event Event) {
	if s.notifier == nil {
		return
	}
	event.Collection = s.options.Collection
	event.Timestamp = time.Now()
	s.notifier.Publish(event)
}

func validateRecord(record Record, prefix string) error {
	if strings.TrimSpace(record.RecipeID) == "" {
		return &ValidationError{Field: prefix + "recipe_id", Message: "is required"}
	}
	if strings.TrimSpace(record.Ingredients) == "" {
		return &ValidationError{Field: prefix + "ingredients", Message: "is required"}
	}
	return nil
}

func newDocument(recipeID, ingredients string, embedding []float32) vector.Document {
	return vector.Document{
		ID:        idPrefix + uuid.NewString(),
		Embedding: embedding,
		Metadata:  map[string]string{metadataRecipeID: recipeID},
		Content:   ingredients,
	}
}
