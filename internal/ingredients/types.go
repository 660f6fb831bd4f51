package ingredients

import "time"

// State is the service lifecycle state
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Record is one ingredient list to ingest
type Record struct {
	RecipeID    string `json:"recipe_id"`
	Ingredients string `json:"ingredients"`
}

// Result is one search hit
type Result struct {
	RecipeID    string `json:"recipe_id"`
	Ingredients string `json:"ingredients"`
}

// Options configures a Service
type Options struct {
	// Collection is the vector collection name, e.g. "ingredients" or "ingredients_test".
	Collection string
	// QueryPrefix is prepended to search queries before embedding.
	QueryPrefix string
	// BatchConcurrency bounds parallel embedding calls in AddIngredientsBatch.
	BatchConcurrency int
}

// Stats describes the service for status endpoints
type Stats struct {
	State      string `json:"state"`
	Collection string `json:"collection"`
	Model      string `json:"model"`
	Documents  int    `json:"documents"`
}

// EventType names a change to the collection
type EventType string

const (
	EventDocumentAdded     EventType = "document_added"
	EventDocumentsDeleted  EventType = "documents_deleted"
	EventCollectionCleared EventType = "collection_cleared"
)

// Event describes a completed mutation
type Event struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	ID         string    `json:"id,omitempty"`
	RecipeID   string    `json:"recipe_id,omitempty"`
	Count      int       `json:"count,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier receives events after mutations succeed. Publish must not block.
type Notifier interface {
	Publish(event Event)
}

const (
	metadataRecipeID        = "recipe_id"
	idPrefix                = "ing_"
	defaultBatchConcurrency = 8
)
