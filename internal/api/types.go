package api

import (
	"context"
	"time"

	"github.com/raaihank/recipe-ai/internal/ingredients"
)

// IngredientService is the part of ingredients.Service the HTTP layer needs
type IngredientService interface {
	AddIngredient(ctx context.Context, recipeID, ingredients string) (string, error)
	AddIngredientsBatch(ctx context.Context, records []ingredients.Record) ([]string, error)
	SearchSimilarIngredients(ctx context.Context, query string, limit int) ([]ingredients.Result, error)
	DeleteByRecipeID(ctx context.Context, recipeID string) (int, error)
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*ingredients.Stats, error)
}

var _ IngredientService = (*ingredients.Service)(nil)

// clearAll is the recipe_id value that deletes every document
const clearAll = "*"

type addRequest struct {
	RecipeID    string `json:"recipe_id"`
	Ingredients string `json:"ingredients"`
}

type batchRequest struct {
	Records []ingredients.Record `json:"records"`
}

type searchRequest struct {
	Ingredients string `json:"ingredients"`
	Limit       *int   `json:"limit,omitempty"`
}

type addResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

type batchResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	IDs     []string `json:"ids"`
}

type searchResponse struct {
	Success bool                 `json:"success"`
	Results []ingredients.Result `json:"results"`
}

type deleteResponse struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deletedCount"`
	Message      string `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type infoResponse struct {
	Name             string             `json:"name"`
	Version          string             `json:"version"`
	Environment      string             `json:"environment"`
	Backend          string             `json:"backend"`
	Provider         string             `json:"provider"`
	Service          *ingredients.Stats `json:"service"`
	EventsEnabled    bool               `json:"events_enabled"`
	EventClients     int64              `json:"event_clients"`
	RateLimitEnabled bool               `json:"rate_limit_enabled"`
}
