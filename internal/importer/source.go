package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// RecipeSource reads recipes from the upstream recipes API
type RecipeSource struct {
	baseURL string
	client  *http.Client
	config  *Config
	logger  *zap.Logger
}

// NewRecipeSource creates a client for config.RecipesAPIURL
func NewRecipeSource(config *Config, logger *zap.Logger) *RecipeSource {
	return &RecipeSource{
		baseURL: strings.TrimRight(config.RecipesAPIURL, "/"),
		client:  newHTTPClient(config.Timeout),
		config:  config,
		logger:  logger,
	}
}

// Health checks that the recipes API answers GET /health
func (s *RecipeSource) Health(ctx context.Context) error {
	return doJSON(ctx, s.client, http.MethodGet, s.baseURL+"/health", nil, nil)
}

// FetchPage fetches one page of recipes. An empty cursor starts from the beginning.
func (s *RecipeSource) FetchPage(ctx context.Context, limit int, cursor string) (*RecipePage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var page RecipePage
	if err := doJSON(ctx, s.client, http.MethodGet, s.baseURL+"/recipes?"+params.Encode(), nil, &page); err != nil {
		return nil, err
	}
	if page.Data == nil {
		return nil, errors.New("invalid response format from recipes API: missing data array")
	}
	return &page, nil
}

// FetchAll follows the pagination cursor until has_more is false.
// Each page is retried under the configured policy; exhausting it aborts the fetch.
func (s *RecipeSource) FetchAll(ctx context.Context, onPage func(fetched int)) ([]Recipe, error) {
	var (
		recipes []Recipe
		cursor  string
		pages   int
	)

	for {
		pages++
		var page *RecipePage
		err := withRetry(ctx, s.config, func(ctx context.Context) error {
			p, err := s.FetchPage(ctx, s.config.FetchBatchSize, cursor)
			if err != nil {
				s.logger.Warn("Recipe page fetch failed",
					zap.Int("page", pages),
					zap.String("cursor", cursor),
					zap.Error(err))
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recipes page %d: %w", pages, err)
		}

		recipes = append(recipes, page.Data...)
		s.logger.Info("Fetched recipes page",
			zap.Int("page", pages),
			zap.Int("count", len(page.Data)),
			zap.Int("total", len(recipes)),
			zap.Bool("has_more", page.Pagination.HasMore))
		if onPage != nil {
			onPage(len(recipes))
		}

		if !page.Pagination.HasMore {
			break
		}
		if page.Pagination.NextCursor == "" || page.Pagination.NextCursor == cursor {
			return nil, fmt.Errorf("recipes API reported more pages without advancing the cursor at page %d", pages)
		}
		cursor = page.Pagination.NextCursor
	}

	return recipes, nil
}
