package importer

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raaihank/recipe-ai/internal/ingredients"
)

// ServiceClient talks to a running recipe-ai API
type ServiceClient struct {
	baseURL string
	client  *http.Client
}

// NewServiceClient creates a client for config.ServiceURL
func NewServiceClient(config *Config) *ServiceClient {
	return &ServiceClient{
		baseURL: strings.TrimRight(config.ServiceURL, "/"),
		client:  newHTTPClient(config.Timeout),
	}
}

// Health returns the service clock reported by GET /health
func (c *ServiceClient) Health(ctx context.Context) (time.Time, error) {
	var resp struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := doJSON(ctx, c.client, http.MethodGet, c.baseURL+"/health", nil, &resp); err != nil {
		return time.Time{}, err
	}
	if resp.Status != "ok" {
		return time.Time{}, errors.New("service reported status " + resp.Status)
	}
	return resp.Timestamp, nil
}

// AddBatch uploads records and returns their ids in order
func (c *ServiceClient) AddBatch(ctx context.Context, records []ingredients.Record) ([]string, error) {
	var resp struct {
		IDs []string `json:"ids"`
	}
	body := map[string]interface{}{"records": records}
	if err := doJSON(ctx, c.client, http.MethodPost, c.baseURL+"/ingredients/batch", body, &resp); err != nil {
		return nil, err
	}
	if resp.IDs == nil {
		return nil, errors.New("invalid response format from recipe-ai: missing ids")
	}
	return resp.IDs, nil
}

// Search runs a similarity search
func (c *ServiceClient) Search(ctx context.Context, query string, limit int) ([]ingredients.Result, error) {
	var resp struct {
		Success bool                 `json:"success"`
		Results []ingredients.Result `json:"results"`
	}
	body := map[string]interface{}{"ingredients": query, "limit": limit}
	if err := doJSON(ctx, c.client, http.MethodPost, c.baseURL+"/ingredients/search", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errors.New("search response has unexpected format")
	}
	return resp.Results, nil
}

// DeleteAll removes every stored ingredient list
func (c *ServiceClient) DeleteAll(ctx context.Context) (*DeleteResult, error) {
	var resp DeleteResult
	target := c.baseURL + "/ingredients?recipe_id=" + url.QueryEscape("*")
	if err := doJSON(ctx, c.client, http.MethodDelete, target, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
