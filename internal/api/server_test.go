package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raaihank/recipe-ai/internal/config"
	"github.com/raaihank/recipe-ai/internal/ingredients"
	"github.com/raaihank/recipe-ai/internal/logger"
)

type stubService struct {
	addFn    func(recipeID, text string) (string, error)
	batchFn  func(records []ingredients.Record) ([]string, error)
	searchFn func(query string, limit int) ([]ingredients.Result, error)
	deleteFn func(recipeID string) (int, error)
	clearFn  func() (int, error)
}

func (s *stubService) AddIngredient(ctx context.Context, recipeID, text string) (string, error) {
	return s.addFn(recipeID, text)
}

func (s *stubService) AddIngredientsBatch(ctx context.Context, records []ingredients.Record) ([]string, error) {
	return s.batchFn(records)
}

func (s *stubService) SearchSimilarIngredients(ctx context.Context, query string, limit int) ([]ingredients.Result, error) {
	return s.searchFn(query, limit)
}

func (s *stubService) DeleteByRecipeID(ctx context.Context, recipeID string) (int, error) {
	return s.deleteFn(recipeID)
}

func (s *stubService) Clear(ctx context.Context) (int, error) {
	return s.clearFn()
}

func (s *stubService) Stats(ctx context.Context) (*ingredients.Stats, error) {
	return &ingredients.Stats{State: "ready", Collection: "ingredients_test", Model: "stub", Documents: 2}, nil
}

func newTestServer(t *testing.T, service IngredientService, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg, service, nil, logger.NewNop(), "test")
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
}

func TestAddIngredient(t *testing.T) {
	service := &stubService{
		addFn: func(recipeID, text string) (string, error) {
			if recipeID == "" {
				return "", &ingredients.ValidationError{Field: "recipe_id", Message: "is required"}
			}
			return "ing_1", nil
		},
	}
	s := newTestServer(t, service, nil)

	t.Run("Created", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/ingredients", `{"recipe_id":"r1","ingredients":"tomato, basil"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
		var resp addResponse
		decode(t, rec, &resp)
		if !resp.Success || resp.ID != "ing_1" || resp.Message != "Ingredients added successfully" {
			t.Errorf("response = %+v", resp)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/ingredients", `{"ingredients":"tomato"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		var resp errorResponse
		decode(t, rec, &resp)
		if resp.Success || !strings.Contains(resp.Error, "recipe_id") {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/ingredients", `{"recipe_id":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		small := newTestServer(t, service, func(c *config.Config) { c.Server.MaxBodyBytes = 16 })
		rec := do(t, small, http.MethodPost, "/ingredients", `{"recipe_id":"r1","ingredients":"a very long list of ingredients"}`)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", rec.Code)
		}
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &ingredients.ValidationError{Field: "records", Message: "must not be empty"}, http.StatusBadRequest},
		{"provider", &ingredients.ProviderError{Op: "add batch", Err: errors.New("connection refused")}, http.StatusBadGateway},
		{"store", &ingredients.StoreError{Op: "add batch", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &stubService{
				batchFn: func([]ingredients.Record) ([]string, error) { return nil, tt.err },
			}
			rec := do(t, newTestServer(t, service, nil), http.MethodPost, "/ingredients/batch", `{"records":[]}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var resp errorResponse
			decode(t, rec, &resp)
			if resp.Success || resp.Error == "" {
				t.Errorf("response = %+v", resp)
			}
			if tt.want >= 500 && strings.Contains(resp.Error, "disk full") {
				t.Error("internal error detail leaked to client")
			}
		})
	}
}

func TestAddIngredientsBatch(t *testing.T) {
	var got []ingredients.Record
	service := &stubService{
		batchFn: func(records []ingredients.Record) ([]string, error) {
			got = records
			return []string{"ing_a", "ing_b"}, nil
		},
	}

	rec := do(t, newTestServer(t, service, nil), http.MethodPost, "/ingredients/batch",
		`{"records":[{"recipe_id":"1","ingredients":"egg"},{"recipe_id":"2","ingredients":"milk"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var resp batchResponse
	decode(t, rec, &resp)
	if len(resp.IDs) != 2 || resp.IDs[0] != "ing_a" || resp.IDs[1] != "ing_b" {
		t.Errorf("ids = %v", resp.IDs)
	}
	if len(got) != 2 || got[1].RecipeID != "2" || got[1].Ingredients != "milk" {
		t.Errorf("records passed to service = %+v", got)
	}
}

func TestSearch(t *testing.T) {
	var gotLimit int
	var gotQuery string
	service := &stubService{
		searchFn: func(query string, limit int) ([]ingredients.Result, error) {
			gotQuery, gotLimit = query, limit
			if limit < 1 {
				return nil, &ingredients.ValidationError{Field: "limit", Message: "must be at least 1"}
			}
			return []ingredients.Result{{RecipeID: "r1", Ingredients: "tomato, basil"}}, nil
		},
	}
	s := newTestServer(t, service, func(c *config.Config) { c.Search.MaxLimit = 10 })

	tests := []struct {
		name       string
		body       string
		wantLimit  int
		wantStatus int
	}{
		{"default limit", `{"ingredients":"tomato"}`, 3, http.StatusOK},
		{"explicit limit", `{"ingredients":"tomato","limit":5}`, 5, http.StatusOK},
		{"capped limit", `{"ingredients":"tomato","limit":500}`, 10, http.StatusOK},
		{"zero limit", `{"ingredients":"tomato","limit":0}`, 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/ingredients/search", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", gotLimit, tt.wantLimit)
			}
			if gotQuery != "tomato" {
				t.Errorf("query = %q", gotQuery)
			}
		})
	}

	rec := do(t, s, http.MethodPost, "/ingredients/search", `{"ingredients":"tomato"}`)
	var resp searchResponse
	decode(t, rec, &resp)
	if !resp.Success || len(resp.Results) != 1 || resp.Results[0].RecipeID != "r1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestDeleteIngredients(t *testing.T) {
	var deletedRecipe string
	cleared := false
	service := &stubService{
		deleteFn: func(recipeID string) (int, error) {
			deletedRecipe = recipeID
			return 2, nil
		},
		clearFn: func() (int, error) {
			cleared = true
			return 5, nil
		},
	}
	s := newTestServer(t, service, nil)

	t.Run("ByRecipeID", func(t *testing.T) {
		rec := do(t, s, http.MethodDelete, "/ingredients?recipe_id=r1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp deleteResponse
		decode(t, rec, &resp)
		if resp.DeletedCount != 2 || deletedRecipe != "r1" || cleared {
			t.Errorf("response = %+v, recipe = %q, cleared = %v", resp, deletedRecipe, cleared)
		}
	})

	t.Run("Wildcard", func(t *testing.T) {
		rec := do(t, s, http.MethodDelete, "/ingredients?recipe_id=*", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp deleteResponse
		decode(t, rec, &resp)
		if !cleared || resp.DeletedCount != 5 || resp.Message != "All ingredients deleted successfully" {
			t.Errorf("response = %+v, cleared = %v", resp, cleared)
		}
	})

	t.Run("MissingRecipeID", func(t *testing.T) {
		rec := do(t, s, http.MethodDelete, "/ingredients", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t, &stubService{}, nil)

	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health healthResponse
	decode(t, rec, &health)
	if health.Status != "ok" || time.Since(health.Timestamp) > time.Minute {
		t.Errorf("health = %+v", health)
	}

	rec = do(t, s, http.MethodGet, "/info", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("info status = %d", rec.Code)
	}
	var info infoResponse
	decode(t, rec, &info)
	if info.Version != "test" || info.Service == nil || info.Service.Documents != 2 || info.EventsEnabled {
		t.Errorf("info = %+v", info)
	}

	rec = do(t, s, http.MethodGet, "/ws", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("ws without hub status = %d, want 404", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("dashboard status = %d, content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestRateLimit(t *testing.T) {
	service := &stubService{
		addFn: func(string, string) (string, error) { return "ing_1", nil },
	}
	s := newTestServer(t, service, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1, ClientTTL: time.Minute}
	})

	body := `{"recipe_id":"r1","ingredients":"egg"}`
	if rec := do(t, s, http.MethodPost, "/ingredients", body); rec.Code != http.StatusCreated {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/ingredients", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}

	// Health checks are not rate limited.
	if rec := do(t, s, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1})
	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")

	if removed := limiter.CleanupOldClients(time.Now().Add(-time.Hour)); removed != 0 {
		t.Errorf("removed %d recent clients", removed)
	}
	if removed := limiter.CleanupOldClients(time.Now().Add(time.Second)); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if limiter.Clients() != 0 {
		t.Errorf("clients = %d, want 0", limiter.Clients())
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.9:1234", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.9:1234", "5.6.7.8"},
		{"remote addr", nil, "10.0.0.9:1234", "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
