package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/recipe-ai/internal/ingredients"
)

// handleAddIngredient stores one ingredient list
func (s *Server) handleAddIngredient(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	id, err := s.service.AddIngredient(r.Context(), req.RecipeID, req.Ingredients)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, addResponse{
		Success: true,
		Message: "Ingredients added successfully",
		ID:      id,
	})
}

// handleAddIngredientsBatch stores many ingredient lists in one call
func (s *Server) handleAddIngredientsBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	ids, err := s.service.AddIngredientsBatch(r.Context(), req.Records)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, batchResponse{
		Success: true,
		Message: fmt.Sprintf("%d ingredient lists added successfully", len(ids)),
		IDs:     ids,
	})
}

// handleSearch returns the stored lists most similar to the query
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	limit := s.config.Search.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}

	results, err := s.service.SearchSimilarIngredients(r.Context(), req.Ingredients, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Success: true, Results: results})
}

// handleDeleteIngredients deletes one recipe's lists, or everything when recipe_id is "*"
func (s *Server) handleDeleteIngredients(w http.ResponseWriter, r *http.Request) {
	recipeID := r.URL.Query().Get("recipe_id")
	if recipeID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "recipe_id query parameter is required"})
		return
	}

	var (
		deleted int
		err     error
		message string
	)
	if recipeID == clearAll {
		deleted, err = s.service.Clear(r.Context())
		message = "All ingredients deleted successfully"
	} else {
		deleted, err = s.service.DeleteByRecipeID(r.Context(), recipeID)
		message = fmt.Sprintf("Ingredients for recipe %s deleted successfully", recipeID)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Success:      true,
		DeletedCount: deleted,
		Message:      message,
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

// handleInfo reports build, configuration and collection details
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	info := infoResponse{
		Name:             "recipe-ai",
		Version:          s.version,
		Environment:      s.config.Store.Environment,
		Backend:          s.config.Store.Backend,
		Provider:         s.config.Embedding.Provider,
		Service:          stats,
		EventsEnabled:    s.hub != nil,
		RateLimitEnabled: s.config.RateLimit.Enabled,
	}
	if s.hub != nil {
		info.EventClients = s.hub.GetStats().ActiveConnections
	}

	writeJSON(w, http.StatusOK, info)
}

// handleWebSocket attaches a change-feed listener
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.NotFound(w, r)
		return
	}
	s.hub.HandleWebSocket(w, r)
}

// decodeJSON reads a size-limited JSON body into dst, answering 400 on failure
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// writeServiceError maps service failures to HTTP status codes
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger.WithRequestID(getRequestID(r.Context()))

	var validationErr *ingredients.ValidationError
	var providerErr *ingredients.ProviderError
	var storeErr *ingredients.StoreError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
	case errors.As(err, &providerErr):
		log.Error("Embedding provider failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "embedding provider unavailable"})
	case errors.As(err, &storeErr):
		log.Error("Vector store failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "vector store failure"})
	default:
		log.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
