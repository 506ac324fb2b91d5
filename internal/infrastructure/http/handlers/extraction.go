package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/application/extraction"
	"github.com/cookbookhq/backend/internal/infrastructure/http/middleware"
	"github.com/cookbookhq/backend/internal/ports/inbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

// ExtractionHandlers handles recipe extraction requests.
type ExtractionHandlers struct {
	service inbound.ExtractionService
	logger  *zap.Logger
}

// NewExtractionHandlers creates the extraction handler set.
func NewExtractionHandlers(service inbound.ExtractionService, logger *zap.Logger) *ExtractionHandlers {
	return &ExtractionHandlers{
		service: service,
		logger:  logger,
	}
}

// ExtractRequest is the POST /recipe body.
type ExtractRequest struct {
	URL   string `json:"url" validate:"notblank" example:"https://example.com/best-cookies"`
	HTML  string `json:"html,omitempty"`
	Title string `json:"title" validate:"notblank" example:"Best Cookies"`
}

// ExtractResponse is the POST /recipe success body.
type ExtractResponse struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	IsRecipe       bool   `json:"is_recipe"`
	StorageRef     string `json:"storage_ref,omitempty"`
	StorageWarning string `json:"storage_warning,omitempty"`
}

// Root handles GET /
// @Summary Service banner
// @Tags Service
// @Produce plain
// @Success 200 {string} string "OK"
// @Router / [get]
func (h *ExtractionHandlers) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// Hello handles GET /hello/{name}
// @Summary Greeting
// @Tags Service
// @Produce plain
// @Param name path string true "Name to greet"
// @Success 200 {string} string
// @Router /hello/{name} [get]
func (h *ExtractionHandlers) Hello(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Hello, Cookbook user %s!", name)
}

// ExtractRecipe handles POST /recipe
// @Summary Extract a recipe from a web page
// @Description Runs the extraction pipeline for one URL or inline HTML capture and stores the resulting YAML document in the caller's storage.
// @Tags Extraction
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param compression query string false "Inline HTML encoding; blank means Base64+gzip" Enums(none)
// @Param request body ExtractRequest true "Extraction request"
// @Success 200 {object} ExtractResponse
// @Failure 400 {object} ErrorResponse "Validation failure or undecodable HTML with no URL"
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse "Upstream HTML fetch failed"
// @Router /recipe [post]
func (h *ExtractionHandlers) ExtractRecipe(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	compression := r.URL.Query().Get("compression")
	if !extraction.ValidCompression(compression) {
		writeError(w, r, h.logger, errors.NewBadRequestError(fmt.Sprintf("unsupported compression %q", compression)))
		return
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, errors.NewBadRequestError("request body is not valid JSON"))
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.service.ExtractRecipe(r.Context(), inbound.ExtractRecipeCommand{
		UserID:      identity.UserID,
		UserEmail:   identity.Email,
		URL:         req.URL,
		Title:       req.Title,
		HTML:        req.HTML,
		Compression: compression,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, ExtractResponse{
		URL:            result.URL,
		Title:          result.Title,
		IsRecipe:       result.IsRecipe,
		StorageRef:     result.StorageRef,
		StorageWarning: result.StorageWarning,
	})
}
