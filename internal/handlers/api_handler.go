package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"studytrail/internal/models"
	"studytrail/internal/service"
	"studytrail/internal/validation"
)

// APIHandler serves the identity and remote progress endpoints
type APIHandler struct {
	claims   *service.ClaimService
	progress *service.ProgressService
	logger   *zap.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(claims *service.ClaimService, progress *service.ProgressService, logger *zap.Logger) *APIHandler {
	return &APIHandler{claims: claims, progress: progress, logger: logger}
}

// Routes registers the API on mux
func (h *APIHandler) Routes(mux *http.ServeMux, m *Middleware) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("POST /api/v1/claims", m.RateLimitClaims(h.Claim))
	mux.HandleFunc("GET /api/v1/usernames/suggestion", m.RateLimitClaims(h.SuggestUsername))
	mux.HandleFunc("GET /api/v1/progress/{username}", h.GetProgress)
	mux.HandleFunc("PUT /api/v1/progress/{username}", m.RequireWriteToken(h.PutProgress))
}

// Health reports that the server is up
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

type claimRequest struct {
	Username string `json:"username"`
}

// Claim creates or resumes a username
func (h *APIHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	claim, err := h.claims.Claim(r.Context(), req.Username)
	if err != nil {
		var ve validation.ValidationError
		if errors.As(err, &ve) {
			respondWithError(w, h.logger, http.StatusBadRequest, ve.Message, "", nil)
			return
		}
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "claim failed", err)
		return
	}

	status := http.StatusOK
	if claim.Status == service.ClaimCreated {
		status = http.StatusCreated
	}
	respondWithJSON(w, h.logger, status, claim)
}

// SuggestUsername offers a generated username that is free to claim
func (h *APIHandler) SuggestUsername(w http.ResponseWriter, r *http.Request) {
	username, err := h.claims.Suggest(r.Context())
	if err != nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, ErrNoSuggestion, "username suggestion failed", err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"username": username})
}

// GetProgress returns the stored record for a username
func (h *APIHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	username := validation.NormalizeUsername(r.PathValue("username"))

	payload, err := h.progress.Get(r.Context(), username)
	if errors.Is(err, service.ErrNotFound) {
		respondWithError(w, h.logger, http.StatusNotFound, ErrNotFound, "", nil)
		return
	}
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to load progress", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		h.logger.Warn("failed to write progress", zap.Error(err))
	}
}

// PutProgress replaces the stored record for a username
func (h *APIHandler) PutProgress(w http.ResponseWriter, r *http.Request) {
	username := validation.NormalizeUsername(r.PathValue("username"))

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	err = h.progress.Put(r.Context(), username, payload)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, models.ErrInvalidProgress):
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidProgressRecord, "", nil)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, h.logger, http.StatusNotFound, ErrNotFound, "", nil)
	default:
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to save progress", err)
	}
}
