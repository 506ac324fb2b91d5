package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/http/middleware"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

// CredentialHandlers manages cloud-storage credentials for the caller.
// Tokens are sealed before they reach the store and never logged.
type CredentialHandlers struct {
	store  outbound.CredentialStore
	cipher outbound.Cipher
	logger *zap.Logger
}

// NewCredentialHandlers creates the credential handler set.
func NewCredentialHandlers(store outbound.CredentialStore, cipher outbound.Cipher, logger *zap.Logger) *CredentialHandlers {
	return &CredentialHandlers{
		store:  store,
		cipher: cipher,
		logger: logger,
	}
}

// CredentialRequest is the PUT /storage/credential body.
type CredentialRequest struct {
	Provider string `json:"provider" validate:"notblank" example:"drive"`
	Token    string `json:"token" validate:"required"`
}

// UpsertCredential handles PUT /storage/credential
// @Summary Store a cloud-storage OAuth token
// @Description Seals the token for at-rest storage and upserts it for the authenticated user.
// @Tags Storage
// @Accept json
// @Security BearerAuth
// @Param request body CredentialRequest true "Credential"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /storage/credential [put]
func (h *CredentialHandlers) UpsertCredential(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, errors.NewBadRequestError("request body is not valid JSON"))
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sealed, err := h.cipher.Seal(req.Token)
	if err != nil {
		h.logger.Error("Credential seal failed", zap.Error(err))
		writeError(w, r, h.logger, errors.NewInternalError("could not store credential"))
		return
	}

	cred := &outbound.StorageCredential{
		UserID:      identity.UserID,
		Provider:    req.Provider,
		TokenCipher: sealed,
	}
	if err := h.store.Upsert(r.Context(), cred); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Storage credential stored",
		zap.String("user_id", identity.UserID),
		zap.String("provider", req.Provider))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCredential handles DELETE /storage/credential
// @Summary Remove a cloud-storage credential
// @Tags Storage
// @Security BearerAuth
// @Param provider query string true "Storage provider" example(drive)
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /storage/credential [delete]
func (h *CredentialHandlers) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	provider := r.URL.Query().Get("provider")
	if strings.TrimSpace(provider) == "" {
		writeError(w, r, h.logger, errors.NewBadRequestError("provider query parameter is required"))
		return
	}

	if err := h.store.Delete(r.Context(), identity.UserID, provider); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Storage credential removed",
		zap.String("user_id", identity.UserID),
		zap.String("provider", provider))
	w.WriteHeader(http.StatusNoContent)
}
