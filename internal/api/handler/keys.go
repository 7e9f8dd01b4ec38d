package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/keygate-io/keygate/internal/api/response"
	"github.com/keygate-io/keygate/internal/auth"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/internal/tenant"
	"github.com/keygate-io/keygate/pkg/models"
)

// issueKeyRequest is the body for POST /api/v1/admin/keys. Endpoints is
// read for endpoint kind, permissions for query kind.
type issueKeyRequest struct {
	OwnerID     string                   `json:"owner_id"`
	Name        string                   `json:"name"`
	Kind        string                   `json:"kind"`
	Endpoints   []string                 `json:"endpoints,omitempty"`
	Permissions []models.FieldPermission `json:"permissions,omitempty"`
}

type issuedKeyResponse struct {
	Token string            `json:"token"`
	Key   *models.KeyRecord `json:"key"`
}

// NewIssueKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
func NewIssueKeyHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req issueKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		owner, err := uuid.Parse(req.OwnerID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "owner_id must be a UUID", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		var (
			key *models.KeyRecord
			tok string
		)
		switch models.KeyKind(req.Kind) {
		case models.KindEndpoint:
			key, tok, err = svc.IssueEndpointKey(r.Context(), owner, req.Name, req.Endpoints)
		case models.KindQuery:
			key, tok, err = svc.IssueQueryKey(r.Context(), owner, req.Name, req.Permissions)
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"kind must be endpoint or query", nil)
			return
		}

		switch {
		case err == nil:
			response.Created(w, issuedKeyResponse{Token: tok, Key: key})
		case errors.Is(err, auth.ErrInvalidScope):
			response.Error(w, http.StatusBadRequest, "INVALID_SCOPE", err.Error(), nil)
		case errors.Is(err, tenant.ErrTenantNotFound):
			response.Error(w, http.StatusNotFound, "TENANT_NOT_FOUND",
				"Owner has no tenant assignment", nil)
		default:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to issue key", nil)
		}
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys.
// The token to revoke travels in the body, never in the URL.
func NewRevokeKeyHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "token is required", nil)
			return
		}

		err := svc.Revoke(r.Context(), req.Token)
		switch {
		case err == nil:
			response.JSON(w, map[string]any{"revoked": true})
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "No such key", nil)
		default:
			// malformed tokens land here too; the caller is authenticated,
			// so a precise message is fine
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Token could not be revoked", nil)
		}
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := uuid.Parse(r.URL.Query().Get("owner_id"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "owner_id must be a UUID", nil)
			return
		}

		keys, err := svc.ListKeys(r.Context(), owner)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys", nil)
			return
		}
		if keys == nil {
			keys = []*models.KeyRecord{}
		}
		response.JSON(w, keys)
	}
}
