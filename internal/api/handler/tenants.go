package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/keygate-io/keygate/internal/api/response"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/internal/tenant"
)

// NewCreateTenantHandler returns an http.HandlerFunc for POST /api/v1/admin/tenants.
func NewCreateTenantHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		t, err := s.CreateTenant(r.Context(), req.Name)
		switch {
		case err == nil:
			response.Created(w, t)
		case errors.Is(err, store.ErrDuplicateKey):
			response.Error(w, http.StatusConflict, "TENANT_EXISTS", "Tenant name already in use", nil)
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		}
	}
}

// NewAssignTenantHandler returns an http.HandlerFunc for
// PUT /api/v1/admin/users/{userID}/tenant.
func NewAssignTenantHandler(router *tenant.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userID must be a UUID", nil)
			return
		}

		var req struct {
			TenantID string `json:"tenant_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		tenantID, err := uuid.Parse(req.TenantID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "tenant_id must be a UUID", nil)
			return
		}

		if err := router.SetTenant(r.Context(), userID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "TENANT_NOT_FOUND", "No such tenant", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to assign tenant", nil)
			return
		}
		response.JSON(w, map[string]any{"user_id": userID, "tenant_id": tenantID})
	}
}
