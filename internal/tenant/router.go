// Package tenant maps users to their assigned tenant store.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/keygate-io/keygate/internal/cache"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/pkg/models"
)

// ErrTenantNotFound is returned when a user has no tenant assignment.
var ErrTenantNotFound = errors.New("no tenant assigned to user")

const assignmentTTL = 5 * time.Minute

// Handle is an authorized reference to one tenant's store. Callers use it
// to serve the substantive request after authorization succeeds.
type Handle struct {
	Tenant *models.Tenant
	Store  store.Store
}

// Schema returns the tenant's schema name.
func (h *Handle) Schema() string { return h.Tenant.SchemaName }

// Router resolves user identities to tenant store handles. Assignments are
// read through a cache that is invalidated on reassignment; a resolution in
// flight during a reassignment may still see the previous tenant.
type Router struct {
	store store.Store
	cache cache.Cache
}

// NewRouter creates a Router over the directory store with a cache in front.
func NewRouter(s store.Store, c cache.Cache) *Router {
	return &Router{store: s, cache: c}
}

// Resolve returns the store handle for the user's assigned tenant.
func (r *Router) Resolve(ctx context.Context, userID uuid.UUID) (*Handle, error) {
	if t := r.cached(ctx, userID); t != nil {
		return &Handle{Tenant: t, Store: r.store}, nil
	}

	t, err := r.store.GetAssignedTenant(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve tenant for %s: %w", userID, err)
	}

	r.remember(ctx, userID, t)
	return &Handle{Tenant: t, Store: r.store}, nil
}

// SetTenant assigns or reassigns a user's tenant. Last writer wins.
func (r *Router) SetTenant(ctx context.Context, userID, tenantID uuid.UUID) error {
	if err := r.store.AssignTenant(ctx, userID, tenantID); err != nil {
		return fmt.Errorf("set tenant for %s: %w", userID, err)
	}
	if err := r.cache.Delete(ctx, cache.TenantAssignmentKey(userID)); err != nil {
		slog.Warn("tenant cache invalidation failed", "user_id", userID, "error", err)
	}
	return nil
}

func (r *Router) cached(ctx context.Context, userID uuid.UUID) *models.Tenant {
	raw, found, err := r.cache.Get(ctx, cache.TenantAssignmentKey(userID))
	if err != nil || !found {
		return nil
	}
	var t models.Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil
	}
	return &t
}

func (r *Router) remember(ctx context.Context, userID uuid.UUID, t *models.Tenant) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	// cache failures only cost a directory read next time
	if err := r.cache.Set(ctx, cache.TenantAssignmentKey(userID), raw, assignmentTTL); err != nil {
		slog.Warn("tenant cache write failed", "user_id", userID, "error", err)
	}
}
