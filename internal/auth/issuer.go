package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/internal/tenant"
	"github.com/keygate-io/keygate/internal/token"
	"github.com/keygate-io/keygate/pkg/models"
)

// Issuer creates key records and their paired access records. The key row
// goes into the main registry and the access record into the owner's tenant
// store, committed as one unit by the store layer.
type Issuer struct {
	store   store.Store
	router  *tenant.Router
	codec   *token.Codec
	ttlDays int
	now     func() time.Time
}

// NewIssuer creates an Issuer. ttlDays is the policy expiry horizon applied
// to every key at creation.
func NewIssuer(s store.Store, router *tenant.Router, codec *token.Codec, ttlDays int) *Issuer {
	return &Issuer{store: s, router: router, codec: codec, ttlDays: ttlDays, now: time.Now}
}

// WithClock overrides the time source. For tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// IssueEndpointKey creates a key scoped to the given endpoint paths and
// returns the record alongside the opaque client token.
func (i *Issuer) IssueEndpointKey(ctx context.Context, owner uuid.UUID, name string, endpoints []string) (*models.KeyRecord, string, error) {
	if len(endpoints) == 0 {
		return nil, "", ErrInvalidScope
	}
	for _, p := range endpoints {
		if strings.TrimSpace(p) == "" {
			return nil, "", fmt.Errorf("%w: blank endpoint path", ErrInvalidScope)
		}
	}

	key := &models.KeyRecord{
		OwnerID:       owner,
		Name:          name,
		Kind:          models.KindEndpoint,
		Endpoints:     endpoints,
		CreatedAt:     i.now().UTC(),
		ExpiresInDays: i.ttlDays,
	}
	return i.persist(ctx, key)
}

// IssueQueryKey creates a key scoped to the given operation permissions and
// returns the record alongside the opaque client token.
func (i *Issuer) IssueQueryKey(ctx context.Context, owner uuid.UUID, name string, permissions []models.FieldPermission) (*models.KeyRecord, string, error) {
	if len(permissions) == 0 {
		return nil, "", ErrInvalidScope
	}
	for _, p := range permissions {
		if strings.TrimSpace(p.Operation) == "" {
			return nil, "", fmt.Errorf("%w: blank operation name", ErrInvalidScope)
		}
	}

	key := &models.KeyRecord{
		OwnerID:       owner,
		Name:          name,
		Kind:          models.KindQuery,
		Permissions:   permissions,
		CreatedAt:     i.now().UTC(),
		ExpiresInDays: i.ttlDays,
	}
	return i.persist(ctx, key)
}

func (i *Issuer) persist(ctx context.Context, key *models.KeyRecord) (*models.KeyRecord, string, error) {
	handle, err := i.router.Resolve(ctx, key.OwnerID)
	if err != nil {
		return nil, "", fmt.Errorf("issue key for %s: %w", key.OwnerID, err)
	}

	// the token embeds the record id, so it is minted inside the store
	// transaction once the id is assigned
	var issued token.Issued
	key, err = i.store.IssueKey(ctx, key, handle.Tenant, func(id int64) (string, error) {
		var err error
		issued, err = i.codec.Issue(id, key.Kind)
		return issued.Digest, err
	})
	if err != nil {
		return nil, "", fmt.Errorf("persist key: %w", err)
	}
	return key, issued.Token, nil
}
