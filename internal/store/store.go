package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/keygate-io/keygate/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
//
// Key records live in the shared main registry; each tenant's access records
// live in that tenant's own schema. IssueKey and RevokeKey write both sides
// in one transaction so no observable state ever holds one without the other.
type Store interface {
	Ping(ctx context.Context) error

	// Directory: tenants and user assignments.
	CreateTenant(ctx context.Context, name string) (*models.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantByName(ctx context.Context, name string) (*models.Tenant, error)
	GetAssignedTenant(ctx context.Context, userID uuid.UUID) (*models.Tenant, error)
	AssignTenant(ctx context.Context, userID, tenantID uuid.UUID) error

	// Main registry: key records.
	GetKeyRecord(ctx context.Context, id int64, kind models.KeyKind) (*models.KeyRecord, error)
	ListKeysByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.KeyRecord, error)

	// IssueKey inserts the key record, hands the assigned id to digestFor,
	// and inserts the resulting access record into the tenant's schema before
	// committing. A digestFor failure rolls the key row back.
	IssueKey(ctx context.Context, key *models.KeyRecord, tenant *models.Tenant,
		digestFor func(id int64) (string, error)) (*models.KeyRecord, error)

	// RevokeKey deletes the key record and its access record as one unit.
	RevokeKey(ctx context.Context, id int64, tenant *models.Tenant, digest string) error

	// Tenant store: existence-only revocation lookup.
	AccessRecordExists(ctx context.Context, tenant *models.Tenant, digest string) (bool, error)
}
