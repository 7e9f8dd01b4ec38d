package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyKind discriminates the two key variants. The kind travels inside the
// encrypted token payload, so renaming a kind invalidates outstanding tokens.
type KeyKind string

const (
	KindEndpoint KeyKind = "endpoint"
	KindQuery    KeyKind = "query"
)

// Valid reports whether k is a known key kind.
func (k KeyKind) Valid() bool {
	return k == KindEndpoint || k == KindQuery
}

// FieldPermission allows a named operation and the fields that may be
// requested under it. Operation and field comparisons are case-insensitive.
type FieldPermission struct {
	Operation     string   `json:"operation"`
	AllowedFields []string `json:"allowed_fields"`
}

// Allows reports whether the permission covers the given field name.
func (p FieldPermission) Allows(field string) bool {
	for _, f := range p.AllowedFields {
		if strings.EqualFold(f, field) {
			return true
		}
	}
	return false
}

// KeyRecord is a durable authorization grant. It is a tagged variant:
// Kind selects which scope column is meaningful — Endpoints for endpoint
// keys, Permissions for query keys. A validly issued record never has an
// empty scope.
type KeyRecord struct {
	ID            int64             `db:"id"              json:"id"`
	OwnerID       uuid.UUID         `db:"owner_id"        json:"owner_id"`
	Name          string            `db:"name"            json:"name"`
	Kind          KeyKind           `db:"kind"            json:"kind"`
	Endpoints     []string          `db:"endpoints"       json:"endpoints,omitempty"`
	Permissions   []FieldPermission `db:"field_permissions" json:"field_permissions,omitempty"`
	CreatedAt     time.Time         `db:"created_at"      json:"created_at"`
	ExpiresInDays int               `db:"expires_in_days" json:"expires_in_days"`
}

// ExpiresAt returns the instant after which the key no longer authorizes.
func (k *KeyRecord) ExpiresAt() time.Time {
	return k.CreatedAt.AddDate(0, 0, k.ExpiresInDays)
}

// Expired reports whether the key is past its expiry at the given instant.
// The boundary instant itself is still valid.
func (k *KeyRecord) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt())
}

// PermissionFor returns the field permission matching the operation name,
// compared case-insensitively.
func (k *KeyRecord) PermissionFor(operation string) (FieldPermission, bool) {
	for _, p := range k.Permissions {
		if strings.EqualFold(p.Operation, operation) {
			return p, true
		}
	}
	return FieldPermission{}, false
}
