package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is an isolated data store assignment target. Each tenant owns a
// dedicated schema holding its access records and domain data.
type Tenant struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	Name       string    `db:"name"        json:"name"`
	SchemaName string    `db:"schema_name" json:"schema_name"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

// TenantAssignment binds a user to a tenant. A user owns exactly one
// assignment at a time; reassignment is last-write-wins.
type TenantAssignment struct {
	UserID    uuid.UUID `db:"user_id"    json:"user_id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
