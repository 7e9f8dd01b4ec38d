package models

import "time"

// AccessRecord maps a token digest to existence alone: its presence means
// the token has not been revoked. Rows live in the owning tenant's schema
// and are created and deleted in the same transaction as the key record.
type AccessRecord struct {
	TokenDigest string    `db:"token_digest" json:"token_digest"`
	KeyID       int64     `db:"key_id"       json:"key_id"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
