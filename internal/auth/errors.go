package auth

import "errors"

// ErrInvalidScope rejects issuance of a key with no scope at all. A key
// missing its scope would otherwise read as "any path" downstream, so
// creation is refused outright.
var ErrInvalidScope = errors.New("key scope must not be empty")

// DenyReason labels why an authorization was refused. Reasons are for
// logging and metrics only; the HTTP boundary collapses every denial into
// one generic response so callers cannot probe key state.
type DenyReason string

const (
	DenyMalformedToken   DenyReason = "malformed-token"
	DenyUserNotFound     DenyReason = "user-not-found"
	DenyKeyNotFound      DenyReason = "key-not-found"
	DenyExpired          DenyReason = "expired"
	DenyOutOfScope       DenyReason = "out-of-scope"
	DenyNoQuery          DenyReason = "no-query"
	DenyRevoked          DenyReason = "revoked"
	DenyStoreUnavailable DenyReason = "store-unavailable"
)

// Transient reports whether the denial is safe for the caller to retry.
// Only store outages qualify; every other reason is terminal for the token.
func (r DenyReason) Transient() bool {
	return r == DenyStoreUnavailable
}
