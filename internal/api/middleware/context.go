package middleware

import (
	"context"
	"net/http"

	"github.com/keygate-io/keygate/internal/tenant"
	"github.com/keygate-io/keygate/pkg/models"
)

type contextKey string

const (
	tenantHandleKey contextKey = "tenant_handle"
	keyRecordKey    contextKey = "key_record"
	tokenDigestKey  contextKey = "token_digest"
)

func setTenantHandle(ctx context.Context, h *tenant.Handle) context.Context {
	return context.WithValue(ctx, tenantHandleKey, h)
}

// GetTenantHandle returns the authorized tenant store handle for the request.
func GetTenantHandle(r *http.Request) (*tenant.Handle, bool) {
	h, ok := r.Context().Value(tenantHandleKey).(*tenant.Handle)
	return h, ok
}

func setKeyRecord(ctx context.Context, k *models.KeyRecord) context.Context {
	return context.WithValue(ctx, keyRecordKey, k)
}

// GetKeyRecord returns the key record that authorized the request.
func GetKeyRecord(r *http.Request) (*models.KeyRecord, bool) {
	k, ok := r.Context().Value(keyRecordKey).(*models.KeyRecord)
	return k, ok
}

func setTokenDigest(ctx context.Context, digest string) context.Context {
	return context.WithValue(ctx, tokenDigestKey, digest)
}

func getTokenDigest(r *http.Request) (string, bool) {
	d, ok := r.Context().Value(tokenDigestKey).(string)
	return d, ok
}
