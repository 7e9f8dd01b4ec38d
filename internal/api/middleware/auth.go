package middleware

import (
	"net/http"
	"strings"

	"github.com/keygate-io/keygate/internal/api/response"
	"github.com/keygate-io/keygate/internal/auth"
)

// Auth authenticates requests by evaluating the presented token.
type Auth struct {
	svc    *auth.Service
	digest func(token string) string
}

// NewAuth creates the token auth middleware. digest derives the rate-limit
// bucket key from the raw token.
func NewAuth(svc *auth.Service, digest func(string) string) *Auth {
	return &Auth{svc: svc, digest: digest}
}

// Authenticate evaluates the Bearer token against the requested path and,
// on success, sets the tenant handle and key record in the request context.
// Every denial produces the same generic body.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken := ExtractBearerToken(r)
		if rawToken == "" {
			response.Denied(w)
			return
		}

		decision := a.svc.Authorize(r.Context(), auth.Request{
			Token: rawToken,
			Path:  r.URL.Path,
		})
		if !decision.Allowed {
			response.Denied(w)
			return
		}

		ctx := setTenantHandle(r.Context(), decision.Tenant)
		ctx = setKeyRecord(ctx, decision.Key)
		ctx = setTokenDigest(ctx, a.digest(rawToken))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractBearerToken returns the Bearer token from the Authorization
// header, or "" when absent or malformed.
func ExtractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
