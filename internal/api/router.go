package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/keygate-io/keygate/internal/api/middleware"
	"github.com/keygate-io/keygate/internal/api/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler       http.HandlerFunc
	IssueKeyHandler     http.HandlerFunc
	ListKeysHandler     http.HandlerFunc
	RevokeKeyHandler    http.HandlerFunc
	CreateTenantHandler http.HandlerFunc
	AssignTenantHandler http.HandlerFunc
	RecordsHandler      http.HandlerFunc
	QueryHandler        http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Handle("/metrics", promhttp.Handler())

	// The query route evaluates its own body-dependent authorization
	r.Post("/api/v1/query", orNotImplemented(deps.QueryHandler))

	// Token-protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/records", orNotImplemented(deps.RecordsHandler))

		// Admin routes; bootstrap keys for these paths come from the
		// keyadmin CLI
		r.Post("/api/v1/admin/keys", orNotImplemented(deps.IssueKeyHandler))
		r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
		r.Delete("/api/v1/admin/keys", orNotImplemented(deps.RevokeKeyHandler))

		r.Post("/api/v1/admin/tenants", orNotImplemented(deps.CreateTenantHandler))
		r.Put("/api/v1/admin/users/{userID}/tenant", orNotImplemented(deps.AssignTenantHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
