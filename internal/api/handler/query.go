package handler

import (
	"encoding/json"
	"net/http"

	mw "github.com/keygate-io/keygate/internal/api/middleware"
	"github.com/keygate-io/keygate/internal/api/response"
	"github.com/keygate-io/keygate/internal/auth"
	"github.com/keygate-io/keygate/internal/queryscope"
)

// NewQueryHandler returns an http.HandlerFunc for POST /api/v1/query.
//
// Query authorization depends on the document body, so this route runs its
// own evaluation instead of the path-based middleware: a query key is
// checked field by field against the document, while an endpoint key must
// carry this route's path in its scope. Execution itself happens elsewhere;
// on success the handler reports the authorized operations and the tenant
// that will serve them.
func NewQueryHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken := mw.ExtractBearerToken(r)
		if rawToken == "" {
			response.Denied(w)
			return
		}

		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		decision := svc.Authorize(r.Context(), auth.Request{
			Token: rawToken,
			Path:  r.URL.Path,
			Query: req.Query,
		})
		if !decision.Allowed {
			response.Denied(w)
			return
		}

		response.JSON(w, map[string]any{
			"tenant":     decision.Tenant.Tenant.Name,
			"operations": queryscope.Extract(req.Query),
		})
	}
}
