package handler

import (
	"net/http"

	mw "github.com/keygate-io/keygate/internal/api/middleware"
	"github.com/keygate-io/keygate/internal/api/response"
)

// NewRecordsHandler returns an http.HandlerFunc for GET /api/v1/records, a
// data route served from the tenant store the authorization resolved.
func NewRecordsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := mw.GetTenantHandle(r)
		if !ok {
			response.Denied(w)
			return
		}
		key, _ := mw.GetKeyRecord(r)

		body := map[string]any{
			"tenant": handle.Tenant.Name,
			"schema": handle.Schema(),
		}
		if key != nil {
			body["key_name"] = key.Name
		}
		response.JSON(w, body)
	}
}
