// Package auth implements key issuance and the authorization pipeline.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/keygate-io/keygate/internal/queryscope"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/internal/tenant"
	"github.com/keygate-io/keygate/internal/token"
	"github.com/keygate-io/keygate/pkg/models"
)

// Request carries everything the pipeline needs to judge one call.
type Request struct {
	// Token is the opaque string presented by the client.
	Token string
	// Path is the requested endpoint path, checked against endpoint keys.
	Path string
	// SkipPathCheck bypasses the path membership check for non-HTTP
	// callers. It has no effect on query keys.
	SkipPathCheck bool
	// Query is the query document text, checked against query keys.
	Query string
}

// Decision is the outcome of one evaluation. When Allowed, Tenant is the
// store handle the caller should serve the request with.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Key     *models.KeyRecord
	Tenant  *tenant.Handle
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Evaluator runs the authorization pipeline. Each evaluation is a single
// stateless pass over durable data: nothing is cached between calls, which
// is what makes a revoke visible on the very next evaluation. The checks
// run in a fixed order and the first failure's reason is final, so a caller
// never learns more than one thing about a bad token.
type Evaluator struct {
	codec    *token.Codec
	registry store.Store
	router   *tenant.Router
	now      func() time.Time
}

// NewEvaluator creates an Evaluator over the main registry and tenant router.
func NewEvaluator(codec *token.Codec, registry store.Store, router *tenant.Router) *Evaluator {
	return &Evaluator{codec: codec, registry: registry, router: router, now: time.Now}
}

// WithClock overrides the time source. For tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Authorize evaluates the request token against the stores.
func (e *Evaluator) Authorize(ctx context.Context, req Request) Decision {
	// decode
	id, kind, err := e.codec.Decode(req.Token)
	if err != nil {
		return deny(DenyMalformedToken)
	}

	// the owner is only known once the record loads, so the record comes
	// from the main registry first and the owner's tenant store second
	record, err := e.registry.GetKeyRecord(ctx, id, kind)
	if errors.Is(err, store.ErrNotFound) {
		return deny(DenyKeyNotFound)
	}
	if err != nil {
		return deny(DenyStoreUnavailable)
	}

	handle, err := e.router.Resolve(ctx, record.OwnerID)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return deny(DenyUserNotFound)
	}
	if err != nil {
		return deny(DenyStoreUnavailable)
	}

	if record.Expired(e.now()) {
		return deny(DenyExpired)
	}

	if reason, ok := e.checkScope(record, req); !ok {
		return deny(reason)
	}

	// revocation: the access record's presence is the whole signal
	exists, err := handle.Store.AccessRecordExists(ctx, handle.Tenant, e.codec.Digest(req.Token))
	if err != nil {
		return deny(DenyStoreUnavailable)
	}
	if !exists {
		return deny(DenyRevoked)
	}

	return Decision{Allowed: true, Key: record, Tenant: handle}
}

func (e *Evaluator) checkScope(record *models.KeyRecord, req Request) (DenyReason, bool) {
	switch record.Kind {
	case models.KindEndpoint:
		if req.SkipPathCheck {
			return "", true
		}
		for _, p := range record.Endpoints {
			if p == req.Path {
				return "", true
			}
		}
		return DenyOutOfScope, false

	case models.KindQuery:
		requested := queryscope.Extract(req.Query)
		if len(requested) == 0 {
			return DenyNoQuery, false
		}
		for op, fields := range requested {
			perm, ok := record.PermissionFor(op)
			if !ok {
				return DenyOutOfScope, false
			}
			for _, f := range fields {
				if !perm.Allows(f) {
					return DenyOutOfScope, false
				}
			}
		}
		return "", true

	default:
		// unknown kind never authorizes
		return DenyOutOfScope, false
	}
}
