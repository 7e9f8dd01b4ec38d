package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/keygate-io/keygate/internal/metrics"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/internal/tenant"
	"github.com/keygate-io/keygate/internal/token"
	"github.com/keygate-io/keygate/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Service is the caller-facing facade over issuance, authorization, and
// revocation. The HTTP layer and the admin CLI both consume it.
type Service struct {
	issuer    *Issuer
	evaluator *Evaluator
	codec     *token.Codec
	registry  store.Store
	router    *tenant.Router
}

// NewService wires the facade.
func NewService(issuer *Issuer, evaluator *Evaluator, codec *token.Codec, registry store.Store, router *tenant.Router) *Service {
	return &Service{
		issuer:    issuer,
		evaluator: evaluator,
		codec:     codec,
		registry:  registry,
		router:    router,
	}
}

// IssueEndpointKey issues an endpoint-scoped key and returns the token.
func (s *Service) IssueEndpointKey(ctx context.Context, owner uuid.UUID, name string, endpoints []string) (*models.KeyRecord, string, error) {
	key, tok, err := s.issuer.IssueEndpointKey(ctx, owner, name, endpoints)
	if err != nil {
		return nil, "", err
	}
	metrics.KeysIssued.WithLabelValues(string(models.KindEndpoint)).Inc()
	return key, tok, nil
}

// IssueQueryKey issues a query-scoped key and returns the token.
func (s *Service) IssueQueryKey(ctx context.Context, owner uuid.UUID, name string, permissions []models.FieldPermission) (*models.KeyRecord, string, error) {
	key, tok, err := s.issuer.IssueQueryKey(ctx, owner, name, permissions)
	if err != nil {
		return nil, "", err
	}
	metrics.KeysIssued.WithLabelValues(string(models.KindQuery)).Inc()
	return key, tok, nil
}

// Authorize runs the evaluation pipeline and records the outcome.
func (s *Service) Authorize(ctx context.Context, req Request) Decision {
	timer := prometheus.NewTimer(metrics.EvaluationDuration)
	decision := s.evaluator.Authorize(ctx, req)
	timer.ObserveDuration()

	if decision.Allowed {
		metrics.AuthDecisions.WithLabelValues("authorized", "").Inc()
	} else {
		metrics.AuthDecisions.WithLabelValues("denied", string(decision.Reason)).Inc()
		slog.Debug("authorization denied", "reason", decision.Reason)
	}
	return decision
}

// Revoke deletes the key referenced by the token together with its access
// record. Returns store.ErrNotFound when the token references no live key,
// so callers can tell an already-dead token from one they just killed.
func (s *Service) Revoke(ctx context.Context, tok string) error {
	id, kind, err := s.codec.Decode(tok)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	record, err := s.registry.GetKeyRecord(ctx, id, kind)
	if err != nil {
		return fmt.Errorf("revoke key %d: %w", id, err)
	}

	handle, err := s.router.Resolve(ctx, record.OwnerID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return fmt.Errorf("revoke key %d: %w", id, store.ErrNotFound)
		}
		return fmt.Errorf("revoke key %d: %w", id, err)
	}

	if err := s.registry.RevokeKey(ctx, id, handle.Tenant, s.codec.Digest(tok)); err != nil {
		return fmt.Errorf("revoke key %d: %w", id, err)
	}
	metrics.KeysRevoked.Inc()
	return nil
}

// ListKeys returns the caller's issued keys.
func (s *Service) ListKeys(ctx context.Context, owner uuid.UUID) ([]*models.KeyRecord, error) {
	return s.registry.ListKeysByOwner(ctx, owner)
}
