package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keygate-io/keygate/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5. Tenant schemas
// and the main registry share one cluster, which is what lets issue/revoke
// commit both rows in a single transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Directory ---

var tenantNameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,39}$`)

// SchemaForTenant derives the schema name for a tenant name.
func SchemaForTenant(name string) string {
	return "tenant_" + strings.ReplaceAll(name, "-", "_")
}

func (s *PostgresStore) CreateTenant(ctx context.Context, name string) (*models.Tenant, error) {
	if !tenantNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid tenant name %q: must match %s", name, tenantNameRe)
	}

	t := &models.Tenant{
		ID:         uuid.New(),
		Name:       name,
		SchemaName: SchemaForTenant(name),
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create tenant: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO tenants (id, name, schema_name, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.SchemaName, t.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	// schema identifiers cannot be bound as parameters
	schema := pgx.Identifier{t.SchemaName}.Sanitize()
	if _, err := tx.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		return nil, fmt.Errorf("create tenant schema: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE %s.access_records (
			token_digest TEXT PRIMARY KEY,
			key_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, schema)); err != nil {
		return nil, fmt.Errorf("create access_records table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.scanTenant(s.pool.QueryRow(ctx,
		`SELECT id, name, schema_name, created_at FROM tenants WHERE id = $1`, id))
}

func (s *PostgresStore) GetTenantByName(ctx context.Context, name string) (*models.Tenant, error) {
	return s.scanTenant(s.pool.QueryRow(ctx,
		`SELECT id, name, schema_name, created_at FROM tenants WHERE name = $1`, name))
}

func (s *PostgresStore) GetAssignedTenant(ctx context.Context, userID uuid.UUID) (*models.Tenant, error) {
	return s.scanTenant(s.pool.QueryRow(ctx,
		`SELECT t.id, t.name, t.schema_name, t.created_at
		 FROM tenants t JOIN tenant_assignments a ON a.tenant_id = t.id
		 WHERE a.user_id = $1`, userID))
}

func (s *PostgresStore) scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.SchemaName, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	return &t, nil
}

// AssignTenant binds a user to a tenant, replacing any prior assignment.
func (s *PostgresStore) AssignTenant(ctx context.Context, userID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_assignments (user_id, tenant_id, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET tenant_id = EXCLUDED.tenant_id, updated_at = NOW()`,
		userID, tenantID)
	if err != nil {
		return fmt.Errorf("assign tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Main registry ---

func (s *PostgresStore) GetKeyRecord(ctx context.Context, id int64, kind models.KeyKind) (*models.KeyRecord, error) {
	var k models.KeyRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, kind, endpoints, field_permissions, created_at, expires_in_days
		 FROM key_records WHERE id = $1 AND kind = $2`, id, kind,
	).Scan(&k.ID, &k.OwnerID, &k.Name, &k.Kind, &k.Endpoints, &k.Permissions,
		&k.CreatedAt, &k.ExpiresInDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get key record: %w", err)
	}
	return &k, nil
}

func (s *PostgresStore) ListKeysByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.KeyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, kind, endpoints, field_permissions, created_at, expires_in_days
		 FROM key_records WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list keys by owner: %w", err)
	}
	defer rows.Close()

	var keys []*models.KeyRecord
	for rows.Next() {
		var k models.KeyRecord
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.Kind, &k.Endpoints,
			&k.Permissions, &k.CreatedAt, &k.ExpiresInDays); err != nil {
			return nil, fmt.Errorf("scan key record: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) IssueKey(ctx context.Context, key *models.KeyRecord, tenant *models.Tenant,
	digestFor func(id int64) (string, error)) (*models.KeyRecord, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin issue key: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO key_records (owner_id, name, kind, endpoints, field_permissions, created_at, expires_in_days)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		key.OwnerID, key.Name, key.Kind, key.Endpoints, key.Permissions,
		key.CreatedAt, key.ExpiresInDays,
	).Scan(&key.ID)
	if err != nil {
		return nil, fmt.Errorf("insert key record: %w", err)
	}

	digest, err := digestFor(key.ID)
	if err != nil {
		return nil, fmt.Errorf("derive token digest: %w", err)
	}

	accessTable := pgx.Identifier{tenant.SchemaName, "access_records"}.Sanitize()
	_, err = tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (token_digest, key_id, created_at) VALUES ($1, $2, $3)`, accessTable),
		digest, key.ID, key.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert access record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit issue key: %w", err)
	}
	return key, nil
}

func (s *PostgresStore) RevokeKey(ctx context.Context, id int64, tenant *models.Tenant, digest string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin revoke key: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM key_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete key record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	accessTable := pgx.Identifier{tenant.SchemaName, "access_records"}.Sanitize()
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE token_digest = $1`, accessTable), digest); err != nil {
		return fmt.Errorf("delete access record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit revoke key: %w", err)
	}
	return nil
}

func (s *PostgresStore) AccessRecordExists(ctx context.Context, tenant *models.Tenant, digest string) (bool, error) {
	accessTable := pgx.Identifier{tenant.SchemaName, "access_records"}.Sanitize()
	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE token_digest = $1)`, accessTable), digest,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("access record lookup: %w", err)
	}
	return exists, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
