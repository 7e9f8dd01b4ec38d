package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("keygate_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newKeyRecord(owner uuid.UUID, name string) *models.KeyRecord {
	return &models.KeyRecord{
		OwnerID:       owner,
		Name:          name,
		Kind:          models.KindEndpoint,
		Endpoints:     []string{"/api/v1/records"},
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		ExpiresInDays: 90,
	}
}

// --- Tenant Tests ---

func TestCreateTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tenant.ID)
	assert.Equal(t, "acme", tenant.Name)
	assert.Equal(t, "tenant_acme", tenant.SchemaName)

	// The per-tenant access table must exist straight away
	exists, err := s.AccessRecordExists(ctx, tenant, "no-such-digest")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateTenant_Duplicate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)

	_, err = s.CreateTenant(ctx, "acme")
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestCreateTenant_InvalidName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	for _, name := range []string{"", "Acme", "9lives", "a b", "x; DROP SCHEMA public"} {
		_, err := s.CreateTenant(context.Background(), name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestGetTenantByName(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	created, err := s.CreateTenant(ctx, "globex")
	require.NoError(t, err)

	got, err := s.GetTenantByName(ctx, "globex")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = s.GetTenantByName(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetTenant(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Assignment Tests ---

func TestAssignTenant_LastWriteWins(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	acme, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	globex, err := s.CreateTenant(ctx, "globex")
	require.NoError(t, err)

	user := uuid.New()
	require.NoError(t, s.AssignTenant(ctx, user, acme.ID))

	got, err := s.GetAssignedTenant(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)

	// Reassignment replaces the previous mapping
	require.NoError(t, s.AssignTenant(ctx, user, globex.ID))

	got, err = s.GetAssignedTenant(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "globex", got.Name)
}

func TestGetAssignedTenant_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetAssignedTenant(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Key Issue/Revoke Tests ---

func TestIssueKey_PairCommitted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	owner := uuid.New()

	key, err := s.IssueKey(ctx, newKeyRecord(owner, "reader"), tenant,
		func(id int64) (string, error) { return "digest-for-reader", nil })
	require.NoError(t, err)
	require.NotZero(t, key.ID)

	got, err := s.GetKeyRecord(ctx, key.ID, models.KindEndpoint)
	require.NoError(t, err)
	assert.Equal(t, "reader", got.Name)
	assert.Equal(t, []string{"/api/v1/records"}, got.Endpoints)
	assert.Equal(t, 90, got.ExpiresInDays)

	exists, err := s.AccessRecordExists(ctx, tenant, "digest-for-reader")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIssueKey_DigestErrorRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)

	var insertedID int64
	_, err = s.IssueKey(ctx, newKeyRecord(uuid.New(), "doomed"), tenant,
		func(id int64) (string, error) {
			insertedID = id
			return "", errors.New("sealing failed")
		})
	require.Error(t, err)
	require.NotZero(t, insertedID, "digest callback runs after the insert returned an id")

	// The rollback must take the key record with it
	_, err = s.GetKeyRecord(ctx, insertedID, models.KindEndpoint)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetKeyRecord_KindMismatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)

	key, err := s.IssueKey(ctx, newKeyRecord(uuid.New(), "reader"), tenant,
		func(id int64) (string, error) { return "d1", nil })
	require.NoError(t, err)

	_, err = s.GetKeyRecord(ctx, key.ID, models.KindQuery)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevokeKey_PairDeleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)

	key, err := s.IssueKey(ctx, newKeyRecord(uuid.New(), "short-lived"), tenant,
		func(id int64) (string, error) { return "d-revoke", nil })
	require.NoError(t, err)

	require.NoError(t, s.RevokeKey(ctx, key.ID, tenant, "d-revoke"))

	_, err = s.GetKeyRecord(ctx, key.ID, models.KindEndpoint)
	assert.ErrorIs(t, err, store.ErrNotFound)

	exists, err := s.AccessRecordExists(ctx, tenant, "d-revoke")
	require.NoError(t, err)
	assert.False(t, exists)

	// Second revoke finds nothing
	err = s.RevokeKey(ctx, key.ID, tenant, "d-revoke")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListKeysByOwner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	owner := uuid.New()

	for i, name := range []string{"first", "second", "third"} {
		k := newKeyRecord(owner, name)
		k.CreatedAt = k.CreatedAt.Add(time.Duration(i) * time.Second)
		_, err := s.IssueKey(ctx, k, tenant,
			func(id int64) (string, error) { return "d-" + name, nil })
		require.NoError(t, err)
	}
	_, err = s.IssueKey(ctx, newKeyRecord(uuid.New(), "other-owner"), tenant,
		func(id int64) (string, error) { return "d-other", nil })
	require.NoError(t, err)

	keys, err := s.ListKeysByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, "third", keys[0].Name, "newest first")
}

func TestSchemaIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	acme, err := s.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	globex, err := s.CreateTenant(ctx, "globex")
	require.NoError(t, err)

	_, err = s.IssueKey(ctx, newKeyRecord(uuid.New(), "acme-key"), acme,
		func(id int64) (string, error) { return "d-acme", nil })
	require.NoError(t, err)

	// The digest lives only in the issuing tenant's schema
	exists, err := s.AccessRecordExists(ctx, acme, "d-acme")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.AccessRecordExists(ctx, globex, "d-acme")
	require.NoError(t, err)
	assert.False(t, exists)
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
