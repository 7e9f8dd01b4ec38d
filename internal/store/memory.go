package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keygate-io/keygate/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and local development.
// It mirrors the transactional semantics of PostgresStore: issue and revoke
// mutate the key registry and the tenant's access records under one lock,
// so observers never see one side without the other.
type MemoryStore struct {
	mu          sync.RWMutex
	tenants     map[uuid.UUID]*models.Tenant
	assignments map[uuid.UUID]uuid.UUID
	keys        map[int64]*models.KeyRecord
	access      map[string]map[string]int64 // schema -> digest -> key id
	nextID      int64

	// FailWith, when set, makes every call fail with that error. Used to
	// exercise store-unavailable paths.
	FailWith error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:     make(map[uuid.UUID]*models.Tenant),
		assignments: make(map[uuid.UUID]uuid.UUID),
		keys:        make(map[int64]*models.KeyRecord),
		access:      make(map[string]map[string]int64),
	}
}

func (s *MemoryStore) Ping(_ context.Context) error { return s.FailWith }

func (s *MemoryStore) CreateTenant(_ context.Context, name string) (*models.Tenant, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	if !tenantNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid tenant name %q: must match %s", name, tenantNameRe)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tenants {
		if t.Name == name {
			return nil, ErrDuplicateKey
		}
	}
	t := &models.Tenant{
		ID:         uuid.New(),
		Name:       name,
		SchemaName: SchemaForTenant(name),
		CreatedAt:  time.Now().UTC(),
	}
	s.tenants[t.ID] = t
	s.access[t.SchemaName] = make(map[string]int64)
	return t, nil
}

func (s *MemoryStore) GetTenant(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) GetTenantByName(_ context.Context, name string) (*models.Tenant, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tenants {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetAssignedTenant(_ context.Context, userID uuid.UUID) (*models.Tenant, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID, ok := s.assignments[userID]
	if !ok {
		return nil, ErrNotFound
	}
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) AssignTenant(_ context.Context, userID, tenantID uuid.UUID) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenantID]; !ok {
		return ErrNotFound
	}
	s.assignments[userID] = tenantID
	return nil
}

func (s *MemoryStore) GetKeyRecord(_ context.Context, id int64, kind models.KeyKind) (*models.KeyRecord, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[id]
	if !ok || k.Kind != kind {
		return nil, ErrNotFound
	}
	return k, nil
}

func (s *MemoryStore) ListKeysByOwner(_ context.Context, ownerID uuid.UUID) ([]*models.KeyRecord, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*models.KeyRecord
	for _, k := range s.keys {
		if k.OwnerID == ownerID {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *MemoryStore) IssueKey(_ context.Context, key *models.KeyRecord, tenant *models.Tenant,
	digestFor func(id int64) (string, error)) (*models.KeyRecord, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.access[tenant.SchemaName]
	if !ok {
		return nil, ErrNotFound
	}

	s.nextID++
	key.ID = s.nextID

	digest, err := digestFor(key.ID)
	if err != nil {
		key.ID = 0
		return nil, err
	}

	s.keys[key.ID] = key
	records[digest] = key.ID
	return key, nil
}

func (s *MemoryStore) RevokeKey(_ context.Context, id int64, tenant *models.Tenant, digest string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[id]; !ok {
		return ErrNotFound
	}
	delete(s.keys, id)
	if records, ok := s.access[tenant.SchemaName]; ok {
		delete(records, digest)
	}
	return nil
}

func (s *MemoryStore) AccessRecordExists(_ context.Context, tenant *models.Tenant, digest string) (bool, error) {
	if s.FailWith != nil {
		return false, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.access[tenant.SchemaName]
	if !ok {
		return false, nil
	}
	_, exists := records[digest]
	return exists, nil
}
