package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// SnapshotStore implements ports.SnapshotStore in memory.
// The per-tenant latest version acts as the compare-and-swap guard for
// the active-pointer switch.
type SnapshotStore struct {
	mu     sync.RWMutex
	byTen  map[string]map[int64]*domain.Snapshot
	latest map[string]int64
}

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byTen:  make(map[string]map[int64]*domain.Snapshot),
		latest: make(map[string]int64),
	}
}

// Active returns the tenant's active snapshot.
func (s *SnapshotStore) Active(ctx context.Context, tenantID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest, ok := s.latest[tenantID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return cloneSnapshot(s.byTen[tenantID][latest]), nil
}

// GetVersion returns a historical snapshot.
func (s *SnapshotStore) GetVersion(ctx context.Context, tenantID string, version int64) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.byTen[tenantID][version]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return cloneSnapshot(snap), nil
}

// Append stores snap and flips the active pointer in one critical section.
func (s *SnapshotStore) Append(ctx context.Context, snap *domain.Snapshot, expectedLatest int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest[snap.TenantID] != expectedLatest {
		return domain.ErrVersionConflict
	}
	if snap.Version != expectedLatest+1 {
		return fmt.Errorf("snapshot version %d does not follow latest %d: %w",
			snap.Version, expectedLatest, domain.ErrVersionConflict)
	}

	tenant, ok := s.byTen[snap.TenantID]
	if !ok {
		tenant = make(map[int64]*domain.Snapshot)
		s.byTen[snap.TenantID] = tenant
	}
	if prev, ok := tenant[expectedLatest]; ok {
		prev.IsActive = false
	}

	stored := cloneSnapshot(snap)
	stored.IsActive = true
	tenant[snap.Version] = stored
	s.latest[snap.TenantID] = snap.Version
	return nil
}

// List returns the tenant's snapshots in ascending version order.
func (s *SnapshotStore) List(ctx context.Context, tenantID string) ([]*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Snapshot
	for _, snap := range s.byTen[tenantID] {
		out = append(out, cloneSnapshot(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// cloneSnapshot deep-copies via JSON. Snapshot data is schemaless nested
// maps; a round-trip is the reliable way to isolate it.
func cloneSnapshot(snap *domain.Snapshot) *domain.Snapshot {
	if snap == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		cp := *snap
		return &cp
	}
	var cp domain.Snapshot
	if err := json.Unmarshal(raw, &cp); err != nil {
		dup := *snap
		return &dup
	}
	return &cp
}
