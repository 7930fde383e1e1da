// Package memory implements the store ports in process memory.
// Safe for concurrent use; used by tests and as the default wiring when
// no Redis address is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// FlowStore implements ports.FlowStore in memory.
type FlowStore struct {
	mu        sync.RWMutex
	flows     map[string]*domain.Flow
	revisions map[string]map[int]domain.Graph
}

// NewFlowStore creates an empty in-memory flow store.
func NewFlowStore() *FlowStore {
	return &FlowStore{
		flows:     make(map[string]*domain.Flow),
		revisions: make(map[string]map[int]domain.Graph),
	}
}

// Get retrieves a flow copy by id.
func (s *FlowStore) Get(ctx context.Context, id string) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, ok := s.flows[id]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return flow.Clone(), nil
}

// Create inserts a new flow.
func (s *FlowStore) Create(ctx context.Context, flow *domain.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[flow.ID]; ok {
		return fmt.Errorf("flow %s already exists", flow.ID)
	}
	s.flows[flow.ID] = flow.Clone()
	return nil
}

// CompareAndSwap replaces the flow iff its stored version matches.
func (s *FlowStore) CompareAndSwap(ctx context.Context, flow *domain.Flow, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.flows[flow.ID]
	if !ok {
		return domain.ErrFlowNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	s.flows[flow.ID] = flow.Clone()
	return nil
}

// PutRevision archives graph content under a version number.
func (s *FlowStore) PutRevision(ctx context.Context, flowID string, version int, g domain.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	revs, ok := s.revisions[flowID]
	if !ok {
		revs = make(map[int]domain.Graph)
		s.revisions[flowID] = revs
	}
	revs[version] = g.Clone()
	return nil
}

// GetRevision retrieves archived graph content.
func (s *FlowStore) GetRevision(ctx context.Context, flowID string, version int) (domain.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.revisions[flowID][version]
	if !ok {
		return domain.Graph{}, domain.ErrRevisionNotFound
	}
	return g.Clone(), nil
}

// Revisions lists archived versions in ascending order.
func (s *FlowStore) Revisions(ctx context.Context, flowID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var versions []int
	for v := range s.revisions[flowID] {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// List returns all flows for an org, ordered by id.
func (s *FlowStore) List(ctx context.Context, orgID string) ([]*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Flow
	for _, f := range s.flows {
		if f.OrgID == orgID {
			out = append(out, f.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
