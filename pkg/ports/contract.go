package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// RunFlowStoreContract verifies that a FlowStore implementation adheres to
// the interface contract. Adapter test suites call this against a fresh
// store instance.
func RunFlowStoreContract(t *testing.T, store FlowStore) {
	ctx := context.Background()

	graph := domain.Graph{
		Start: "start",
		Nodes: []domain.FlowNode{
			{ID: "start", Type: domain.NodeStart, GoTo: "end"},
			{ID: "end", Type: domain.NodeEnd},
		},
	}
	flow := &domain.Flow{
		ID:      "contract-flow",
		OrgID:   "org-1",
		Name:    "Contract",
		Status:  domain.FlowDraft,
		Version: 1,
		Graph:   graph,
	}

	t.Run("Create and Get", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, flow))

		got, err := store.Get(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, flow.ID, got.ID)
		assert.Equal(t, 1, got.Version)
		assert.Equal(t, domain.FlowDraft, got.Status)

		// Stored value must be isolated from caller mutations.
		got.Graph.Start = "mutated"
		again, err := store.Get(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, "start", again.Graph.Start)
	})

	t.Run("Create duplicate fails", func(t *testing.T) {
		assert.Error(t, store.Create(ctx, flow))
	})

	t.Run("Get non-existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		next := flow.Clone()
		next.Version = 2
		next.Status = domain.FlowPublished
		require.NoError(t, store.CompareAndSwap(ctx, next, 1))

		got, err := store.Get(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)

		// Stale expected version must lose.
		stale := flow.Clone()
		stale.Version = 2
		err = store.CompareAndSwap(ctx, stale, 1)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		err = store.CompareAndSwap(ctx, next, 99)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)
	})

	t.Run("CompareAndSwap non-existent", func(t *testing.T) {
		ghost := flow.Clone()
		ghost.ID = "ghost"
		err := store.CompareAndSwap(ctx, ghost, 1)
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("Revisions", func(t *testing.T) {
		_, err := store.GetRevision(ctx, flow.ID, 7)
		assert.ErrorIs(t, err, domain.ErrRevisionNotFound)

		require.NoError(t, store.PutRevision(ctx, flow.ID, 2, graph))
		require.NoError(t, store.PutRevision(ctx, flow.ID, 3, graph))

		got, err := store.GetRevision(ctx, flow.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, "start", got.Start)

		revs, err := store.Revisions(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, revs)
	})

	t.Run("List by org", func(t *testing.T) {
		other := flow.Clone()
		other.ID = "contract-flow-2"
		other.OrgID = "org-2"
		require.NoError(t, store.Create(ctx, other))

		flows, err := store.List(ctx, "org-1")
		require.NoError(t, err)
		require.Len(t, flows, 1)
		assert.Equal(t, "contract-flow", flows[0].ID)
	})
}

// RunSnapshotStoreContract verifies a SnapshotStore implementation.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	tenant := "tenant-contract"

	snap := func(version int64) *domain.Snapshot {
		return &domain.Snapshot{
			ID:       "snap-" + time.Now().Format("150405.000") + "-" + string(rune('0'+version)),
			TenantID: tenant,
			Version:  version,
			IsActive: true,
			Data: domain.SnapshotData{
				Products: []domain.Item{{"id": "p1", "price": float64(100)}},
			},
			CreatedAt: time.Now().UTC(),
		}
	}

	t.Run("Active on empty tenant", func(t *testing.T) {
		_, err := store.Active(ctx, tenant)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Append and Active", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, snap(1), 0))

		active, err := store.Active(ctx, tenant)
		require.NoError(t, err)
		assert.EqualValues(t, 1, active.Version)
		assert.True(t, active.IsActive)
	})

	t.Run("Append flips active pointer", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, snap(2), 1))

		active, err := store.Active(ctx, tenant)
		require.NoError(t, err)
		assert.EqualValues(t, 2, active.Version)

		// Exactly one active: the old version is retained but inactive.
		v1, err := store.GetVersion(ctx, tenant, 1)
		require.NoError(t, err)
		assert.False(t, v1.IsActive)
	})

	t.Run("Append stale latest conflicts", func(t *testing.T) {
		err := store.Append(ctx, snap(2), 1)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)
	})

	t.Run("GetVersion missing", func(t *testing.T) {
		_, err := store.GetVersion(ctx, tenant, 42)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("List ascending", func(t *testing.T) {
		snaps, err := store.List(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.EqualValues(t, 1, snaps[0].Version)
		assert.EqualValues(t, 2, snaps[1].Version)
	})
}

// RunConversationStoreContract verifies a ConversationStore implementation.
func RunConversationStoreContract(t *testing.T, store ConversationStore) {
	ctx := context.Background()

	conv := &domain.Conversation{
		ID:        "conv-contract",
		OrgID:     "org-1",
		ContactID: "5511999999999",
		Status:    domain.ConversationActive,
		Metadata:  map[string]any{},
	}

	t.Run("Create and Get", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, conv))

		got, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationActive, got.Status)
	})

	t.Run("Get non-existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Guarded transition succeeds from expected state", func(t *testing.T) {
		updated, err := store.Transition(ctx, conv.ID, domain.ConversationActive,
			func(c *domain.Conversation) {
				c.Status = domain.ConversationWaitingHuman
				c.HandoffReason = "price_missing"
			})
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationWaitingHuman, updated.Status)
		assert.Equal(t, "price_missing", updated.HandoffReason)
	})

	t.Run("Guarded transition fails from wrong state", func(t *testing.T) {
		_, err := store.Transition(ctx, conv.ID, domain.ConversationActive,
			func(c *domain.Conversation) {
				c.Status = domain.ConversationWaitingHuman
			})
		require.Error(t, err)
		assert.True(t, domain.IsInvalidState(err))

		// The conversation must be left untouched.
		got, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationWaitingHuman, got.Status)
		assert.Equal(t, "price_missing", got.HandoffReason)
	})

	t.Run("Transition on missing conversation", func(t *testing.T) {
		_, err := store.Transition(ctx, "missing", domain.ConversationActive, func(*domain.Conversation) {})
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})
}
