package snapshot_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raytchel123/raytchel/internal/adapters/memory"
	"github.com/raytchel123/raytchel/internal/logging"
	"github.com/raytchel123/raytchel/internal/snapshot"
	"github.com/raytchel123/raytchel/pkg/domain"
)

func newService(t *testing.T, opts ...snapshot.Option) (*snapshot.Service, *memory.AuditLog) {
	t.Helper()
	audit := memory.NewAuditLog()
	return snapshot.NewService(memory.NewSnapshotStore(), audit, logging.NewNop(), opts...), audit
}

func dataV1() domain.SnapshotData {
	return domain.SnapshotData{
		Products: []domain.Item{
			{"id": "p1", "name": "Aliança Ouro", "price": float64(100)},
		},
		Templates: []domain.Item{
			{"id": "t1", "body": "Olá, {{nome}}!"},
		},
	}
}

func dataV2() domain.SnapshotData {
	return domain.SnapshotData{
		Products: []domain.Item{
			{"id": "p1", "name": "Aliança Ouro", "price": float64(120)},
			{"id": "p2", "name": "Aliança Prata", "price": float64(80)},
		},
		Templates: []domain.Item{
			{"id": "t1", "body": "Olá, {{nome}}!"},
		},
	}
}

func TestPublish_AssignsSequentialVersions(t *testing.T) {
	ctx := context.Background()
	svc, audit := newService(t)

	v1, err := svc.Publish(ctx, "acme", dataV1(), "op-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, v1.Version)
	assert.True(t, v1.IsActive)

	v2, err := svc.Publish(ctx, "acme", dataV2(), "op-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, v2.Version)

	active, err := svc.Active(ctx, "acme")
	require.NoError(t, err)
	assert.EqualValues(t, 2, active.Version)

	// The audit entry carries per-category counts.
	entries := audit.Entries()
	require.NotEmpty(t, entries)
	counts, ok := entries[0].Detail["item_counts"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 1, counts["products"])
	assert.Equal(t, 0, counts["triggers"])
}

func TestRollback_RepublishesAsNewVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Publish(ctx, "acme", dataV1(), "op-1")
	require.NoError(t, err)
	_, err = svc.Publish(ctx, "acme", dataV2(), "op-1")
	require.NoError(t, err)

	rolled, err := svc.Rollback(ctx, "acme", 1, "op-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, rolled.Version, "rollback appends, never rewrites history")

	active, err := svc.Active(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, active.Data.Products, 1)
	assert.InDelta(t, 100, active.Data.Products[0]["price"], 1e-9)

	// All three versions are retained.
	snaps, err := svc.List(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, snaps, 3)
}

func TestRollback_UnknownVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Publish(ctx, "acme", dataV1(), "op-1")
	require.NoError(t, err)

	_, err = svc.Rollback(ctx, "acme", 9, "op-1")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestProductPrice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Publish(ctx, "acme", domain.SnapshotData{
		Products: []domain.Item{
			{"id": "p1", "name": "Aliança Ouro", "price": float64(100), "currency": "BRL"},
			{"id": "p2", "name": "Sob consulta"},
		},
	}, "op-1")
	require.NoError(t, err)

	priced, err := svc.ProductPrice(ctx, "acme", "p1")
	require.NoError(t, err)
	require.NotNil(t, priced)
	require.NotNil(t, priced.Price)
	assert.InDelta(t, 100, *priced.Price, 1e-9)
	assert.Equal(t, "BRL", priced.Currency)

	unpriced, err := svc.ProductPrice(ctx, "acme", "p2")
	require.NoError(t, err)
	require.NotNil(t, unpriced)
	assert.Nil(t, unpriced.Price)

	unknown, err := svc.ProductPrice(ctx, "acme", "p9")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestProductPrice_NoSnapshot(t *testing.T) {
	svc, _ := newService(t)
	product, err := svc.ProductPrice(context.Background(), "ghost-tenant", "p1")
	require.NoError(t, err)
	assert.Nil(t, product)
}
