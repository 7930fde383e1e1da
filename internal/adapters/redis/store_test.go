package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/raytchel123/raytchel/internal/adapters/redis"
	"github.com/raytchel123/raytchel/pkg/domain"
	"github.com/raytchel123/raytchel/pkg/ports"
)

func newStore(t *testing.T) *redis.Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return redis.NewFromClient(client)
}

func TestRedisFlowStore_Contract(t *testing.T) {
	ports.RunFlowStoreContract(t, newStore(t).Flows())
}

func TestRedisSnapshotStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, newStore(t).Snapshots())
}

func TestRedisConversationStore_Contract(t *testing.T) {
	ports.RunConversationStoreContract(t, newStore(t).Conversations())
}

func TestRedisAuditLog_Append(t *testing.T) {
	store := newStore(t)
	err := store.Audit().Append(context.Background(), domain.AuditEntry{
		ID:     "a1",
		Actor:  "op-1",
		Action: "flow.publish",
	})
	require.NoError(t, err)
}
