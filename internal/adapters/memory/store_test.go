package memory_test

import (
	"testing"

	"github.com/raytchel123/raytchel/internal/adapters/memory"
	"github.com/raytchel123/raytchel/pkg/ports"
)

func TestMemoryFlowStore_Contract(t *testing.T) {
	ports.RunFlowStoreContract(t, memory.NewFlowStore())
}

func TestMemorySnapshotStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, memory.NewSnapshotStore())
}

func TestMemoryConversationStore_Contract(t *testing.T) {
	ports.RunConversationStoreContract(t, memory.NewConversationStore())
}
