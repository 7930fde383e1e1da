package ports

import (
	"context"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// FlowStore persists flows and their per-version published graph content.
//
// CompareAndSwap is the single mutation primitive: it replaces the stored
// flow only if the stored version still equals expectedVersion, returning
// domain.ErrVersionConflict otherwise. The flow version controller builds
// draft updates, publishes and rollbacks on top of it.
type FlowStore interface {
	// Get retrieves a flow by id. Returns domain.ErrFlowNotFound.
	Get(ctx context.Context, id string) (*domain.Flow, error)

	// Create inserts a new flow. Fails if the id already exists.
	Create(ctx context.Context, flow *domain.Flow) error

	// CompareAndSwap replaces the stored flow iff its current version
	// equals expectedVersion. Returns domain.ErrVersionConflict on a race
	// and domain.ErrFlowNotFound if the flow does not exist.
	CompareAndSwap(ctx context.Context, flow *domain.Flow, expectedVersion int) error

	// PutRevision archives the graph content published at a version.
	PutRevision(ctx context.Context, flowID string, version int, g domain.Graph) error

	// GetRevision retrieves archived content. Returns domain.ErrRevisionNotFound.
	GetRevision(ctx context.Context, flowID string, version int) (domain.Graph, error)

	// Revisions lists archived version numbers in ascending order.
	Revisions(ctx context.Context, flowID string) ([]int, error)

	// List returns all flows for an org.
	List(ctx context.Context, orgID string) ([]*domain.Flow, error)
}

// SnapshotStore persists per-tenant snapshot history.
//
// Append is atomic with respect to concurrent appends for the same tenant:
// it stores the snapshot, flips the active pointer to it and clears the
// previous one, but only if the tenant's latest version still equals
// expectedLatest (0 for a first snapshot). History is append-only.
type SnapshotStore interface {
	// Active returns the tenant's active snapshot.
	// Returns domain.ErrSnapshotNotFound when the tenant has none.
	Active(ctx context.Context, tenantID string) (*domain.Snapshot, error)

	// GetVersion returns a historical snapshot by version.
	GetVersion(ctx context.Context, tenantID string, version int64) (*domain.Snapshot, error)

	// Append stores snap (snap.Version must be expectedLatest+1) and makes
	// it active in a single atomic switch. Returns domain.ErrVersionConflict
	// when another writer got there first.
	Append(ctx context.Context, snap *domain.Snapshot, expectedLatest int64) error

	// List returns the tenant's snapshots in ascending version order.
	List(ctx context.Context, tenantID string) ([]*domain.Snapshot, error)
}

// ConversationStore persists conversations with guarded status transitions.
type ConversationStore interface {
	// Get retrieves a conversation. Returns domain.ErrConversationNotFound.
	Get(ctx context.Context, id string) (*domain.Conversation, error)

	// Create inserts a new conversation. Fails if the id already exists.
	Create(ctx context.Context, c *domain.Conversation) error

	// Transition applies mutate to the conversation only while its status
	// equals from (a conditional update, not load-then-store). Returns
	// *domain.InvalidStateError when the status does not match.
	Transition(ctx context.Context, id string, from domain.ConversationStatus,
		mutate func(*domain.Conversation)) (*domain.Conversation, error)
}

// AuditLog is the append-only mutation record. This core only ever writes
// to it; nothing here reads entries back for logic.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
}

// PriceLookup resolves a product's stored price for the guardrail engine.
// Returning a Product with a nil Price means "known product, no price".
type PriceLookup interface {
	// ProductPrice returns the product record from the tenant's active
	// snapshot, or nil when the product id is unknown.
	ProductPrice(ctx context.Context, tenantID, productID string) (*domain.Product, error)
}
