package domain

import "time"

// Snapshot categories. Diff results and item counts are keyed by these.
const (
	CategoryQnA       = "qna"
	CategoryTemplates = "templates"
	CategoryProducts  = "products"
	CategoryTriggers  = "triggers"
	CategoryFlows     = "flows"
)

// Categories lists every snapshot category in canonical order. Diff output
// and pagination iterate in this order so repeated calls are deterministic.
var Categories = []string{
	CategoryQnA,
	CategoryTemplates,
	CategoryProducts,
	CategoryTriggers,
	CategoryFlows,
}

// Item is one runtime-consumable record inside a snapshot category.
// Records are schemaless at this layer; they must carry an "id" field.
type Item map[string]any

// ID returns the item's "id" field, or "".
func (i Item) ID() string {
	id, _ := i["id"].(string)
	return id
}

// SnapshotData is the full bundle of runtime configuration for a tenant.
type SnapshotData struct {
	QnA       []Item `json:"qna" yaml:"qna"`
	Templates []Item `json:"templates" yaml:"templates"`
	Products  []Item `json:"products" yaml:"products"`
	Triggers  []Item `json:"triggers" yaml:"triggers"`
	Flows     []Item `json:"flows" yaml:"flows"`
}

// Category returns the item collection for a category name.
func (d SnapshotData) Category(name string) []Item {
	switch name {
	case CategoryQnA:
		return d.QnA
	case CategoryTemplates:
		return d.Templates
	case CategoryProducts:
		return d.Products
	case CategoryTriggers:
		return d.Triggers
	case CategoryFlows:
		return d.Flows
	}
	return nil
}

// Counts returns the item count per category, used for audit summaries.
func (d SnapshotData) Counts() map[string]int {
	counts := make(map[string]int, len(Categories))
	for _, c := range Categories {
		counts[c] = len(d.Category(c))
	}
	return counts
}

// Snapshot is an immutable, versioned configuration bundle for a tenant.
// Versions form a per-tenant sequence starting at 1; exactly one snapshot
// per tenant is active at any time. History is never edited in place.
type Snapshot struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenant_id"`
	Version   int64        `json:"version"`
	Data      SnapshotData `json:"snapshot_data"`
	IsActive  bool         `json:"is_active"`
	CreatedBy string       `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
}

// DiffOpType tags a sync operation.
type DiffOpType string

const (
	OpUpsert DiffOpType = "upsert"
	OpDelete DiffOpType = "delete"
)

// DiffOp is one operation a runtime cache must apply. For deletes, Item
// carries only the id.
type DiffOp struct {
	Op   DiffOpType `json:"op"`
	Item Item       `json:"item"`
}

// DiffResult is the incremental-sync payload returned to a runtime.
// When HasMore is set the caller must re-request with NextSince until
// HasMore is false.
type DiffResult struct {
	Version   int64               `json:"version"`
	Changed   map[string][]DiffOp `json:"changed"`
	HasMore   bool                `json:"has_more"`
	NextSince string              `json:"next_since_ts"`
}
