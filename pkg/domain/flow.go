package domain

import "time"

// FlowStatus is the lifecycle state of a flow entity.
type FlowStatus string

const (
	FlowDraft     FlowStatus = "draft"
	FlowPublished FlowStatus = "published"
	FlowArchived  FlowStatus = "archived"
)

// Flow is a versioned dialogue graph owned by one org.
//
// Version only ever increases, including on rollback: rolling back restores
// prior content under a fresh version number. While Status is published,
// ValidationErrors must be empty.
type Flow struct {
	ID          string     `json:"id" yaml:"id"`
	OrgID       string     `json:"org_id" yaml:"org_id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status      FlowStatus `json:"status" yaml:"status"`
	Version     int        `json:"version" yaml:"version"`
	Graph       Graph      `json:"graph" yaml:"graph"`

	// ValidationErrors holds the hard errors from the last validation run.
	ValidationErrors []string `json:"validation_errors,omitempty" yaml:"validation_errors,omitempty"`

	CreatedBy   string     `json:"created_by" yaml:"created_by"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
}

// Clone returns a deep copy so stores can hand out values without sharing
// slices with callers.
func (f *Flow) Clone() *Flow {
	if f == nil {
		return nil
	}
	cp := *f
	cp.Graph = f.Graph.Clone()
	cp.ValidationErrors = append([]string(nil), f.ValidationErrors...)
	if f.PublishedAt != nil {
		t := *f.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

// Clone deep-copies the graph.
func (g Graph) Clone() Graph {
	cp := Graph{Start: g.Start, Nodes: make([]FlowNode, len(g.Nodes))}
	for i, n := range g.Nodes {
		nn := n
		nn.Options = append([]NodeOption(nil), n.Options...)
		nn.Conditions = append([]ConditionBranch(nil), n.Conditions...)
		cp.Nodes[i] = nn
	}
	return cp
}
