package domain

// NodeType discriminates the control-flow behavior of a flow node.
type NodeType string

const (
	// NodeStart marks the entry point. Exactly one per flow.
	NodeStart NodeType = "start"
	// NodeMessage sends content and continues to GoTo.
	NodeMessage NodeType = "message"
	// NodeAsk sends content and halts waiting for a customer choice.
	NodeAsk NodeType = "ask"
	// NodeCondition branches on the detected intent.
	NodeCondition NodeType = "condition"
	// NodeAction executes a side-effect (e.g. create order) and continues.
	NodeAction NodeType = "action"
	// NodeEnd is a sink state.
	NodeEnd NodeType = "end"
)

// NodeOption is one selectable answer on an ask node.
type NodeOption struct {
	Label string `json:"label" yaml:"label"`
	GoTo  string `json:"go_to" yaml:"go_to"`
}

// ConditionBranch routes to a node when the given intent matches.
type ConditionBranch struct {
	Intent string `json:"intent" yaml:"intent"`
	GoTo   string `json:"go_to" yaml:"go_to"`
}

// FlowNode is a logical unit in a flow graph. Which optional fields are
// meaningful depends on Type; Targets() is the single place that knows
// the outgoing-reference shape of each variant.
type FlowNode struct {
	ID   string   `json:"id" yaml:"id"`
	Type NodeType `json:"type" yaml:"type"`

	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Options is used by ask nodes.
	Options []NodeOption `json:"options,omitempty" yaml:"options,omitempty"`

	// Conditions is used by condition nodes.
	Conditions []ConditionBranch `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// GoTo is the unconditional next node for start, message and action nodes.
	GoTo string `json:"go_to,omitempty" yaml:"go_to,omitempty"`

	Action     string `json:"action,omitempty" yaml:"action,omitempty"`
	TemplateID string `json:"template_id,omitempty" yaml:"template_id,omitempty"`

	// RequiresHandoff flags nodes that must park the conversation for a human.
	RequiresHandoff bool `json:"requires_handoff,omitempty" yaml:"requires_handoff,omitempty"`
}

// Targets returns every outgoing node reference, in declaration order.
// The switch is exhaustive over NodeType so adding a node type forces a
// decision here.
func (n FlowNode) Targets() []string {
	var out []string
	switch n.Type {
	case NodeStart, NodeMessage, NodeAction:
		if n.GoTo != "" {
			out = append(out, n.GoTo)
		}
	case NodeAsk:
		for _, opt := range n.Options {
			if opt.GoTo != "" {
				out = append(out, opt.GoTo)
			}
		}
	case NodeCondition:
		for _, c := range n.Conditions {
			if c.GoTo != "" {
				out = append(out, c.GoTo)
			}
		}
	case NodeEnd:
		// Sink state.
	}
	return out
}

// Graph is the node set plus the designated entry node of one flow.
type Graph struct {
	Nodes []FlowNode `json:"nodes" yaml:"nodes"`
	Start string     `json:"start" yaml:"start"`
}

// Node returns the node with the given id, or false.
func (g Graph) Node(id string) (FlowNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return FlowNode{}, false
}
