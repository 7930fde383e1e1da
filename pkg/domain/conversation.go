package domain

import "time"

// ConversationStatus is the hand-off lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive       ConversationStatus = "active"
	ConversationWaitingHuman ConversationStatus = "waiting_human"
	ConversationResolved     ConversationStatus = "resolved"
	// ConversationClosed is a terminal administrative state; nothing
	// transitions into or out of it through the state machine.
	ConversationClosed ConversationStatus = "closed"
)

// Conversation tracks one customer thread and its hand-off lifecycle.
// The runtime writes active→waiting_human, the operator console writes
// waiting_human→resolved; both go through guarded transitions.
type Conversation struct {
	ID        string             `json:"id"`
	OrgID     string             `json:"org_id"`
	ContactID string             `json:"contact_id"`
	Status    ConversationStatus `json:"status"`

	HandoffReason      string     `json:"handoff_reason,omitempty"`
	HandoffRequestedAt *time.Time `json:"handoff_requested_at,omitempty"`
	AssignedAgentID    string     `json:"assigned_agent_id,omitempty"`

	// Metadata carries free-form facts, including the resolution note
	// under "resolution_note" once resolved.
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy for store isolation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.HandoffRequestedAt != nil {
		t := *c.HandoffRequestedAt
		cp.HandoffRequestedAt = &t
	}
	cp.Metadata = make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}
