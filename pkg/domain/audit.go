package domain

import "time"

// AuditEntry is one append-only record of a mutation or guardrail decision.
// The audit log is write-only from this core's perspective; no business
// logic reads it back.
type AuditEntry struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
