package domain

import "time"

// GuardrailReason classifies why a guardrail blocked a reply.
type GuardrailReason string

const (
	ReasonLowConfidence GuardrailReason = "low_confidence"
	ReasonPriceMissing  GuardrailReason = "price_missing"
	ReasonSensitiveInfo GuardrailReason = "sensitive_info"
	ReasonSystemError   GuardrailReason = "system_error"
)

// GuardrailDecision is an immutable audit fact produced by one check.
// Decisions are append-only; they are never mutated after creation.
type GuardrailDecision struct {
	Triggered       bool            `json:"triggered"`
	Reason          GuardrailReason `json:"reason,omitempty"`
	Evidence        map[string]any  `json:"evidence,omitempty"`
	FallbackMessage string          `json:"fallback_message,omitempty"`
	HandoffTrigger  bool            `json:"handoff_trigger"`
	CreatedAt       time.Time       `json:"created_at"`
}

// GuardrailOutcome aggregates the full check sequence for one proposed reply.
// IsValid is true only when no check triggered. SafeResponse holds the
// fallback chosen by the last check that triggered.
type GuardrailOutcome struct {
	IsValid         bool                `json:"is_valid"`
	Guardrails      []GuardrailDecision `json:"guardrails"`
	SafeResponse    string              `json:"safe_response,omitempty"`
	RequiresHandoff bool                `json:"requires_handoff"`
}

// Product is the typed view of a snapshot product item, as needed by the
// price guardrail. Price is a pointer: an unpriced product is exactly the
// condition the guardrail exists to catch.
type Product struct {
	ID       string   `json:"id" mapstructure:"id"`
	Name     string   `json:"name" mapstructure:"name"`
	Price    *float64 `json:"price,omitempty" mapstructure:"price"`
	Currency string   `json:"currency,omitempty" mapstructure:"currency"`
}
