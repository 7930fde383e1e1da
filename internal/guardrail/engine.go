// Package guardrail decides whether an AI-proposed reply may reach a
// customer. The engine never fails open: any internal failure maps to a
// blocking system_error decision with a hand-off.
package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raytchel123/raytchel/pkg/domain"
	"github.com/raytchel123/raytchel/pkg/ports"
)

// Fallback messages sent instead of a blocked reply.
const (
	fallbackConfirmIntent = "Só para confirmar: você gostaria de saber mais sobre %s? Assim te respondo certinho!"
	fallbackPriceHandoff  = "Esse valor eu prefiro confirmar com a nossa equipe para não te passar nada errado. Já estou chamando um especialista!"
	fallbackSensitive     = "Por segurança, não posso tratar desse tipo de informação por aqui. Vou te conectar com um atendente."
	fallbackSystemError   = "Estou te conectando com um especialista para continuar o atendimento."
)

// Config holds the per-category confidence thresholds.
type Config struct {
	// Thresholds maps an intent category to its minimum confidence.
	Thresholds map[string]float64
	// DefaultThreshold applies to categories without an entry.
	DefaultThreshold float64
}

// DefaultConfig mirrors the production tuning: pricing answers need the
// most certainty.
func DefaultConfig() Config {
	return Config{
		Thresholds: map[string]float64{
			"pricing":    0.8,
			"scheduling": 0.75,
		},
		DefaultThreshold: 0.7,
	}
}

// Input is the context for one proposed reply.
type Input struct {
	Intent     string
	Category   string
	Confidence float64
	Reply      string
	// ProductID is the product the reply is about, when known.
	ProductID string
}

// Engine runs the guardrail check sequence.
type Engine struct {
	prices ports.PriceLookup
	audit  ports.AuditLog
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine wires an engine. logger may be nil.
func NewEngine(prices ports.PriceLookup, audit ports.AuditLog, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultThreshold == 0 && len(cfg.Thresholds) == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{prices: prices, audit: audit, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Validate runs the full check sequence against a proposed reply.
//
// Checks run in a fixed order: confidence, price, sensitive content.
// Confidence and price both always run; when both trigger, the price
// fallback overwrites the confidence one (last write wins — price
// safety dominates). The sensitive check short-circuits. The outcome
// plus every individual decision is persisted via the audit log.
func (e *Engine) Validate(ctx context.Context, tenantID string, in Input) (out domain.GuardrailOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("guardrail panic", "panic", fmt.Sprint(r), "tenant_id", tenantID)
			out = e.systemErrorOutcome(fmt.Sprintf("panic: %v", r))
		}
		e.logDecisions(ctx, tenantID, in, out)
	}()

	out = domain.GuardrailOutcome{IsValid: true}

	// 1. Confidence.
	if d := e.CheckConfidence(tenantID, in.Intent, in.Confidence, in.Category); d.Triggered {
		out.IsValid = false
		out.Guardrails = append(out.Guardrails, d)
		out.SafeResponse = d.FallbackMessage
		out.RequiresHandoff = d.HandoffTrigger
	}

	// 2. Price, only when the reply talks money.
	if mentionsPrice(in.Reply) {
		d, err := e.CheckPrice(ctx, tenantID, in.ProductID, in.Intent)
		if err != nil {
			// A broken lookup must not let the reply through.
			return e.systemErrorOutcome(err.Error())
		}
		if d.Triggered {
			out.IsValid = false
			out.Guardrails = append(out.Guardrails, d)
			out.SafeResponse = d.FallbackMessage
			out.RequiresHandoff = d.HandoffTrigger
		}
	}

	// 3. Sensitive content. Short-circuits: its fallback is final.
	if d := e.checkSensitive(in.Reply); d.Triggered {
		out.IsValid = false
		out.Guardrails = append(out.Guardrails, d)
		out.SafeResponse = d.FallbackMessage
		out.RequiresHandoff = true
		return out
	}

	return out
}

// CheckConfidence triggers when confidence is below the category
// threshold, proposing an intent-confirmation fallback.
func (e *Engine) CheckConfidence(tenantID, intent string, confidence float64, category string) domain.GuardrailDecision {
	threshold := e.threshold(category)
	if confidence >= threshold {
		return domain.GuardrailDecision{Triggered: false, CreatedAt: e.now().UTC()}
	}
	return domain.GuardrailDecision{
		Triggered: true,
		Reason:    domain.ReasonLowConfidence,
		Evidence: map[string]any{
			"intent":     intent,
			"category":   category,
			"confidence": confidence,
			"threshold":  threshold,
		},
		FallbackMessage: fmt.Sprintf(fallbackConfirmIntent, humanizeIntent(intent)),
		HandoffTrigger:  false,
		CreatedAt:       e.now().UTC(),
	}
}

// CheckPrice triggers when the referenced product has no stored price.
// An unknown product id counts as unpriced: quoting a price for a
// product we cannot verify is the risk this check exists for.
func (e *Engine) CheckPrice(ctx context.Context, tenantID, productID, intent string) (domain.GuardrailDecision, error) {
	product, err := e.prices.ProductPrice(ctx, tenantID, productID)
	if err != nil {
		return domain.GuardrailDecision{}, &domain.ExternalServiceError{Service: "price_lookup", Err: err}
	}
	if product != nil && product.Price != nil {
		return domain.GuardrailDecision{Triggered: false, CreatedAt: e.now().UTC()}, nil
	}

	evidence := map[string]any{"intent": intent, "product_id": productID}
	if product == nil {
		evidence["product_found"] = false
	} else {
		evidence["product_found"] = true
		evidence["product_name"] = product.Name
	}
	return domain.GuardrailDecision{
		Triggered:       true,
		Reason:          domain.ReasonPriceMissing,
		Evidence:        evidence,
		FallbackMessage: fallbackPriceHandoff,
		HandoffTrigger:  true,
		CreatedAt:       e.now().UTC(),
	}, nil
}

func (e *Engine) checkSensitive(reply string) domain.GuardrailDecision {
	pattern := findSensitive(reply)
	if pattern == "" {
		return domain.GuardrailDecision{Triggered: false, CreatedAt: e.now().UTC()}
	}
	return domain.GuardrailDecision{
		Triggered:       true,
		Reason:          domain.ReasonSensitiveInfo,
		Evidence:        map[string]any{"pattern": pattern},
		FallbackMessage: fallbackSensitive,
		HandoffTrigger:  true,
		CreatedAt:       e.now().UTC(),
	}
}

func (e *Engine) systemErrorOutcome(detail string) domain.GuardrailOutcome {
	return domain.GuardrailOutcome{
		IsValid: false,
		Guardrails: []domain.GuardrailDecision{{
			Triggered:       true,
			Reason:          domain.ReasonSystemError,
			Evidence:        map[string]any{"detail": detail},
			FallbackMessage: fallbackSystemError,
			HandoffTrigger:  true,
			CreatedAt:       e.now().UTC(),
		}},
		SafeResponse:    fallbackSystemError,
		RequiresHandoff: true,
	}
}

// logDecisions persists the full decision list regardless of outcome.
func (e *Engine) logDecisions(ctx context.Context, tenantID string, in Input, out domain.GuardrailOutcome) {
	if e.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		ID:         uuid.NewString(),
		Actor:      "guardrail",
		Action:     "guardrail.decision",
		EntityType: "tenant",
		EntityID:   tenantID,
		Detail: map[string]any{
			"intent":           in.Intent,
			"confidence":       in.Confidence,
			"is_valid":         out.IsValid,
			"requires_handoff": out.RequiresHandoff,
			"decisions":        out.Guardrails,
		},
		CreatedAt: e.now().UTC(),
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		e.logger.Error("guardrail decision log failed", "error", err, "tenant_id", tenantID)
	}
}

func (e *Engine) threshold(category string) float64 {
	if t, ok := e.cfg.Thresholds[category]; ok {
		return t
	}
	if e.cfg.DefaultThreshold > 0 {
		return e.cfg.DefaultThreshold
	}
	return 0.7
}

func humanizeIntent(intent string) string {
	out := make([]rune, 0, len(intent))
	for _, r := range intent {
		if r == '_' || r == '-' {
			out = append(out, ' ')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
