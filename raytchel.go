// Package raytchel is the authoring and guardrail core behind the
// WhatsApp AI sales assistant: versioned conversation flows, per-tenant
// runtime snapshots with incremental sync, guardrails gating AI replies
// and the human hand-off lifecycle.
package raytchel

import (
	"log/slog"

	"github.com/raytchel123/raytchel/internal/adapters/memory"
	"github.com/raytchel123/raytchel/internal/conversation"
	"github.com/raytchel123/raytchel/internal/flows"
	"github.com/raytchel123/raytchel/internal/guardrail"
	"github.com/raytchel123/raytchel/internal/snapshot"
	"github.com/raytchel123/raytchel/pkg/ports"
)

// Core is the high-level entry point for embedding the library. It wires
// the flow controller, snapshot service, guardrail engine and
// conversation service over a shared set of stores.
type Core struct {
	flows         *flows.Controller
	snapshots     *snapshot.Service
	guardrails    *guardrail.Engine
	conversations *conversation.Service

	flowStore ports.FlowStore
	snapStore ports.SnapshotStore
	convStore ports.ConversationStore
	audit     ports.AuditLog

	guardrailCfg guardrail.Config
	logger       *slog.Logger
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// WithStores injects custom store implementations, bypassing the default
// in-memory ones. Any nil argument keeps its default.
func WithStores(f ports.FlowStore, s ports.SnapshotStore, cv ports.ConversationStore, a ports.AuditLog) Option {
	return func(c *Core) {
		if f != nil {
			c.flowStore = f
		}
		if s != nil {
			c.snapStore = s
		}
		if cv != nil {
			c.convStore = cv
		}
		if a != nil {
			c.audit = a
		}
	}
}

// WithGuardrailConfig overrides the confidence thresholds.
func WithGuardrailConfig(cfg guardrail.Config) Option {
	return func(c *Core) {
		c.guardrailCfg = cfg
	}
}

// New initializes a Core. Without options it runs entirely in memory,
// which is what tests and embedded authoring tools want.
func New(opts ...Option) *Core {
	c := &Core{
		flowStore:    memory.NewFlowStore(),
		snapStore:    memory.NewSnapshotStore(),
		convStore:    memory.NewConversationStore(),
		audit:        memory.NewAuditLog(),
		guardrailCfg: guardrail.DefaultConfig(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.flows = flows.NewController(c.flowStore, c.audit, c.logger)
	c.snapshots = snapshot.NewService(c.snapStore, c.audit, c.logger)
	c.guardrails = guardrail.NewEngine(c.snapshots, c.audit, c.guardrailCfg, c.logger)
	c.conversations = conversation.NewService(c.convStore, c.audit, c.logger)
	return c
}

// Flows returns the flow version controller.
func (c *Core) Flows() *flows.Controller { return c.flows }

// Snapshots returns the snapshot publishing and diff-sync service.
func (c *Core) Snapshots() *snapshot.Service { return c.snapshots }

// Guardrails returns the guardrail decision engine.
func (c *Core) Guardrails() *guardrail.Engine { return c.guardrails }

// Conversations returns the hand-off state machine service.
func (c *Core) Conversations() *conversation.Service { return c.conversations }
