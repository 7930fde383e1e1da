// Package conversation implements the hand-off lifecycle of customer
// threads: active → waiting_human → resolved, plus the terminal closed
// state which only administrative tooling ever sets.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raytchel123/raytchel/pkg/domain"
	"github.com/raytchel123/raytchel/pkg/ports"
)

// Service drives conversation state transitions. Every transition goes
// through the store's status-guarded update, so the runtime (requesting
// hand-offs) and the operator console (resolving them) can write
// concurrently without trampling each other.
type Service struct {
	store  ports.ConversationStore
	audit  ports.AuditLog
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a conversation service. logger may be nil.
func NewService(store ports.ConversationStore, audit ports.AuditLog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns a conversation by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	return s.store.Get(ctx, id)
}

// Ensure returns the conversation with the given id, creating it in the
// active state on the first inbound message. Creation races resolve to
// whichever writer won; both callers see the same conversation.
func (s *Service) Ensure(ctx context.Context, id, orgID, contactID string) (*domain.Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}

	c, err := s.store.Get(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, err
	}

	created := &domain.Conversation{
		ID:        id,
		OrgID:     orgID,
		ContactID: contactID,
		Status:    domain.ConversationActive,
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, created); err != nil {
		// Lost the creation race: the winner's record is the truth.
		if existing, getErr := s.store.Get(ctx, id); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	s.appendAudit(ctx, "system", "conversation.create", id, map[string]any{
		"org_id":     orgID,
		"contact_id": contactID,
	})
	return created.Clone(), nil
}

// RequestHandoff parks an active conversation for a human operator,
// recording why and when. Called when a guardrail demands a hand-off or
// a flow node is flagged as requiring one. Fails with InvalidStateError
// when the conversation is not active.
func (s *Service) RequestHandoff(ctx context.Context, id, reason string) (*domain.Conversation, error) {
	at := s.now().UTC()
	c, err := s.store.Transition(ctx, id, domain.ConversationActive, func(c *domain.Conversation) {
		c.Status = domain.ConversationWaitingHuman
		c.HandoffReason = reason
		c.HandoffRequestedAt = &at
		c.UpdatedAt = at
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, "system", "conversation.handoff_requested", id, map[string]any{
		"reason": reason,
	})
	s.logger.Info("conversation parked for human",
		"conversation_id", id, "reason", reason)
	return c, nil
}

// Resolve closes out a hand-off. The operator must identify themselves
// and leave a non-empty note; the note lands in the conversation
// metadata under "resolution_note". Fails with ValidationError on a
// missing agent or note, and with InvalidStateError when the
// conversation is not waiting on a human.
func (s *Service) Resolve(ctx context.Context, id, agentID, note string) (*domain.Conversation, error) {
	var verrs []string
	if agentID == "" {
		verrs = append(verrs, "assigned_agent_id is required")
	}
	if note == "" {
		verrs = append(verrs, "resolution note must not be empty")
	}
	if len(verrs) > 0 {
		return nil, &domain.ValidationError{Errors: verrs}
	}

	c, err := s.store.Transition(ctx, id, domain.ConversationWaitingHuman, func(c *domain.Conversation) {
		c.Status = domain.ConversationResolved
		c.AssignedAgentID = agentID
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		c.Metadata["resolution_note"] = note
		c.UpdatedAt = s.now().UTC()
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, agentID, "conversation.resolved", id, map[string]any{
		"note": note,
	})
	return c, nil
}

func (s *Service) appendAudit(ctx context.Context, actor, action, entityID string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		ID:         uuid.NewString(),
		Actor:      actor,
		Action:     action,
		EntityType: "conversation",
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		// Audit failures must not fail the mutation; they are logged loud.
		s.logger.Error("audit append failed", "error", err, "action", action, "entity_id", entityID)
	}
}
