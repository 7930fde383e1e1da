package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// ConversationStore implements ports.ConversationStore in memory.
type ConversationStore struct {
	mu    sync.Mutex
	convs map[string]*domain.Conversation
}

// NewConversationStore creates an empty in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: make(map[string]*domain.Conversation)}
}

// Get retrieves a conversation copy by id.
func (s *ConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return c.Clone(), nil
}

// Create inserts a new conversation.
func (s *ConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[c.ID]; ok {
		return fmt.Errorf("conversation %s already exists", c.ID)
	}
	s.convs[c.ID] = c.Clone()
	return nil
}

// Transition applies mutate under the status guard, all inside the lock,
// so a hand-off resolution and a new guardrail trigger cannot interleave.
func (s *ConversationStore) Transition(ctx context.Context, id string, from domain.ConversationStatus,
	mutate func(*domain.Conversation)) (*domain.Conversation, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	if c.Status != from {
		return nil, &domain.InvalidStateError{
			ConversationID: id,
			Current:        c.Status,
			Expected:       from,
		}
	}

	updated := c.Clone()
	mutate(updated)
	s.convs[id] = updated
	return updated.Clone(), nil
}
