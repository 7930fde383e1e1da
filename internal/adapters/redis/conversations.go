package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/raytchel123/raytchel/pkg/domain"
)

func (s *Store) convKey(id string) string { return s.key("conv", id) }

// Get retrieves a conversation by id.
func (s *ConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	raw, err := s.client.Get(ctx, s.convKey(id)).Bytes()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrConversationNotFound
		}
		return nil, &domain.ExternalServiceError{Service: "redis", Err: err}
	}
	var c domain.Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &c, nil
}

// Create inserts a new conversation.
func (s *ConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", c.ID, err)
	}
	ok, err := s.client.SetNX(ctx, s.convKey(c.ID), raw, 0).Result()
	if err != nil {
		return &domain.ExternalServiceError{Service: "redis", Err: err}
	}
	if !ok {
		return fmt.Errorf("conversation %s already exists", c.ID)
	}
	return nil
}

// Transition applies mutate under a WATCH on the conversation
// key, guarded on the expected status. Equivalent to a conditional
// "update ... where status = <from>".
func (s *ConversationStore) Transition(ctx context.Context, id string, from domain.ConversationStatus,
	mutate func(*domain.Conversation)) (*domain.Conversation, error) {

	key := s.convKey(id)
	var updated *domain.Conversation

	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if err == backend.Nil {
				return domain.ErrConversationNotFound
			}
			return err
		}
		var current domain.Conversation
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode conversation %s: %w", id, err)
		}
		if current.Status != from {
			return &domain.InvalidStateError{
				ConversationID: id,
				Current:        current.Status,
				Expected:       from,
			}
		}

		next := current.Clone()
		mutate(next)
		nextRaw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode conversation %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, nextRaw, 0)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}, key)

	if isTxFailed(err) {
		return nil, domain.ErrVersionConflict
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}
