// Package redis implements the store ports on Redis.
//
// Optimistic concurrency uses WATCH/MULTI transactions: every
// read-modify-write (flow compare-and-swap, snapshot active-pointer
// switch, guarded conversation transition) runs inside a watch on its
// key and maps a failed transaction to domain.ErrVersionConflict or an
// InvalidStateError, never to a silent overwrite.
package redis

import (
	"context"
	"errors"

	backend "github.com/redis/go-redis/v9"
)

// Store holds the shared client and key prefix. The port implementations
// are narrow views over it: Flows(), Snapshots(), Conversations(), Audit().
type Store struct {
	client *backend.Client
	prefix string
}

// FlowStore implements ports.FlowStore.
type FlowStore struct{ *Store }

// SnapshotStore implements ports.SnapshotStore.
type SnapshotStore struct{ *Store }

// ConversationStore implements ports.ConversationStore.
type ConversationStore struct{ *Store }

// AuditLog implements ports.AuditLog.
type AuditLog struct{ *Store }

// Flows returns the flow-store view.
func (s *Store) Flows() *FlowStore { return &FlowStore{s} }

// Snapshots returns the snapshot-store view.
func (s *Store) Snapshots() *SnapshotStore { return &SnapshotStore{s} }

// Conversations returns the conversation-store view.
func (s *Store) Conversations() *ConversationStore { return &ConversationStore{s} }

// Audit returns the audit-log view.
func (s *Store) Audit() *AuditLog { return &AuditLog{s} }

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix (default "raytchel:").
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "raytchel:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Ping verifies connectivity, for startup health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// isTxFailed reports a lost WATCH race.
func isTxFailed(err error) bool {
	return errors.Is(err, backend.TxFailedErr)
}
