// Package snapshot owns per-tenant snapshot publishing, rollback and the
// incremental diff-sync protocol consumed by runtime instances.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raytchel123/raytchel/internal/retry"
	"github.com/raytchel123/raytchel/pkg/domain"
	"github.com/raytchel123/raytchel/pkg/ports"
)

// Service publishes and rolls back snapshots. Versions are per-tenant
// integer sequences; the store's Append guards the active-pointer switch
// so concurrent publishes for one tenant serialize.
type Service struct {
	store     ports.SnapshotStore
	audit     ports.AuditLog
	logger    *slog.Logger
	now       func() time.Time
	policy    retry.Policy
	pageLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithPageLimit caps the operations returned by one Diff call.
func WithPageLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageLimit = n
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires a snapshot service. logger may be nil.
func NewService(store ports.SnapshotStore, audit ports.AuditLog, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		store:     store,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
		policy:    retry.DefaultPolicy(),
		pageLimit: 500,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Publish assigns the next version for the tenant, stores the bundle and
// makes it active in a single atomic switch. The audit entry carries an
// item-count summary per category.
func (s *Service) Publish(ctx context.Context, tenantID string, data domain.SnapshotData, actor string) (*domain.Snapshot, error) {
	var published *domain.Snapshot

	err := retry.Do(ctx, s.policy, func() error {
		latest := int64(0)
		if active, err := s.store.Active(ctx, tenantID); err == nil {
			latest = active.Version
		} else if err != domain.ErrSnapshotNotFound {
			return retry.NonRetryable(err)
		}

		snap := &domain.Snapshot{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Version:   latest + 1,
			Data:      data,
			IsActive:  true,
			CreatedBy: actor,
			CreatedAt: s.now().UTC(),
		}
		if err := s.store.Append(ctx, snap, latest); err != nil {
			if domain.IsConflict(err) {
				return err // another publisher won; reload and retry
			}
			return retry.NonRetryable(err)
		}
		published = snap
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, actor, "snapshot.publish", tenantID, map[string]any{
		"version":     published.Version,
		"snapshot_id": published.ID,
		"item_counts": data.Counts(),
	})
	s.logger.Info("snapshot published", "tenant_id", tenantID, "version", published.Version)
	return published, nil
}

// Rollback republishes the content stored at targetVersion as a brand-new
// version. History stays append-only, and the rollback itself is an
// auditable, reversible event.
func (s *Service) Rollback(ctx context.Context, tenantID string, targetVersion int64, actor string) (*domain.Snapshot, error) {
	target, err := s.store.GetVersion(ctx, tenantID, targetVersion)
	if err != nil {
		return nil, err
	}

	republished, err := s.Publish(ctx, tenantID, target.Data, actor)
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, actor, "snapshot.rollback", tenantID, map[string]any{
		"rolled_back_to": targetVersion,
		"new_version":    republished.Version,
	})
	return republished, nil
}

// Active exposes the tenant's active snapshot.
func (s *Service) Active(ctx context.Context, tenantID string) (*domain.Snapshot, error) {
	return s.store.Active(ctx, tenantID)
}

// List exposes the tenant's snapshot history.
func (s *Service) List(ctx context.Context, tenantID string) ([]*domain.Snapshot, error) {
	return s.store.List(ctx, tenantID)
}

func (s *Service) appendAudit(ctx context.Context, actor, action, tenantID string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		ID:         uuid.NewString(),
		Actor:      actor,
		Action:     action,
		EntityType: "snapshot",
		EntityID:   tenantID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("audit append failed", "error", err, "action", action, "tenant_id", tenantID)
	}
}
