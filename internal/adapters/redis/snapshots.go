package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	backend "github.com/redis/go-redis/v9"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// Snapshot keys:
//
//	<prefix>tenant:<t>:snap:<v>   JSON Snapshot at version v
//	<prefix>tenant:<t>:latest     latest (= active) version number
//
// The latest key doubles as the active pointer: history rows keep their
// own IsActive flag for listing, but the pointer is what Append guards.

func (s *Store) snapKey(tenant string, v int64) string {
	return s.key("tenant", tenant, "snap", strconv.FormatInt(v, 10))
}
func (s *Store) latestKey(tenant string) string { return s.key("tenant", tenant, "latest") }

// Active returns the tenant's active snapshot.
func (s *SnapshotStore) Active(ctx context.Context, tenantID string) (*domain.Snapshot, error) {
	latest, err := s.client.Get(ctx, s.latestKey(tenantID)).Int64()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, &domain.ExternalServiceError{Service: "redis", Err: err}
	}
	return s.GetVersion(ctx, tenantID, latest)
}

// GetVersion returns a historical snapshot.
func (s *SnapshotStore) GetVersion(ctx context.Context, tenantID string, version int64) (*domain.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.snapKey(tenantID, version)).Bytes()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, &domain.ExternalServiceError{Service: "redis", Err: err}
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s@%d: %w", tenantID, version, err)
	}
	return &snap, nil
}

// Append stores snap and switches the active pointer atomically. The
// WATCH on the latest key makes two concurrent publishers serialize:
// the loser's transaction fails and surfaces as ErrVersionConflict.
func (s *SnapshotStore) Append(ctx context.Context, snap *domain.Snapshot, expectedLatest int64) error {
	latestKey := s.latestKey(snap.TenantID)

	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		current, err := tx.Get(ctx, latestKey).Int64()
		if err != nil && err != backend.Nil {
			return err
		}
		if err == backend.Nil {
			current = 0
		}
		if current != expectedLatest {
			return domain.ErrVersionConflict
		}
		if snap.Version != expectedLatest+1 {
			return fmt.Errorf("snapshot version %d does not follow latest %d: %w",
				snap.Version, expectedLatest, domain.ErrVersionConflict)
		}

		// Demote the previous active row, if any.
		var prevRaw []byte
		if current > 0 {
			prevRaw, err = tx.Get(ctx, s.snapKey(snap.TenantID, current)).Bytes()
			if err != nil && err != backend.Nil {
				return err
			}
		}

		active := *snap
		active.IsActive = true
		nextRaw, err := json.Marshal(&active)
		if err != nil {
			return fmt.Errorf("encode snapshot %s@%d: %w", snap.TenantID, snap.Version, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			if prevRaw != nil {
				var prev domain.Snapshot
				if err := json.Unmarshal(prevRaw, &prev); err == nil {
					prev.IsActive = false
					if demoted, err := json.Marshal(&prev); err == nil {
						pipe.Set(ctx, s.snapKey(snap.TenantID, current), demoted, 0)
					}
				}
			}
			pipe.Set(ctx, s.snapKey(snap.TenantID, snap.Version), nextRaw, 0)
			pipe.Set(ctx, latestKey, snap.Version, 0)
			return nil
		})
		return err
	}, latestKey)

	if isTxFailed(err) {
		return domain.ErrVersionConflict
	}
	return err
}

// List returns the tenant's snapshots in ascending version order.
func (s *SnapshotStore) List(ctx context.Context, tenantID string) ([]*domain.Snapshot, error) {
	latest, err := s.client.Get(ctx, s.latestKey(tenantID)).Int64()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}
		return nil, &domain.ExternalServiceError{Service: "redis", Err: err}
	}

	out := make([]*domain.Snapshot, 0, latest)
	for v := int64(1); v <= latest; v++ {
		snap, err := s.GetVersion(ctx, tenantID, v)
		if err != nil {
			if err == domain.ErrSnapshotNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}
