package snapshot

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/raytchel123/raytchel/pkg/domain"
)

// Diff computes the operations a runtime cache must apply to move from
// the state implied by since to the tenant's active snapshot.
//
// The since marker is the snapshot version the runtime last synced
// ("" or "0" for a cold start); when a response is capped the marker
// gains an offset ("<version>:<offset>") so the next page resumes
// deterministically. Diff is read-only and idempotent: the same marker
// always yields the same operation list.
func (s *Service) Diff(ctx context.Context, tenantID, since string) (*domain.DiffResult, error) {
	active, err := s.store.Active(ctx, tenantID)
	if err != nil {
		if err == domain.ErrSnapshotNotFound {
			// Nothing published yet; the runtime keeps polling from zero.
			return &domain.DiffResult{Version: 0, Changed: map[string][]domain.DiffOp{}, NextSince: "0"}, nil
		}
		return nil, err
	}

	sinceVersion, offset, err := parseSince(since)
	if err != nil {
		return nil, &domain.ValidationError{Errors: []string{err.Error()}}
	}

	var base domain.SnapshotData
	if sinceVersion > 0 && sinceVersion != active.Version {
		baseSnap, err := s.store.GetVersion(ctx, tenantID, sinceVersion)
		if err == nil {
			base = baseSnap.Data
		} else if err != domain.ErrSnapshotNotFound {
			return nil, err
		}
		// An unknown since version falls through with an empty base:
		// the runtime gets a full resync rather than an error.
	}

	var ops []catOp
	if sinceVersion != active.Version {
		ops = diffData(base, active.Data)
	}

	result := &domain.DiffResult{
		Version: active.Version,
		Changed: map[string][]domain.DiffOp{},
	}

	end := offset + s.pageLimit
	if offset > len(ops) {
		offset = len(ops)
	}
	if end >= len(ops) {
		end = len(ops)
		result.NextSince = strconv.FormatInt(active.Version, 10)
	} else {
		// Keep the base version in the marker so the next page diffs
		// against the same baseline and resumes at the right offset.
		result.HasMore = true
		result.NextSince = fmt.Sprintf("%d:%d", sinceVersion, end)
	}

	for _, op := range ops[offset:end] {
		result.Changed[op.category] = append(result.Changed[op.category], op.op)
	}
	return result, nil
}

// catOp keeps the category alongside the op so the flat, deterministic
// pagination order can be regrouped per category afterwards.
type catOp struct {
	category string
	op       domain.DiffOp
}

// diffData emits upserts for added/changed items and deletes for removed
// ones, walking categories in canonical order and items in the order the
// active (resp. base) snapshot declares them.
func diffData(base, active domain.SnapshotData) []catOp {
	var ops []catOp
	for _, cat := range domain.Categories {
		baseItems := itemIndex(base.Category(cat))
		activeItems := active.Category(cat)
		activeIDs := make(map[string]bool, len(activeItems))

		for _, item := range activeItems {
			id := item.ID()
			if id == "" {
				continue // untagged records cannot be diffed
			}
			activeIDs[id] = true
			if prev, ok := baseItems[id]; ok && reflect.DeepEqual(prev, item) {
				continue
			}
			ops = append(ops, catOp{cat, domain.DiffOp{Op: domain.OpUpsert, Item: item}})
		}
		for _, item := range base.Category(cat) {
			id := item.ID()
			if id != "" && !activeIDs[id] {
				ops = append(ops, catOp{cat, domain.DiffOp{Op: domain.OpDelete, Item: domain.Item{"id": id}}})
			}
		}
	}
	return ops
}

func itemIndex(items []domain.Item) map[string]domain.Item {
	idx := make(map[string]domain.Item, len(items))
	for _, item := range items {
		if id := item.ID(); id != "" {
			idx[id] = item
		}
	}
	return idx
}

func parseSince(since string) (version int64, offset int, err error) {
	if since == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(since, ":", 2)
	version, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil || version < 0 {
		return 0, 0, fmt.Errorf("invalid since marker %q", since)
	}
	if len(parts) == 2 {
		offset, err = strconv.Atoi(parts[1])
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid since marker %q", since)
		}
	}
	return version, offset, nil
}
