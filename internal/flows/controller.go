// Package flows owns the draft→published→archived lifecycle of flows.
package flows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raytchel123/raytchel/internal/retry"
	"github.com/raytchel123/raytchel/pkg/domain"
	"github.com/raytchel123/raytchel/pkg/flowgraph"
	"github.com/raytchel123/raytchel/pkg/ports"
)

// Controller coordinates validation, versioning and audit for one flow
// entity at a time. All mutations go through the store's compare-and-swap
// so concurrent publishes on the same flow never mint duplicate versions.
type Controller struct {
	store  ports.FlowStore
	audit  ports.AuditLog
	logger *slog.Logger
	now    func() time.Time
	policy retry.Policy
}

// NewController wires a controller. logger may be nil.
func NewController(store ports.FlowStore, audit ports.AuditLog, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		audit:  audit,
		logger: logger,
		now:    time.Now,
		policy: retry.DefaultPolicy(),
	}
}

// WithClock overrides the time source, for tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// UpdateRequest is a partial draft update. Nil fields are left untouched.
type UpdateRequest struct {
	Name        *string
	Description *string
	Graph       *domain.Graph
}

// Create registers a new draft flow at version 1.
func (c *Controller) Create(ctx context.Context, flow *domain.Flow, actor string) (*domain.Flow, error) {
	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}
	flow.Status = domain.FlowDraft
	flow.Version = 1
	flow.CreatedBy = actor
	flow.CreatedAt = c.now().UTC()

	res := flowgraph.Validate(flow.Graph)
	flow.ValidationErrors = res.Errors

	if err := c.store.Create(ctx, flow); err != nil {
		return nil, err
	}
	c.appendAudit(ctx, actor, "flow.create", flow.ID, map[string]any{
		"name":    flow.Name,
		"version": flow.Version,
	})
	return flow.Clone(), nil
}

// Get returns a flow by id.
func (c *Controller) Get(ctx context.Context, id string) (*domain.Flow, error) {
	return c.store.Get(ctx, id)
}

// List returns all flows for an org.
func (c *Controller) List(ctx context.Context, orgID string) ([]*domain.Flow, error) {
	return c.store.List(ctx, orgID)
}

// Validate runs the structural validator without touching storage.
func (c *Controller) Validate(g domain.Graph) flowgraph.Result {
	return flowgraph.Validate(g)
}

// Update applies a partial draft update. When the graph changes it is
// validated first; a graph with hard errors is rejected and nothing is
// persisted. The version number is not bumped by draft edits.
func (c *Controller) Update(ctx context.Context, flowID string, req UpdateRequest, actor string) (*domain.Flow, error) {
	var updated *domain.Flow

	err := retry.Do(ctx, c.policy, func() error {
		current, err := c.store.Get(ctx, flowID)
		if err != nil {
			return retry.NonRetryable(err)
		}

		next := current.Clone()
		if req.Name != nil {
			next.Name = *req.Name
		}
		if req.Description != nil {
			next.Description = *req.Description
		}
		if req.Graph != nil {
			res := flowgraph.Validate(*req.Graph)
			if !res.Valid {
				return retry.NonRetryable(&domain.ValidationError{Errors: res.Errors})
			}
			next.Graph = req.Graph.Clone()
			next.ValidationErrors = nil
		}

		if err := c.store.CompareAndSwap(ctx, next, current.Version); err != nil {
			if domain.IsConflict(err) {
				return err // retryable: reload and reapply
			}
			return retry.NonRetryable(err)
		}

		c.appendAudit(ctx, actor, "flow.update", flowID, map[string]any{
			"before": auditFlowSummary(current),
			"after":  auditFlowSummary(next),
		})
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Publish promotes a flow to published, bumping its version and archiving
// the graph content under the new version for later rollback. Fails with
// a ValidationError when the flow carries validation errors.
func (c *Controller) Publish(ctx context.Context, flowID, actor string) (*domain.Flow, error) {
	var published *domain.Flow

	err := retry.Do(ctx, c.policy, func() error {
		current, err := c.store.Get(ctx, flowID)
		if err != nil {
			return retry.NonRetryable(err)
		}

		if len(current.ValidationErrors) > 0 {
			return retry.NonRetryable(&domain.ValidationError{Errors: current.ValidationErrors})
		}
		// Re-validate at the publish boundary; stored state may be stale.
		res := flowgraph.Validate(current.Graph)
		if !res.Valid {
			return retry.NonRetryable(&domain.ValidationError{Errors: res.Errors})
		}

		now := c.now().UTC()
		next := current.Clone()
		next.Status = domain.FlowPublished
		next.Version = current.Version + 1
		next.ValidationErrors = nil
		next.PublishedAt = &now

		if err := c.store.CompareAndSwap(ctx, next, current.Version); err != nil {
			if domain.IsConflict(err) {
				return err
			}
			return retry.NonRetryable(err)
		}
		if err := c.store.PutRevision(ctx, flowID, next.Version, next.Graph); err != nil {
			return retry.NonRetryable(fmt.Errorf("archive revision %d: %w", next.Version, err))
		}

		c.appendAudit(ctx, actor, "flow.publish", flowID, map[string]any{
			"version":      next.Version,
			"published_at": now,
		})
		c.logger.Info("flow published", "flow_id", flowID, "version", next.Version)
		published = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

// Rollback restores the content of the immediately preceding published
// version as a new version. Version numbers are never reused or
// decremented. Fails with domain.ErrRevisionNotFound when no prior
// published version exists.
func (c *Controller) Rollback(ctx context.Context, flowID, actor string) (*domain.Flow, error) {
	var rolled *domain.Flow

	err := retry.Do(ctx, c.policy, func() error {
		current, err := c.store.Get(ctx, flowID)
		if err != nil {
			return retry.NonRetryable(err)
		}

		target, err := c.previousRevision(ctx, flowID, current.Version)
		if err != nil {
			return retry.NonRetryable(err)
		}
		graph, err := c.store.GetRevision(ctx, flowID, target)
		if err != nil {
			return retry.NonRetryable(err)
		}

		now := c.now().UTC()
		next := current.Clone()
		next.Graph = graph
		next.Status = domain.FlowPublished
		next.Version = current.Version + 1
		next.ValidationErrors = nil
		next.PublishedAt = &now

		if err := c.store.CompareAndSwap(ctx, next, current.Version); err != nil {
			if domain.IsConflict(err) {
				return err
			}
			return retry.NonRetryable(err)
		}
		if err := c.store.PutRevision(ctx, flowID, next.Version, graph); err != nil {
			return retry.NonRetryable(fmt.Errorf("archive revision %d: %w", next.Version, err))
		}

		c.appendAudit(ctx, actor, "flow.rollback", flowID, map[string]any{
			"rolled_back_from": current.Version,
			"restored_content": target,
			"new_version":      next.Version,
		})
		c.logger.Info("flow rolled back",
			"flow_id", flowID, "restored_content", target, "new_version", next.Version)
		rolled = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rolled, nil
}

// previousRevision finds the largest archived version strictly below
// current. The revision at current is the live content; the one before it
// is the rollback target.
func (c *Controller) previousRevision(ctx context.Context, flowID string, current int) (int, error) {
	revs, err := c.store.Revisions(ctx, flowID)
	if err != nil {
		return 0, err
	}
	target := 0
	for _, v := range revs {
		if v < current && v > target {
			target = v
		}
	}
	if target == 0 {
		return 0, domain.ErrRevisionNotFound
	}
	return target, nil
}

func (c *Controller) appendAudit(ctx context.Context, actor, action, entityID string, detail map[string]any) {
	if c.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		ID:         uuid.NewString(),
		Actor:      actor,
		Action:     action,
		EntityType: "flow",
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  c.now().UTC(),
	}
	if err := c.audit.Append(ctx, entry); err != nil {
		// Audit failures must not fail the mutation; they are logged loud.
		c.logger.Error("audit append failed", "error", err, "action", action, "entity_id", entityID)
	}
}

func auditFlowSummary(f *domain.Flow) map[string]any {
	return map[string]any{
		"name":    f.Name,
		"version": f.Version,
		"status":  f.Status,
		"nodes":   len(f.Graph.Nodes),
	}
}
