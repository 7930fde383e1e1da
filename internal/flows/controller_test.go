package flows_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raytchel123/raytchel/internal/adapters/memory"
	"github.com/raytchel123/raytchel/internal/flows"
	"github.com/raytchel123/raytchel/internal/logging"
	"github.com/raytchel123/raytchel/pkg/domain"
)

func newController(t *testing.T) (*flows.Controller, *memory.AuditLog) {
	t.Helper()
	audit := memory.NewAuditLog()
	return flows.NewController(memory.NewFlowStore(), audit, logging.NewNop()), audit
}

func draftFlow() *domain.Flow {
	return &domain.Flow{
		ID:    "flow-1",
		OrgID: "org-1",
		Name:  "Boas-vindas",
		Graph: domain.Graph{
			Start: "start",
			Nodes: []domain.FlowNode{
				{ID: "start", Type: domain.NodeStart, GoTo: "hi"},
				{ID: "hi", Type: domain.NodeMessage, Text: "Olá!", GoTo: "end"},
				{ID: "end", Type: domain.NodeEnd},
			},
		},
	}
}

func brokenFlow() *domain.Flow {
	f := draftFlow()
	f.ID = "flow-broken"
	f.Graph.Nodes[1].GoTo = "ghost"
	return f
}

func TestPublish_BumpsVersion(t *testing.T) {
	ctx := context.Background()
	ctl, audit := newController(t)

	created, err := ctl.Create(ctx, draftFlow(), "op-1")
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, domain.FlowDraft, created.Status)

	published, err := ctl.Publish(ctx, created.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 2, published.Version)
	assert.Equal(t, domain.FlowPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.Empty(t, published.ValidationErrors)

	// Repeated publishes strictly increase the version by 1.
	again, err := ctl.Publish(ctx, created.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Version)

	var actions []string
	for _, e := range audit.Entries() {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "flow.create")
	assert.Contains(t, actions, "flow.publish")
}

func TestPublish_FailsOnInvalidGraph(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newController(t)

	created, err := ctl.Create(ctx, brokenFlow(), "op-1")
	require.NoError(t, err)
	require.NotEmpty(t, created.ValidationErrors)

	_, err = ctl.Publish(ctx, created.ID, "op-1")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	// Version and status are untouched by the failed publish.
	got, err := ctl.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, domain.FlowDraft, got.Status)
}

func TestUpdate_RejectsInvalidGraphWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newController(t)

	created, err := ctl.Create(ctx, draftFlow(), "op-1")
	require.NoError(t, err)

	bad := created.Graph.Clone()
	bad.Nodes[0].GoTo = "nowhere"
	_, err = ctl.Update(ctx, created.ID, flows.UpdateRequest{Graph: &bad}, "op-1")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	got, err := ctl.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Graph.Nodes[0].GoTo)
}

func TestUpdate_DraftEditKeepsVersion(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newController(t)

	created, err := ctl.Create(ctx, draftFlow(), "op-1")
	require.NoError(t, err)

	name := "Novo nome"
	updated, err := ctl.Update(ctx, created.ID, flows.UpdateRequest{Name: &name}, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "Novo nome", updated.Name)
	assert.Equal(t, 1, updated.Version)
}

func TestRollback_RestoresContentUnderNewVersion(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newController(t)

	created, err := ctl.Create(ctx, draftFlow(), "op-1")
	require.NoError(t, err)

	// Publish v2 with the original greeting.
	_, err = ctl.Publish(ctx, created.ID, "op-1")
	require.NoError(t, err)

	// Change the greeting and publish v3.
	g := created.Graph.Clone()
	g.Nodes[1].Text = "Bem-vinda!"
	_, err = ctl.Update(ctx, created.ID, flows.UpdateRequest{Graph: &g}, "op-1")
	require.NoError(t, err)
	v3, err := ctl.Publish(ctx, created.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Version)
	assert.Equal(t, "Bem-vinda!", v3.Graph.Nodes[1].Text)

	// Rollback restores the v2 content as v4 — never reuses a number.
	v4, err := ctl.Rollback(ctx, created.ID, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 4, v4.Version)
	assert.Equal(t, "Olá!", v4.Graph.Nodes[1].Text)
	assert.Equal(t, domain.FlowPublished, v4.Status)
}

func TestRollback_NoPriorPublishedVersion(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newController(t)

	created, err := ctl.Create(ctx, draftFlow(), "op-1")
	require.NoError(t, err)

	// Never published: nothing to roll back to.
	_, err = ctl.Rollback(ctx, created.ID, "op-1")
	assert.ErrorIs(t, err, domain.ErrRevisionNotFound)

	// A single published version has no predecessor either.
	_, err = ctl.Publish(ctx, created.ID, "op-1")
	require.NoError(t, err)
	_, err = ctl.Rollback(ctx, created.ID, "op-1")
	assert.ErrorIs(t, err, domain.ErrRevisionNotFound)
}

func TestPublish_ConcurrentNeverDuplicatesVersions(t *testing.T) {
	ctx := context.Background()
	ctl, _ := newController(t)

	created, err := ctl.Create(ctx, draftFlow(), "op-1")
	require.NoError(t, err)

	const workers = 8
	versions := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			published, err := ctl.Publish(ctx, created.ID, "op-1")
			if err == nil {
				versions <- published.Version
			}
		}()
	}
	wg.Wait()
	close(versions)

	seen := make(map[int]bool)
	for v := range versions {
		assert.False(t, seen[v], "version %d minted twice", v)
		seen[v] = true
	}
	require.NotEmpty(t, seen)
}
