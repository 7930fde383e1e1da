package conversation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raytchel123/raytchel/internal/adapters/memory"
	"github.com/raytchel123/raytchel/internal/conversation"
	"github.com/raytchel123/raytchel/internal/logging"
	"github.com/raytchel123/raytchel/pkg/domain"
)

func newService() (*conversation.Service, *memory.AuditLog) {
	audit := memory.NewAuditLog()
	return conversation.NewService(memory.NewConversationStore(), audit, logging.NewNop()), audit
}

func TestEnsure_CreatesActiveOnFirstContact(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	c, err := svc.Ensure(ctx, "c1", "org1", "wa:+5511999990000")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationActive, c.Status)
	assert.Equal(t, "org1", c.OrgID)

	// Second inbound message hits the same conversation.
	again, err := svc.Ensure(ctx, "c1", "org1", "wa:+5511999990000")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
}

func TestEnsure_GeneratesID(t *testing.T) {
	svc, _ := newService()

	c, err := svc.Ensure(context.Background(), "", "org1", "contact")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
}

func TestRequestHandoff_ParksActiveConversation(t *testing.T) {
	svc, audit := newService()
	ctx := context.Background()

	_, err := svc.Ensure(ctx, "c1", "org1", "contact")
	require.NoError(t, err)

	c, err := svc.RequestHandoff(ctx, "c1", "price_missing")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationWaitingHuman, c.Status)
	assert.Equal(t, "price_missing", c.HandoffReason)
	require.NotNil(t, c.HandoffRequestedAt)

	actions := make([]string, 0, len(audit.Entries()))
	for _, e := range audit.Entries() {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "conversation.handoff_requested")
}

func TestRequestHandoff_TwiceFails(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Ensure(ctx, "c1", "org1", "contact")
	require.NoError(t, err)
	_, err = svc.RequestHandoff(ctx, "c1", "low_confidence")
	require.NoError(t, err)

	_, err = svc.RequestHandoff(ctx, "c1", "low_confidence")
	assert.True(t, domain.IsInvalidState(err))
}

func TestResolve_HappyPath(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Ensure(ctx, "c1", "org1", "contact")
	require.NoError(t, err)
	_, err = svc.RequestHandoff(ctx, "c1", "sensitive_info")
	require.NoError(t, err)

	c, err := svc.Resolve(ctx, "c1", "agent-42", "Cliente atendido por telefone.")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationResolved, c.Status)
	assert.Equal(t, "agent-42", c.AssignedAgentID)
	assert.Equal(t, "Cliente atendido por telefone.", c.Metadata["resolution_note"])
}

func TestResolve_RequiresNoteAndAgent(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Ensure(ctx, "c1", "org1", "contact")
	require.NoError(t, err)
	_, err = svc.RequestHandoff(ctx, "c1", "low_confidence")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "c1", "agent-42", "")
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Resolve(ctx, "c1", "", "uma nota")
	assert.True(t, domain.IsValidation(err))

	// Validation failures never touched the stored state.
	c, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationWaitingHuman, c.Status)
}

func TestResolve_OnActiveConversationFails(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Ensure(ctx, "c1", "org1", "contact")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "c1", "agent-42", "nota")
	assert.True(t, domain.IsInvalidState(err))

	c, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationActive, c.Status)
}

func TestResolve_UnknownConversation(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Resolve(context.Background(), "ghost", "agent-42", "nota")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}
