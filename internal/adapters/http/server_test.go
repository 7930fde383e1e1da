package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/raytchel123/raytchel/internal/adapters/http"
	"github.com/raytchel123/raytchel/internal/adapters/memory"
	"github.com/raytchel123/raytchel/internal/conversation"
	"github.com/raytchel123/raytchel/internal/flows"
	"github.com/raytchel123/raytchel/internal/guardrail"
	"github.com/raytchel123/raytchel/internal/logging"
	"github.com/raytchel123/raytchel/internal/snapshot"
	"github.com/raytchel123/raytchel/pkg/domain"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := logging.NewNop()
	audit := memory.NewAuditLog()

	fc := flows.NewController(memory.NewFlowStore(), audit, logger)
	ss := snapshot.NewService(memory.NewSnapshotStore(), audit, logger)
	ge := guardrail.NewEngine(ss, audit, guardrail.DefaultConfig(), logger)
	cs := conversation.NewService(memory.NewConversationStore(), audit, logger)

	srv := httpadapter.NewServer(fc, ss, ge, cs,
		httpadapter.WithLogger(logger),
		httpadapter.WithRegisterer(prometheus.NewRegistry()),
	)
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func validGraph() map[string]any {
	return map[string]any{
		"start": "n1",
		"nodes": []map[string]any{
			{"id": "n1", "type": "start", "go_to": "n2"},
			{"id": "n2", "type": "message", "text": "Olá!", "go_to": "n3"},
			{"id": "n3", "type": "end"},
		},
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFlowLifecycleOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	// Create.
	rec := doJSON(t, h, http.MethodPost, "/v1/flows", map[string]any{
		"org_id":   "org1",
		"name":     "boas-vindas",
		"graph":    validGraph(),
		"actor_id": "ana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	flowID := created["id"].(string)
	assert.Equal(t, float64(1), created["version"])
	assert.Equal(t, "draft", created["status"])

	// Publish bumps the version.
	rec = doJSON(t, h, http.MethodPost, "/v1/flows/"+flowID+"/publish", map[string]any{"actor_id": "ana"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	published := decodeBody(t, rec)
	assert.Equal(t, float64(2), published["version"])
	assert.NotEmpty(t, published["published_at"])

	// Get reflects the publish.
	rec = doJSON(t, h, http.MethodGet, "/v1/flows/"+flowID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "published", decodeBody(t, rec)["status"])

	// List by org.
	rec = doJSON(t, h, http.MethodGet, "/v1/flows?org_id=org1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["flows"], 1)
}

func TestPublishInvalidFlowReturns422(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/flows", map[string]any{
		"org_id":   "org1",
		"name":     "quebrado",
		"actor_id": "ana",
		"graph": map[string]any{
			"start": "n1",
			"nodes": []map[string]any{
				{"id": "n1", "type": "start", "go_to": "missing"},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	flowID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodPost, "/v1/flows/"+flowID+"/publish", map[string]any{"actor_id": "ana"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["validation_errors"])
}

func TestValidateGraphEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/flows/validate", map[string]any{
		"graph": map[string]any{
			"start": "nope",
			"nodes": []map[string]any{{"id": "n1", "type": "end"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["errors"], "start node not found")
}

func TestRollbackWithoutPriorVersionIs404(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/flows", map[string]any{
		"org_id": "org1", "name": "f", "graph": validGraph(), "actor_id": "ana",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	flowID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodPost, "/v1/flows/"+flowID+"/rollback", map[string]any{"actor_id": "ana"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshotPublishDiffAndRollback(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/tenants/acme/snapshots", map[string]any{
		"actor_id": "ana",
		"snapshot_data": map[string]any{
			"products": []map[string]any{{"id": "p1", "price": 100}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, rec)["version"])

	rec = doJSON(t, h, http.MethodPost, "/v1/tenants/acme/snapshots", map[string]any{
		"actor_id": "ana",
		"snapshot_data": map[string]any{
			"products": []map[string]any{{"id": "p1", "price": 120}, {"id": "p2", "price": 80}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Diff since v1 sees both product changes.
	rec = doJSON(t, h, http.MethodGet, "/v1/tenants/acme/sync?since=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	diff := decodeBody(t, rec)
	assert.Equal(t, float64(2), diff["version"])
	assert.Equal(t, false, diff["has_more"])
	changed := diff["changed"].(map[string]any)
	assert.Len(t, changed["products"], 2)

	// Rollback republishes v1 as v3.
	rec = doJSON(t, h, http.MethodPost, "/v1/tenants/acme/snapshots/rollback", map[string]any{
		"target_version": 1, "actor_id": "ana",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["rolled_back_to"])
	assert.Equal(t, float64(3), body["new_version"])

	rec = doJSON(t, h, http.MethodGet, "/v1/tenants/acme/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["snapshots"], 3)
}

func TestSnapshotRollbackUnknownVersionIs404(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/tenants/acme/snapshots/rollback", map[string]any{
		"target_version": 9, "actor_id": "ana",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGuardrailEndpoints(t *testing.T) {
	h := newTestHandler(t)

	// Seed a snapshot with one unpriced product.
	rec := doJSON(t, h, http.MethodPost, "/v1/tenants/acme/snapshots", map[string]any{
		"actor_id": "ana",
		"snapshot_data": map[string]any{
			"products": []map[string]any{{"id": "p1", "name": "Aliança"}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/tenants/acme/guardrails/confidence", map[string]any{
		"intent": "preco_aliancas", "confidence": 0.42, "category": "pricing",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["triggered"])
	assert.Equal(t, "low_confidence", body["reason"])

	rec = doJSON(t, h, http.MethodPost, "/v1/tenants/acme/guardrails/price", map[string]any{
		"product_id": "p1", "intent": "preco_aliancas",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["triggered"])
	assert.Equal(t, "price_missing", body["reason"])

	rec = doJSON(t, h, http.MethodPost, "/v1/tenants/acme/guardrails/validate", map[string]any{
		"intent": "preco_aliancas", "category": "pricing", "confidence": 0.95,
		"response_content": "Custa R$ 4.500!", "product_id": "p1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["is_valid"])
	assert.Equal(t, true, body["requires_handoff"])
}

func TestValidateResponseParksConversation(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/conversations", map[string]any{
		"id": "c1", "org_id": "org1", "contact_id": "wa:+5511988887777",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/tenants/acme/guardrails/validate", map[string]any{
		"intent": "pagamento", "confidence": 0.9,
		"response_content": "Me passa o CPF 123.456.789-09?",
		"conversation_id":  "c1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["requires_handoff"])
	assert.Equal(t, true, body["handoff_requested"])

	rec = doJSON(t, h, http.MethodGet, "/v1/conversations/c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	conv := decodeBody(t, rec)
	assert.Equal(t, string(domain.ConversationWaitingHuman), conv["status"])
	assert.Equal(t, "sensitive_info", conv["handoff_reason"])
}

func TestConversationResolveFlow(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/conversations", map[string]any{
		"id": "c1", "org_id": "org1", "contact_id": "contact",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Resolving an active conversation is an illegal transition.
	rec = doJSON(t, h, http.MethodPost, "/v1/conversations/c1/resolve", map[string]any{
		"actor_id": "agent-1", "note": "ok",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/conversations/c1/handoff", map[string]any{
		"reason": "low_confidence",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Empty note fails validation.
	rec = doJSON(t, h, http.MethodPost, "/v1/conversations/c1/resolve", map[string]any{
		"actor_id": "agent-1", "note": "",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/conversations/c1/resolve", map[string]any{
		"actor_id": "agent-1", "note": "Atendido.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(domain.ConversationResolved), decodeBody(t, rec)["status"])
}

func TestUnknownFlowIs404(t *testing.T) {
	h := newTestHandler(t)
	for _, path := range []string{"/v1/flows/ghost", "/v1/conversations/ghost"} {
		rec := doJSON(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, fmt.Sprintf("GET %s", path))
	}
}
