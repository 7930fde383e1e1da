// Package http exposes the authoring, sync, guardrail and conversation
// operations over a chi router.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raytchel123/raytchel/internal/conversation"
	"github.com/raytchel123/raytchel/internal/flows"
	"github.com/raytchel123/raytchel/internal/guardrail"
	"github.com/raytchel123/raytchel/internal/snapshot"
	"github.com/raytchel123/raytchel/pkg/domain"
)

// Server holds the wired services behind the HTTP surface.
type Server struct {
	flows         *flows.Controller
	snapshots     *snapshot.Service
	guardrails    *guardrail.Engine
	conversations *conversation.Service
	logger        *slog.Logger
	metrics       *Metrics
}

// Options configures a Server beyond its required services.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegisterer registers the server's collectors elsewhere than the
// default prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) { s.metrics = NewMetrics(reg) }
}

// NewServer wires the services into a Server.
func NewServer(fc *flows.Controller, ss *snapshot.Service, ge *guardrail.Engine,
	cs *conversation.Service, opts ...Option) *Server {

	s := &Server{
		flows:         fc,
		snapshots:     ss,
		guardrails:    ge,
		conversations: cs,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(prometheus.DefaultRegisterer)
	}
	return s
}

// Handler builds the router. All API routes sit under /v1; /healthz and
// /metrics are served at the root.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.metrics.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/flows", func(r chi.Router) {
			r.Post("/", s.createFlow)
			r.Get("/", s.listFlows)
			r.Post("/validate", s.validateGraph)
			r.Route("/{flowID}", func(r chi.Router) {
				r.Get("/", s.getFlow)
				r.Patch("/", s.updateFlow)
				r.Post("/publish", s.publishFlow)
				r.Post("/rollback", s.rollbackFlow)
			})
		})

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Post("/snapshots", s.publishSnapshot)
			r.Get("/snapshots", s.listSnapshots)
			r.Post("/snapshots/rollback", s.rollbackSnapshot)
			r.Get("/sync", s.runtimeDiff)

			r.Post("/guardrails/confidence", s.checkConfidence)
			r.Post("/guardrails/price", s.checkPrice)
			r.Post("/guardrails/validate", s.validateResponse)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", s.ensureConversation)
			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", s.getConversation)
				r.Post("/handoff", s.requestHandoff)
				r.Post("/resolve", s.resolveHandoff)
			})
		})
	})

	return r
}

// --- flows ---

type createFlowRequest struct {
	OrgID       string       `json:"org_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Graph       domain.Graph `json:"graph"`
	ActorID     string       `json:"actor_id"`
}

func (s *Server) createFlow(w http.ResponseWriter, r *http.Request) {
	var req createFlowRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	flow := &domain.Flow{
		OrgID:       req.OrgID,
		Name:        req.Name,
		Description: req.Description,
		Graph:       req.Graph,
	}
	created, err := s.flows.Create(r.Context(), flow, req.ActorID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := s.flows.Get(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		writeBadRequest(w, "org_id is required")
		return
	}
	list, err := s.flows.List(r.Context(), orgID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flows": list})
}

type validateGraphRequest struct {
	Graph domain.Graph `json:"graph"`
}

func (s *Server) validateGraph(w http.ResponseWriter, r *http.Request) {
	var req validateGraphRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, s.flows.Validate(req.Graph))
}

type updateFlowRequest struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	Graph       *domain.Graph `json:"graph"`
	ActorID     string        `json:"actor_id"`
}

func (s *Server) updateFlow(w http.ResponseWriter, r *http.Request) {
	var req updateFlowRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	flow, err := s.flows.Update(r.Context(), chi.URLParam(r, "flowID"), flows.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
		Graph:       req.Graph,
	}, req.ActorID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

func (s *Server) publishFlow(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	flow, err := s.flows.Publish(r.Context(), chi.URLParam(r, "flowID"), req.ActorID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           flow.ID,
		"version":      flow.Version,
		"published_at": flow.PublishedAt,
	})
}

func (s *Server) rollbackFlow(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	flow, err := s.flows.Rollback(r.Context(), chi.URLParam(r, "flowID"), req.ActorID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                     flow.ID,
		"rolled_back_to_version": flow.Version,
	})
}

// --- snapshots ---

type publishSnapshotRequest struct {
	Data    domain.SnapshotData `json:"snapshot_data"`
	ActorID string              `json:"actor_id"`
}

func (s *Server) publishSnapshot(w http.ResponseWriter, r *http.Request) {
	var req publishSnapshotRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	snap, err := s.snapshots.Publish(r.Context(), chi.URLParam(r, "tenantID"), req.Data, req.ActorID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.metrics.snapshotPublishes.WithLabelValues("publish").Inc()
	writeJSON(w, http.StatusCreated, map[string]any{
		"snapshot_id": snap.ID,
		"version":     snap.Version,
	})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.snapshots.List(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": list})
}

type rollbackSnapshotRequest struct {
	TargetVersion int64  `json:"target_version"`
	ActorID       string `json:"actor_id"`
}

func (s *Server) rollbackSnapshot(w http.ResponseWriter, r *http.Request) {
	var req rollbackSnapshotRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	snap, err := s.snapshots.Rollback(r.Context(), chi.URLParam(r, "tenantID"), req.TargetVersion, req.ActorID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.metrics.snapshotPublishes.WithLabelValues("rollback").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"rolled_back_to": req.TargetVersion,
		"new_version":    snap.Version,
	})
}

func (s *Server) runtimeDiff(w http.ResponseWriter, r *http.Request) {
	diff, err := s.snapshots.Diff(r.Context(), chi.URLParam(r, "tenantID"), r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	ops := 0
	for _, catOps := range diff.Changed {
		ops += len(catOps)
	}
	s.metrics.diffOps.Observe(float64(ops))
	writeJSON(w, http.StatusOK, diff)
}

// --- guardrails ---

type confidenceRequest struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
}

func (s *Server) checkConfidence(w http.ResponseWriter, r *http.Request) {
	var req confidenceRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	d := s.guardrails.CheckConfidence(chi.URLParam(r, "tenantID"), req.Intent, req.Confidence, req.Category)
	s.countTrigger(d)
	writeJSON(w, http.StatusOK, d)
}

type priceRequest struct {
	ProductID string `json:"product_id"`
	Intent    string `json:"intent"`
}

func (s *Server) checkPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	d, err := s.guardrails.CheckPrice(r.Context(), chi.URLParam(r, "tenantID"), req.ProductID, req.Intent)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.countTrigger(d)
	writeJSON(w, http.StatusOK, d)
}

type validateResponseRequest struct {
	Intent          string  `json:"intent"`
	Category        string  `json:"category"`
	Confidence      float64 `json:"confidence"`
	ResponseContent string  `json:"response_content"`
	ProductID       string  `json:"product_id"`
	ConversationID  string  `json:"conversation_id"`
}

// validateResponse runs the full guardrail sequence. When the outcome
// demands a hand-off and a conversation id was supplied, the conversation
// is parked in the same request; a transition that loses its race is
// reported in the payload, not as a request failure.
func (s *Server) validateResponse(w http.ResponseWriter, r *http.Request) {
	var req validateResponseRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	out := s.guardrails.Validate(r.Context(), chi.URLParam(r, "tenantID"), guardrail.Input{
		Intent:     req.Intent,
		Category:   req.Category,
		Confidence: req.Confidence,
		Reply:      req.ResponseContent,
		ProductID:  req.ProductID,
	})
	for _, d := range out.Guardrails {
		s.countTrigger(d)
	}

	resp := map[string]any{
		"is_valid":         out.IsValid,
		"guardrails":       out.Guardrails,
		"safe_response":    out.SafeResponse,
		"requires_handoff": out.RequiresHandoff,
	}

	if out.RequiresHandoff && req.ConversationID != "" {
		reason := "guardrail"
		if n := len(out.Guardrails); n > 0 {
			reason = string(out.Guardrails[n-1].Reason)
		}
		if _, err := s.conversations.RequestHandoff(r.Context(), req.ConversationID, reason); err != nil {
			if !domain.IsInvalidState(err) {
				writeError(w, s.logger, err)
				return
			}
			// Already waiting on a human; nothing to do.
			resp["handoff_requested"] = false
		} else {
			resp["handoff_requested"] = true
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) countTrigger(d domain.GuardrailDecision) {
	if d.Triggered {
		s.metrics.guardrailTriggers.WithLabelValues(string(d.Reason)).Inc()
	}
}

// --- conversations ---

type ensureConversationRequest struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	ContactID string `json:"contact_id"`
}

func (s *Server) ensureConversation(w http.ResponseWriter, r *http.Request) {
	var req ensureConversationRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	c, err := s.conversations.Ensure(r.Context(), req.ID, req.OrgID, req.ContactID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	c, err := s.conversations.Get(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type handoffRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) requestHandoff(w http.ResponseWriter, r *http.Request) {
	var req handoffRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	c, err := s.conversations.RequestHandoff(r.Context(), chi.URLParam(r, "conversationID"), req.Reason)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type resolveRequest struct {
	ActorID string `json:"actor_id"`
	Note    string `json:"note"`
}

func (s *Server) resolveHandoff(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	c, err := s.conversations.Resolve(r.Context(), chi.URLParam(r, "conversationID"), req.ActorID, req.Note)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
