// Package admin exposes the read-only operator API: active agents, policy
// sources, recent decisions, and pending approvals.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/approval"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/audit"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/service"
)

// defaultDecisionLimit caps /decisions responses when no limit is given.
const defaultDecisionLimit = 50

// Handler serves the admin API. All endpoints are read-only snapshots; none
// of them mutate gateway state.
type Handler struct {
	index     *service.PolicyIndex
	ring      *audit.Ring
	approvals *approval.Store
	logger    *slog.Logger
}

// NewHandler creates the admin API handler.
func NewHandler(index *service.PolicyIndex, ring *audit.Ring, approvals *approval.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{index: index, ring: ring, approvals: approvals, logger: logger}
}

// Routes returns an http.Handler with all admin routes mounted.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/agents", h.listAgents)
	mux.HandleFunc("GET /api/admin/policies", h.listPolicies)
	mux.HandleFunc("GET /api/admin/decisions", h.listDecisions)
	mux.HandleFunc("GET /api/admin/approvals/pending", h.listPendingApprovals)
	return mux
}

// agentSummary is the admin view of one agent rule.
type agentSummary struct {
	ID               string   `json:"id"`
	Tools            []string `json:"tools"`
	PermissionCount  int      `json:"permission_count"`
	AllowOnlyParents []string `json:"allow_only_parents,omitempty"`
	DenyIfParent     []string `json:"deny_if_parent,omitempty"`
}

// listAgents serves GET /api/admin/agents.
func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	ps := h.index.Current()

	ids := make([]string, 0, len(ps.Agents))
	for id := range ps.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	agents := make([]agentSummary, 0, len(ids))
	for _, id := range ids {
		rule := ps.Agents[id]
		toolSet := map[string]struct{}{}
		var tools []string
		for _, p := range rule.Permissions {
			if _, ok := toolSet[p.Tool]; ok {
				continue
			}
			toolSet[p.Tool] = struct{}{}
			tools = append(tools, p.Tool)
		}
		agents = append(agents, agentSummary{
			ID:               id,
			Tools:            tools,
			PermissionCount:  len(rule.Permissions),
			AllowOnlyParents: rule.AllowOnlyParents,
			DenyIfParent:     rule.DenyIfParent,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"total":  len(agents),
		"agents": agents,
	})
}

// listPolicies serves GET /api/admin/policies.
func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	ps := h.index.Current()
	warnings := h.index.Warnings()

	respondJSON(w, http.StatusOK, map[string]any{
		"fingerprint":  ps.Fingerprint,
		"loaded_at":    h.index.LoadedAt(),
		"total_agents": ps.AgentCount(),
		"policies":     ps.Sources,
		"warnings":     warnings,
	})
}

// listDecisions serves GET /api/admin/decisions?limit=N, newest first.
func (h *Handler) listDecisions(w http.ResponseWriter, r *http.Request) {
	limit := defaultDecisionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	decisions := h.ring.Snapshot(limit)
	respondJSON(w, http.StatusOK, map[string]any{
		"total":     len(decisions),
		"decisions": decisions,
	})
}

// listPendingApprovals serves GET /api/admin/approvals/pending. Captured
// request parameters are never included.
func (h *Handler) listPendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending := h.approvals.ListPending()
	respondJSON(w, http.StatusOK, map[string]any{
		"total":             len(pending),
		"pending_approvals": pending,
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, reason string) {
	respondJSON(w, status, map[string]any{"error": reason})
}
