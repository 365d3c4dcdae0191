package http

import (
	"net/http"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/service"
)

// HealthChecker serves /health with a summary of the active policy snapshot.
type HealthChecker struct {
	index *service.PolicyIndex
}

// NewHealthChecker creates a health checker over the policy index.
func NewHealthChecker(index *service.PolicyIndex) *HealthChecker {
	return &HealthChecker{index: index}
}

// Handler returns the /health endpoint handler.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps := h.index.Current()
		respondJSON(w, http.StatusOK, map[string]any{
			"status":  "healthy",
			"service": "aegis-gateway",
			"policy": map[string]any{
				"policy_files": len(ps.Sources),
				"total_agents": ps.AgentCount(),
				"fingerprint":  ps.Fingerprint,
			},
		})
	})
}
