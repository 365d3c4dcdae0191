package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/approval"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/policy"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/service"
)

// agentIDHeader identifies the calling agent; required on every dispatch.
const agentIDHeader = "X-Agent-ID"

// parentAgentHeader declares the upstream caller for delegation checks.
const parentAgentHeader = "X-Parent-Agent"

// handleDispatch serves POST /tools/{tool}/{action}.
func (t *Transport) handleDispatch(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	agentID := r.Header.Get(agentIDHeader)
	if agentID == "" {
		respondError(w, http.StatusBadRequest, "RequestValidation", "X-Agent-ID header is required")
		return
	}

	params, err := decodeParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "RequestValidation", "request body must be a JSON object")
		return
	}

	req := policy.Request{
		AgentID:     agentID,
		ParentAgent: r.Header.Get(parentAgentHeader),
		Tool:        r.PathValue("tool"),
		Action:      r.PathValue("action"),
		Params:      params,
	}

	out := t.dispatcher.Dispatch(r.Context(), req)
	t.metrics.DecisionsTotal.WithLabelValues(req.Tool, string(out.Decision.Kind)).Inc()

	switch out.Kind {
	case service.OutcomeForwarded:
		respondJSON(w, http.StatusOK, out.Result)

	case service.OutcomeDenied:
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error":  "PolicyViolation",
			"reason": out.Decision.Reason,
		})

	case service.OutcomePendingApproval:
		respondJSON(w, http.StatusAccepted, map[string]any{
			"status":      "approval_required",
			"approval_id": out.ApprovalID,
		})

	case service.OutcomeAdapterTimeout:
		respondError(w, http.StatusGatewayTimeout, "ToolTimeout", "tool did not respond in time")

	default:
		// OutcomeUnknownTool and OutcomeAdapterError both surface as a bad
		// upstream.
		logger.Warn("tool call failed", "tool", req.Tool, "action", req.Action, "error", out.Err)
		respondError(w, http.StatusBadGateway, "ToolError", out.Err.Error())
	}
}

// handleApprove serves POST /api/approve/{id}.
func (t *Transport) handleApprove(w http.ResponseWriter, r *http.Request) {
	approverID := r.Header.Get(agentIDHeader)
	if approverID == "" {
		respondError(w, http.StatusBadRequest, "RequestValidation", "X-Agent-ID header is required")
		return
	}

	out := t.dispatcher.Release(r.Context(), r.PathValue("id"), approverID)

	switch out.Kind {
	case service.ReleaseForwarded:
		respondJSON(w, http.StatusOK, map[string]any{
			"status": "executed",
			"result": out.Result,
		})

	case service.ReleaseNotFound:
		respondError(w, http.StatusNotFound, "ApprovalNotFound", "no approval with that id")

	case service.ReleaseConflict:
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":  "ApprovalConflict",
			"status": string(out.Status),
		})

	case service.ReleaseExpired:
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":  "ApprovalExpired",
			"status": string(approval.StatusExpired),
		})

	default:
		respondError(w, http.StatusBadGateway, "ToolError", out.Err.Error())
	}
}

// decodeParams reads the JSON body. An empty body is an empty parameter map;
// anything that is not a JSON object is a validation error.
func decodeParams(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondError writes the uniform error envelope. The reason is already
// sanitized by the caller; raw parameters never reach it.
func respondError(w http.ResponseWriter, status int, errName, reason string) {
	respondJSON(w, status, map[string]any{
		"error":  errName,
		"reason": reason,
	})
}
