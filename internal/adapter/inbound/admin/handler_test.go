package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/approval"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/audit"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/policy"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/service"
)

func newTestHandler(t *testing.T) (*Handler, *audit.Ring, *approval.Store) {
	t.Helper()

	agents := map[string]policy.AgentRule{
		"finance-agent": {
			ID: "finance-agent",
			Permissions: []policy.Permission{
				{Tool: "payments", Actions: []string{"create"}},
				{Tool: "payments", Actions: []string{"refund"}, RequireApproval: true},
			},
		},
		"hr-agent": {
			ID:               "hr-agent",
			AllowOnlyParents: []string{"supervisor-agent"},
			Permissions: []policy.Permission{
				{Tool: "files", Actions: []string{"read"}},
			},
		},
	}
	ps := &policy.PolicySet{
		Agents:      agents,
		Fingerprint: policy.Fingerprint(agents),
		Sources:     []policy.SourceInfo{{Path: "policies/main.yaml", Version: 1, AgentCount: 2}},
	}

	idx := service.NewPolicyIndex(ps, []policy.LoadWarning{{Path: "policies/bad.yaml", Message: "version is required"}})
	ring := audit.NewRing(10)
	approvals := approval.NewStore()
	return NewHandler(idx, ring, approvals, nil), ring, approvals
}

func get(t *testing.T, h *Handler, path string) (*http.Response, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	resp := rec.Result()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp, body
}

func TestListAgents(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)

	resp, body := get(t, h, "/api/admin/agents")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["total"] != float64(2) {
		t.Errorf("total = %v, want 2", body["total"])
	}
	agents := body["agents"].([]any)
	first := agents[0].(map[string]any)
	// Sorted by id, so finance-agent comes first.
	if first["id"] != "finance-agent" || first["permission_count"] != float64(2) {
		t.Errorf("first agent = %v", first)
	}
}

func TestListPolicies(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)

	resp, body := get(t, h, "/api/admin/policies")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["fingerprint"] == "" || body["total_agents"] != float64(2) {
		t.Errorf("body = %v", body)
	}
	if warnings := body["warnings"].([]any); len(warnings) != 1 {
		t.Errorf("warnings = %v, want the load warning surfaced", warnings)
	}
	policies, ok := body["policies"].([]any)
	if !ok || len(policies) != 1 {
		t.Fatalf("policies = %v, want one loaded source", body["policies"])
	}
	src := policies[0].(map[string]any)
	if src["path"] == "" || src["version"] != float64(1) || src["agent_count"] != float64(2) {
		t.Errorf("policies[0] = %v, want path/version/agent_count populated", src)
	}
}

func TestListDecisions(t *testing.T) {
	t.Parallel()
	h, ring, _ := newTestHandler(t)

	for i := 0; i < 5; i++ {
		ring.Append(audit.DecisionRecord{
			Timestamp: time.Now().UTC(),
			AgentID:   "finance-agent",
			Tool:      "payments",
			Action:    "create",
			Decision:  "allow",
		})
	}

	resp, body := get(t, h, "/api/admin/decisions?limit=3")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["total"] != float64(3) {
		t.Errorf("total = %v, want 3", body["total"])
	}

	// Records never carry raw params, only the hash field.
	raw, _ := json.Marshal(body["decisions"])
	if string(raw) == "" || jsonContains(raw, `"params"`) {
		t.Errorf("decisions leaked raw params: %s", raw)
	}
}

func TestListDecisions_BadLimit(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)

	resp, _ := get(t, h, "/api/admin/decisions?limit=zero")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListPendingApprovals(t *testing.T) {
	t.Parallel()
	h, _, approvals := newTestHandler(t)

	approvals.Create(policy.Request{
		AgentID: "finance-agent", Tool: "payments", Action: "refund",
		Params: map[string]any{"payment_id": "secret-target"},
	}, "finance-agent/payments/refund#1")

	resp, body := get(t, h, "/api/admin/approvals/pending")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["total"] != float64(1) {
		t.Fatalf("total = %v, want 1", body["total"])
	}

	pending, ok := body["pending_approvals"]
	if !ok {
		t.Fatalf("body = %v, want pending_approvals key", body)
	}
	raw, _ := json.Marshal(pending)
	if jsonContains(raw, "secret-target") {
		t.Errorf("pending approvals leaked captured params: %s", raw)
	}
}

func jsonContains(raw []byte, needle string) bool {
	return strings.Contains(string(raw), needle)
}
