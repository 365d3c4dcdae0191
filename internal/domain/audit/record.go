// Package audit contains the decision record, the bounded decision ring,
// and parameter hashing.
package audit

import "time"

// DecisionRecord is the audit view of one terminal dispatch outcome. Raw
// parameters are never stored; only their SHA-256 digest.
type DecisionRecord struct {
	// Timestamp is when the decision became terminal (UTC).
	Timestamp time.Time `json:"timestamp"`
	// AgentID is the calling agent.
	AgentID string `json:"agent_id"`
	// ParentAgent is the declared upstream caller, or null.
	ParentAgent *string `json:"parent_agent"`
	// Tool and Action identify the invocation target.
	Tool   string `json:"tool"`
	Action string `json:"action"`
	// Decision is "allow", "deny", "approval_required", or "approved_executed".
	Decision string `json:"decision"`
	// Reason is the sanitized explanation (empty for plain allows).
	Reason string `json:"reason"`
	// ParamsHash is the SHA-256 hex digest of the canonicalized parameters.
	ParamsHash string `json:"params_hash"`
	// LatencyMS is the total dispatch latency in milliseconds.
	LatencyMS float64 `json:"latency_ms"`
	// TraceID correlates the record with its telemetry span.
	TraceID string `json:"trace_id"`
	// PolicyFingerprint identifies the snapshot the decision was made against.
	PolicyFingerprint string `json:"policy_fingerprint"`
	// ApprovalID references the released approval for approved_executed
	// records.
	ApprovalID string `json:"approval_id,omitempty"`
}
