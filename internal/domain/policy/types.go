// Package policy contains the domain types and the evaluator for
// agent-to-tool authorization rules.
package policy

// Version is the only policy file schema version the loader accepts.
const Version = 1

// Permission grants an agent access to a set of actions on one tool,
// optionally constrained by parameter conditions.
type Permission struct {
	// Tool is the tool this permission applies to (e.g. "payments").
	Tool string
	// Actions is the set of allowed actions on the tool (e.g. "create").
	Actions []string
	// Conditions constrains the request parameters (see ConditionSet).
	Conditions ConditionSet
	// RequireApproval converts an otherwise-allowed call into a pending
	// approval that must be explicitly released.
	RequireApproval bool
}

// AllowsAction reports whether the permission covers the given action.
func (p Permission) AllowsAction(action string) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// AgentRule is the effective rule set for a single agent id.
type AgentRule struct {
	// ID is the agent identifier, unique within a PolicySet.
	ID string
	// AllowOnlyParents, when non-nil, restricts which parent agents may
	// originate calls on behalf of this agent. An empty request parent is
	// denied when this is set.
	AllowOnlyParents []string
	// DenyIfParent denies the request when its parent agent is listed here.
	DenyIfParent []string
	// Permissions are scanned in declared order; the first permission
	// matching the request's tool and action is selected.
	Permissions []Permission
}

// SourceInfo records the provenance of one loaded policy file.
type SourceInfo struct {
	// Path is the file path the rules were loaded from.
	Path string `json:"path"`
	// Version is the schema version declared by the file.
	Version int `json:"version"`
	// AgentCount is the number of agent rules the file contributed.
	AgentCount int `json:"agent_count"`
}

// PolicySet is an immutable snapshot of all active rules. It is published
// behind an atomic pointer and must never be mutated after construction.
type PolicySet struct {
	// Agents maps agent id to its effective rule.
	Agents map[string]AgentRule
	// Fingerprint is a stable hash of the semantic content (see Fingerprint).
	Fingerprint string
	// Sources lists the files that contributed rules, in load order.
	Sources []SourceInfo
}

// AgentCount returns the number of agents in the snapshot.
func (ps *PolicySet) AgentCount() int {
	if ps == nil {
		return 0
	}
	return len(ps.Agents)
}

// Empty returns a valid snapshot with no rules. Used before the first
// successful load and when every source file fails validation.
func Empty() *PolicySet {
	return &PolicySet{
		Agents:      map[string]AgentRule{},
		Fingerprint: Fingerprint(nil),
	}
}

// LoadWarning describes a policy file (or part of one) that was dropped or
// partially ignored during a load. Warnings never abort a load.
type LoadWarning struct {
	// Path is the source file the warning refers to.
	Path string `json:"path"`
	// Message describes what was dropped or ignored.
	Message string `json:"message"`
}

// Request is the evaluation input for one tool call.
type Request struct {
	// AgentID is the calling agent (X-Agent-ID).
	AgentID string
	// ParentAgent is the upstream caller in an agent chain (X-Parent-Agent).
	// Empty means the call has no declared parent.
	ParentAgent string
	// Tool and Action identify the invocation target.
	Tool   string
	Action string
	// Params is the raw JSON request body.
	Params map[string]any
}

// DecisionKind is the terminal classification of an evaluation.
type DecisionKind string

const (
	// DecisionAllow permits the call to be forwarded to the tool adapter.
	DecisionAllow DecisionKind = "allow"
	// DecisionDeny blocks the call.
	DecisionDeny DecisionKind = "deny"
	// DecisionApprovalRequired defers the call behind an approval token.
	DecisionApprovalRequired DecisionKind = "approval_required"
	// DecisionApprovedExecuted marks a released approval's execution.
	// Produced by the dispatcher on release, never by the evaluator.
	DecisionApprovedExecuted DecisionKind = "approved_executed"
)

// Decision is the outcome of evaluating a Request against a PolicySet.
type Decision struct {
	// Kind classifies the outcome.
	Kind DecisionKind
	// Reason is a fixed, sanitized explanation for deny decisions.
	Reason string
	// PermissionRef identifies the matched permission when Kind is
	// DecisionApprovalRequired (format "agent/tool/action#index").
	PermissionRef string
}

// Fixed deny reasons. Reasons are drawn from this closed set so that no
// request content ever leaks into responses or logs.
const (
	ReasonUnknownAgent       = "unknown agent"
	ReasonParentRequired     = "parent required"
	ReasonParentNotPermitted = "parent not permitted"
	ReasonParentDenied       = "parent denied"
	ReasonActionNotPermitted = "action not permitted"
	ReasonAmountRequired     = "amount required"
	ReasonAmountExceedsLimit = "amount exceeds limit"
	ReasonCurrencyRequired   = "currency required"
	ReasonCurrencyNotAllowed = "currency not allowed"
	ReasonPathOutsideFolder  = "path outside allowed folder"
	ReasonConditionFailed    = "condition not satisfied"
)
