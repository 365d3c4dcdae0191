package policy

import "fmt"

// Evaluate decides a request against a snapshot. It is a pure function:
// deterministic, side-effect-free, and non-blocking, so callers may invoke it
// concurrently on a snapshot obtained from the policy index.
//
// Evaluation order is normative; the first terminal step wins:
//
//  1. Unknown agent id denies.
//  2. Agent-level parent checks (allow_only_parents, then deny_if_parent).
//     Both are evaluated; either one denies.
//  3. First permission matching tool+action is selected (declared order).
//  4. Parameter conditions on the selected permission, in canonical order.
//  5. require_approval defers; otherwise allow.
func Evaluate(ps *PolicySet, req Request) Decision {
	rule, ok := ps.Agents[req.AgentID]
	if !ok {
		return Decision{Kind: DecisionDeny, Reason: ReasonUnknownAgent}
	}

	if rule.AllowOnlyParents != nil {
		if req.ParentAgent == "" {
			return Decision{Kind: DecisionDeny, Reason: ReasonParentRequired}
		}
		if !contains(rule.AllowOnlyParents, req.ParentAgent) {
			return Decision{Kind: DecisionDeny, Reason: ReasonParentNotPermitted}
		}
	}
	if req.ParentAgent != "" && contains(rule.DenyIfParent, req.ParentAgent) {
		return Decision{Kind: DecisionDeny, Reason: ReasonParentDenied}
	}

	idx := -1
	for i, perm := range rule.Permissions {
		if perm.Tool == req.Tool && perm.AllowsAction(req.Action) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Decision{Kind: DecisionDeny, Reason: ReasonActionNotPermitted}
	}
	perm := rule.Permissions[idx]

	if reason := perm.Conditions.Check(req.Params); reason != "" {
		return Decision{Kind: DecisionDeny, Reason: reason}
	}

	if perm.RequireApproval {
		return Decision{
			Kind:          DecisionApprovalRequired,
			PermissionRef: permissionRef(rule.ID, perm.Tool, req.Action, idx),
		}
	}

	return Decision{Kind: DecisionAllow}
}

// permissionRef names the matched permission for approval bookkeeping.
func permissionRef(agentID, tool, action string, idx int) string {
	return fmt.Sprintf("%s/%s/%s#%d", agentID, tool, action, idx)
}
