package policy

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// canonicalRule is the fingerprint representation of an AgentRule. Set-valued
// fields are sorted so the hash does not depend on declaration order; the
// permission sequence keeps its order because it is semantically significant
// (first-match scan).
type canonicalRule struct {
	ID               string          `json:"id"`
	AllowOnlyParents []string        `json:"allow_only_parents,omitempty"`
	DenyIfParent     []string        `json:"deny_if_parent,omitempty"`
	Permissions      []canonicalPerm `json:"permissions"`
}

type canonicalPerm struct {
	Tool            string         `json:"tool"`
	Actions         []string       `json:"actions"`
	Conditions      map[string]any `json:"conditions,omitempty"`
	RequireApproval bool           `json:"require_approval,omitempty"`
}

// Fingerprint computes a stable hash of the semantic rule content. It depends
// only on the effective rules: whitespace, file ordering, mtimes, and source
// paths do not affect it. Loading the same directory twice yields the same
// fingerprint.
func Fingerprint(agents map[string]AgentRule) string {
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	canonical := make([]canonicalRule, 0, len(ids))
	for _, id := range ids {
		canonical = append(canonical, canonicalizeRule(agents[id]))
	}

	// Map keys are sorted by encoding/json, so the byte stream is canonical.
	data, err := json.Marshal(canonical)
	if err != nil {
		// Only unmarshalable condition values could get here, and the loader
		// admits scalars and string slices only.
		data = []byte(err.Error())
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func canonicalizeRule(r AgentRule) canonicalRule {
	c := canonicalRule{
		ID:               r.ID,
		AllowOnlyParents: sortedCopy(r.AllowOnlyParents),
		DenyIfParent:     sortedCopy(r.DenyIfParent),
		Permissions:      make([]canonicalPerm, 0, len(r.Permissions)),
	}
	for _, p := range r.Permissions {
		cp := canonicalPerm{
			Tool:            p.Tool,
			Actions:         sortedCopy(p.Actions),
			RequireApproval: p.RequireApproval,
		}
		if !p.Conditions.IsZero() {
			cond := map[string]any{}
			if p.Conditions.MaxAmount != nil {
				cond[ConditionMaxAmount] = *p.Conditions.MaxAmount
			}
			if p.Conditions.Currencies != nil {
				cond[ConditionCurrencies] = sortedCopy(p.Conditions.Currencies)
			}
			if p.Conditions.FolderPrefix != "" {
				cond[ConditionFolderPrefix] = p.Conditions.FolderPrefix
			}
			if p.Conditions.Expr != nil {
				cond[ConditionExpr] = p.Conditions.Expr.Source()
			}
			cp.Conditions = cond
		}
		c.Permissions = append(c.Permissions, cp)
	}
	return c
}

func sortedCopy(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}
