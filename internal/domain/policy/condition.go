package policy

import "strings"

// Recognized condition keys, in canonical evaluation order. The order is
// normative: denial reasons must be deterministic regardless of the key
// order in the source YAML.
const (
	ConditionMaxAmount    = "max_amount"
	ConditionCurrencies   = "currencies"
	ConditionFolderPrefix = "folder_prefix"
	ConditionExpr         = "expr"
)

// ExprProgram is a pre-compiled boolean expression over request parameters.
// Implementations must be deterministic, side-effect-free, and non-blocking;
// the loader compiles them once per snapshot.
type ExprProgram interface {
	// Eval returns whether the expression holds for the given parameters.
	Eval(params map[string]any) (bool, error)
	// Source returns the original expression text (used for fingerprinting).
	Source() string
}

// ConditionSet is the closed set of parameter conditions a permission may
// carry. Unset members are nil/empty. Unknown keys in the source YAML are
// dropped (with a LoadWarning) before a ConditionSet is built, so evaluation
// never sees them.
type ConditionSet struct {
	// MaxAmount is an inclusive upper bound on params.amount.
	MaxAmount *float64
	// Currencies is the set params.currency must belong to.
	Currencies []string
	// FolderPrefix is the required prefix of params.path.
	FolderPrefix string
	// Expr is an optional compiled expression over params.
	Expr ExprProgram
}

// IsZero reports whether no condition is set.
func (c ConditionSet) IsZero() bool {
	return c.MaxAmount == nil && c.Currencies == nil && c.FolderPrefix == "" && c.Expr == nil
}

// Check evaluates the conditions against the request parameters in canonical
// order and returns the first violation's deny reason, or "" when all hold.
func (c ConditionSet) Check(params map[string]any) string {
	if c.MaxAmount != nil {
		amount, ok := numberValue(params["amount"])
		if !ok {
			return ReasonAmountRequired
		}
		if amount > *c.MaxAmount {
			return ReasonAmountExceedsLimit
		}
	}

	if c.Currencies != nil {
		currency, ok := params["currency"].(string)
		if !ok || currency == "" {
			return ReasonCurrencyRequired
		}
		if !contains(c.Currencies, currency) {
			return ReasonCurrencyNotAllowed
		}
	}

	if c.FolderPrefix != "" {
		path, ok := params["path"].(string)
		if !ok || !strings.HasPrefix(path, c.FolderPrefix) {
			return ReasonPathOutsideFolder
		}
	}

	if c.Expr != nil {
		ok, err := c.Expr.Eval(params)
		if err != nil || !ok {
			return ReasonConditionFailed
		}
	}

	return ""
}

// numberValue coerces a decoded JSON or YAML scalar to float64.
// encoding/json produces float64; yaml.v3 may produce int or int64.
func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
