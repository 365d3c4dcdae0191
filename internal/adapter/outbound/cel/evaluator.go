// Package cel compiles the optional "expr" policy condition into a CEL
// program evaluated over request parameters.
package cel

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/policy"
)

// maxExpressionLength caps condition expressions so a policy file cannot
// carry an unbounded program.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit; params-only expressions stay
// far below it, so hitting the limit means a hostile expression.
const maxCostBudget = 100_000

// maxNestingDepth bounds parenthesis/bracket nesting.
const maxNestingDepth = 50

// Compiler compiles "expr" conditions against a fixed environment exposing
// the request parameters as `params` (map of string to dyn).
type Compiler struct {
	env *cel.Env
}

// NewCompiler creates the condition compiler.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Compiler{env: env}, nil
}

// Compile validates and compiles an expression. The returned program
// implements policy.ExprProgram and is safe for concurrent use.
func (c *Compiler) Compile(expr string) (policy.ExprProgram, error) {
	if expr == "" {
		return nil, errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return nil, fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return nil, err
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must be boolean, got %s", ast.OutputType())
	}

	prg, err := c.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	return &program{prg: prg, src: expr}, nil
}

// program is a compiled expression bound to its source text.
type program struct {
	prg cel.Program
	src string
}

// Eval runs the program over the request parameters.
func (p *program) Eval(params map[string]any) (bool, error) {
	if params == nil {
		params = map[string]any{}
	}
	result, _, err := p.prg.Eval(map[string]any{"params": params})
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}
	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return b, nil
}

// Source returns the original expression text.
func (p *program) Source() string {
	return p.src
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// Compile-time interface verification.
var _ policy.ExprProgram = (*program)(nil)
