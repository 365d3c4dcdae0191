package cel

import (
	"strings"
	"testing"
)

func TestCompiler_CompileAndEval(t *testing.T) {
	t.Parallel()

	compiler, err := NewCompiler()
	if err != nil {
		t.Fatalf("NewCompiler() error: %v", err)
	}

	tests := []struct {
		name   string
		expr   string
		params map[string]any
		want   bool
	}{
		{
			name:   "amount comparison",
			expr:   `params.amount < 100.0`,
			params: map[string]any{"amount": 50.0},
			want:   true,
		},
		{
			name:   "amount comparison false",
			expr:   `params.amount < 100.0`,
			params: map[string]any{"amount": 150.0},
			want:   false,
		},
		{
			name:   "conjunction over fields",
			expr:   `params.amount < 100.0 && params.currency == "USD"`,
			params: map[string]any{"amount": 50.0, "currency": "USD"},
			want:   true,
		},
		{
			name:   "membership check",
			expr:   `params.vendor_id in ["V1", "V2"]`,
			params: map[string]any{"vendor_id": "V2"},
			want:   true,
		},
		{
			name:   "has guard for optional field",
			expr:   `has(params.memo) ? params.memo != "" : true`,
			params: map[string]any{},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prg, err := compiler.Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile(%q) error: %v", tt.expr, err)
			}
			got, err := prg.Eval(tt.params)
			if err != nil {
				t.Fatalf("Eval() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
			if prg.Source() != tt.expr {
				t.Errorf("Source() = %q, want %q", prg.Source(), tt.expr)
			}
		})
	}
}

func TestCompiler_EvalMissingField(t *testing.T) {
	t.Parallel()

	compiler, err := NewCompiler()
	if err != nil {
		t.Fatalf("NewCompiler() error: %v", err)
	}

	prg, err := compiler.Compile(`params.amount < 100.0`)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	// Missing key is an evaluation error, which the condition layer treats
	// as a denial.
	if _, err := prg.Eval(map[string]any{}); err == nil {
		t.Error("Eval() with missing field should error")
	}
}

func TestCompiler_Rejects(t *testing.T) {
	t.Parallel()

	compiler, err := NewCompiler()
	if err != nil {
		t.Fatalf("NewCompiler() error: %v", err)
	}

	tests := []struct {
		name string
		expr string
	}{
		{name: "empty", expr: ""},
		{name: "syntax error", expr: `params.amount <`},
		{name: "non-boolean result", expr: `params.amount`},
		{name: "unknown variable", expr: `request.amount > 1.0`},
		{name: "too long", expr: `params.a == "` + strings.Repeat("x", maxExpressionLength) + `"`},
		{name: "nesting too deep", expr: strings.Repeat("(", 60) + "true" + strings.Repeat(")", 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := compiler.Compile(tt.expr); err == nil {
				t.Errorf("Compile(%q) should fail", tt.expr)
			}
		})
	}
}
