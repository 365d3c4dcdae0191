package policyfs

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	celcompile "github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/outbound/cel"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/policy"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/service"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	compiler, err := celcompile.NewCompiler()
	if err != nil {
		t.Fatalf("NewCompiler() error: %v", err)
	}
	return NewLoader(compiler, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validPolicy = `
version: 1
agents:
  - id: finance-agent
    permissions:
      - tool: payments
        actions: [create]
        conditions:
          max_amount: 5000
          currencies: [USD, EUR]
`

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "main.yaml", validPolicy)

	ps, warnings, err := newTestLoader(t).Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Load() warnings = %v, want none", warnings)
	}
	if ps.AgentCount() != 1 {
		t.Fatalf("Load() agent count = %d, want 1", ps.AgentCount())
	}

	rule, ok := ps.Agents["finance-agent"]
	if !ok {
		t.Fatal("Load() missing finance-agent")
	}
	perm := rule.Permissions[0]
	if perm.Conditions.MaxAmount == nil || *perm.Conditions.MaxAmount != 5000 {
		t.Errorf("max_amount = %v, want 5000", perm.Conditions.MaxAmount)
	}
	if len(perm.Conditions.Currencies) != 2 {
		t.Errorf("currencies = %v, want [USD EUR]", perm.Conditions.Currencies)
	}
	if len(ps.Sources) != 1 || ps.Sources[0].AgentCount != 1 || ps.Sources[0].Version != 1 {
		t.Errorf("Sources = %+v, want one entry with version 1, agent_count 1", ps.Sources)
	}
	if ps.Fingerprint == "" {
		t.Error("Load() snapshot has no fingerprint")
	}
}

func TestLoader_AllowAlias(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "alias.yaml", `
version: 1
agents:
  - id: hr-agent
    allow:
      - tool: files
        actions: [read, write, read]
        conditions:
          folder_prefix: "/hr-docs/"
`)

	ps, _, err := newTestLoader(t).Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	rule, ok := ps.Agents["hr-agent"]
	if !ok {
		t.Fatal("Load() missing hr-agent declared via allow alias")
	}
	// Duplicate actions are deduplicated, insertion order kept.
	got := rule.Permissions[0].Actions
	if len(got) != 2 || got[0] != "read" || got[1] != "write" {
		t.Errorf("actions = %v, want [read write]", got)
	}
}

func TestLoader_InvalidFileDropped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "version: [unclosed"},
		{name: "missing version", content: "agents:\n  - id: a\n    permissions:\n      - tool: t\n        actions: [x]\n"},
		{name: "unrecognized version", content: "version: 2\nagents:\n  - id: a\n    permissions:\n      - tool: t\n        actions: [x]\n"},
		{name: "no agents", content: "version: 1\n"},
		{name: "agent without id", content: "version: 1\nagents:\n  - permissions:\n      - tool: t\n        actions: [x]\n"},
		{name: "agent without permissions", content: "version: 1\nagents:\n  - id: a\n"},
		{name: "permission without tool", content: "version: 1\nagents:\n  - id: a\n    permissions:\n      - actions: [x]\n"},
		{name: "permission without actions", content: "version: 1\nagents:\n  - id: a\n    permissions:\n      - tool: t\n"},
		{name: "duplicate agent id in one file", content: "version: 1\nagents:\n  - id: a\n    permissions:\n      - tool: t\n        actions: [x]\n  - id: a\n    permissions:\n      - tool: t\n        actions: [x]\n"},
		{name: "bad expr condition", content: "version: 1\nagents:\n  - id: a\n    permissions:\n      - tool: t\n        actions: [x]\n        conditions:\n          expr: \"params.amount <\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, dir, "good.yaml", validPolicy)
			writeFile(t, dir, "zz-bad.yaml", tt.content)

			ps, warnings, err := newTestLoader(t).Load(dir)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			// The bad file is dropped; the good one still loads.
			if ps.AgentCount() != 1 {
				t.Errorf("Load() agent count = %d, want 1 (bad file dropped)", ps.AgentCount())
			}
			if len(warnings) == 0 {
				t.Error("Load() produced no warning for the dropped file")
			}
			if len(ps.Sources) != 1 {
				t.Errorf("Sources = %+v, dropped file must not appear", ps.Sources)
			}
		})
	}
}

func TestLoader_AllFilesInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "version: 99\n")

	ps, warnings, err := newTestLoader(t).Load(dir)
	if !errors.Is(err, ErrNoValidFiles) {
		t.Fatalf("Load() error = %v, want ErrNoValidFiles", err)
	}
	if ps == nil || ps.AgentCount() != 0 {
		t.Errorf("Load() snapshot = %v, want usable empty set", ps)
	}
	if len(warnings) != 1 {
		t.Errorf("Load() warnings = %v, want exactly one", warnings)
	}
}

func TestLoader_EmptyDirectory(t *testing.T) {
	t.Parallel()

	ps, warnings, err := newTestLoader(t).Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if ps.AgentCount() != 0 || len(warnings) != 0 {
		t.Errorf("Load() = %d agents, %v warnings; want empty clean snapshot", ps.AgentCount(), warnings)
	}
}

// A reload where every file fails validation must not wipe the published
// snapshot; the load errors and the previous rules stay in force.
func TestLoader_AllFilesInvalidKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "main.yaml", validPolicy)
	loader := newTestLoader(t)

	ps, warnings, err := loader.Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	index := service.NewPolicyIndex(ps, warnings)

	writeFile(t, dir, filepath.Base(path), "version: 2\nagents: []\n")

	next, warns, err := loader.Load(dir)
	if !errors.Is(err, ErrNoValidFiles) {
		t.Fatalf("Load() after rewrite error = %v, want ErrNoValidFiles", err)
	}
	if err == nil {
		index.Swap(next, warns)
	}

	if got := index.Current().AgentCount(); got != 1 {
		t.Fatalf("published agent count = %d, want previous snapshot retained", got)
	}
	if _, ok := index.Current().Agents["finance-agent"]; !ok {
		t.Error("finance-agent missing from the retained snapshot")
	}
}

func TestLoader_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, _, err := newTestLoader(t).Load(filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Fatal("Load() on a missing directory should error")
	}
}

func TestLoader_LaterFileWinsWholesale(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "10-base.yaml", `
version: 1
agents:
  - id: finance-agent
    permissions:
      - tool: payments
        actions: [create, refund]
`)
	// Sorts after 10-base.yaml, so it shadows the whole agent rule.
	writeFile(t, dir, "20-override.yaml", `
version: 1
agents:
  - id: finance-agent
    permissions:
      - tool: payments
        actions: [create]
`)

	ps, _, err := newTestLoader(t).Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	rule := ps.Agents["finance-agent"]
	if len(rule.Permissions) != 1 || len(rule.Permissions[0].Actions) != 1 {
		t.Errorf("merge kept %+v, want the later file's single-action rule", rule.Permissions)
	}
}

func TestLoader_UnknownConditionWarned(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "main.yaml", `
version: 1
agents:
  - id: a
    permissions:
      - tool: payments
        actions: [create]
        conditions:
          max_amount: 100
          rate_limit: 5
`)

	ps, warnings, err := newTestLoader(t).Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	// The file itself still loads; only the unknown key is ignored.
	if ps.AgentCount() != 1 {
		t.Fatalf("Load() agent count = %d, want 1", ps.AgentCount())
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "rate_limit") {
		t.Errorf("warnings = %v, want one naming the unknown condition", warnings)
	}
	if ps.Agents["a"].Permissions[0].Conditions.MaxAmount == nil {
		t.Error("known condition dropped alongside the unknown one")
	}
}

func TestLoader_FingerprintStableAcrossLoads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "main.yaml", validPolicy)

	loader := newTestLoader(t)
	first, _, err := loader.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := loader.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprints differ across identical loads: %q vs %q", first.Fingerprint, second.Fingerprint)
	}

	// Whitespace-only edits must not change the fingerprint.
	writeFile(t, dir, "main.yaml", strings.ReplaceAll(validPolicy, "max_amount: 5000", "max_amount:    5000"))
	third, _, err := loader.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if first.Fingerprint != third.Fingerprint {
		t.Errorf("fingerprint changed on a whitespace-only edit")
	}
}

func TestLoader_ExprCondition(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "main.yaml", `
version: 1
agents:
  - id: vendor-agent
    permissions:
      - tool: payments
        actions: [create]
        conditions:
          expr: 'params.vendor_id in ["V1", "V2"]'
`)

	ps, warnings, err := newTestLoader(t).Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	dec := policy.Evaluate(ps, policy.Request{
		AgentID: "vendor-agent", Tool: "payments", Action: "create",
		Params: map[string]any{"vendor_id": "V1"},
	})
	if dec.Kind != policy.DecisionAllow {
		t.Errorf("expr condition should allow V1, got %+v", dec)
	}

	dec = policy.Evaluate(ps, policy.Request{
		AgentID: "vendor-agent", Tool: "payments", Action: "create",
		Params: map[string]any{"vendor_id": "V9"},
	})
	if dec.Kind != policy.DecisionDeny || dec.Reason != policy.ReasonConditionFailed {
		t.Errorf("expr condition should deny V9 with %q, got %+v", policy.ReasonConditionFailed, dec)
	}
}
