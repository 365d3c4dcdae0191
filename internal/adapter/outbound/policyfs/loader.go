// Package policyfs loads YAML policy files from a directory into immutable
// policy snapshots and watches the directory for changes.
package policyfs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	celcompile "github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/outbound/cel"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/policy"
)

// rawFile mirrors the on-disk policy file schema.
type rawFile struct {
	Version *int       `yaml:"version"`
	Agents  []rawAgent `yaml:"agents"`
}

type rawAgent struct {
	ID               string          `yaml:"id"`
	Permissions      []rawPermission `yaml:"permissions"`
	Allow            []rawPermission `yaml:"allow"` // accepted alias for permissions
	AllowOnlyParents []string        `yaml:"allow_only_parents"`
	DenyIfParent     []string        `yaml:"deny_if_parent"`
}

type rawPermission struct {
	Tool            string         `yaml:"tool"`
	Actions         []string       `yaml:"actions"`
	Conditions      map[string]any `yaml:"conditions"`
	RequireApproval bool           `yaml:"require_approval"`
}

// ErrNoValidFiles is returned by Load when policy files were present but
// every one of them was dropped. The returned snapshot is still usable (it is
// empty); callers with a previous snapshot should keep it instead.
var ErrNoValidFiles = errors.New("no valid policy files loaded")

// Loader parses and validates every *.yaml / *.yml file in a directory into
// a policy.PolicySet. Files that fail validation are dropped with a
// LoadWarning; a load only errors when the directory itself cannot be read
// or when files were present but none survived validation.
type Loader struct {
	compiler *celcompile.Compiler
	logger   *slog.Logger
}

// NewLoader creates a Loader. The CEL compiler handles "expr" conditions.
func NewLoader(compiler *celcompile.Compiler, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{compiler: compiler, logger: logger}
}

// Load scans dir for policy files in lexical path order and merges them into
// a snapshot. When several files define the same agent id, the later-loaded
// file wins wholesale, so an operator can shadow a rule with a file whose
// name sorts after the original.
func (l *Loader) Load(dir string) (*policy.PolicySet, []policy.LoadWarning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read policy directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	agents := map[string]policy.AgentRule{}
	var sources []policy.SourceInfo
	var warnings []policy.LoadWarning

	for _, path := range paths {
		rules, version, warns, err := l.loadFile(path)
		warnings = append(warnings, warns...)
		if err != nil {
			warnings = append(warnings, policy.LoadWarning{Path: path, Message: err.Error()})
			l.logger.Warn("policy file dropped", "path", path, "error", err)
			continue
		}
		for _, r := range rules {
			if _, dup := agents[r.ID]; dup {
				l.logger.Info("agent rule shadowed by later file", "agent_id", r.ID, "path", path)
			}
			agents[r.ID] = r
		}
		sources = append(sources, policy.SourceInfo{
			Path:       path,
			Version:    version,
			AgentCount: len(rules),
		})
	}

	ps := &policy.PolicySet{
		Agents:      agents,
		Fingerprint: policy.Fingerprint(agents),
		Sources:     sources,
	}
	// An empty directory is a valid (empty) snapshot, but when every present
	// file was dropped the caller must not publish the wipe.
	if len(sources) == 0 && len(warnings) > 0 {
		return ps, warnings, fmt.Errorf("%w: all %d files in %s were dropped", ErrNoValidFiles, len(paths), dir)
	}
	return ps, warnings, nil
}

// loadFile parses and validates a single policy file. A returned error means
// the whole file is dropped; warnings cover ignored condition keys.
func (l *Loader) loadFile(path string) ([]policy.AgentRule, int, []policy.LoadWarning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("read failed: %w", err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, 0, nil, fmt.Errorf("yaml parse failed: %w", err)
	}

	if raw.Version == nil {
		return nil, 0, nil, fmt.Errorf("version is required")
	}
	if *raw.Version != policy.Version {
		return nil, 0, nil, fmt.Errorf("unrecognized version %d (expected %d)", *raw.Version, policy.Version)
	}
	if len(raw.Agents) == 0 {
		return nil, 0, nil, fmt.Errorf("agents must be a non-empty sequence")
	}

	var warnings []policy.LoadWarning
	rules := make([]policy.AgentRule, 0, len(raw.Agents))
	seen := map[string]struct{}{}

	for i, a := range raw.Agents {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return nil, 0, nil, fmt.Errorf("agents[%d]: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, 0, nil, fmt.Errorf("duplicate agent id %q", id)
		}
		seen[id] = struct{}{}

		rawPerms := a.Permissions
		if rawPerms == nil {
			rawPerms = a.Allow
		}
		if len(rawPerms) == 0 {
			return nil, 0, nil, fmt.Errorf("agent %q: permissions sequence is required", id)
		}

		perms := make([]policy.Permission, 0, len(rawPerms))
		for j, rp := range rawPerms {
			if rp.Tool == "" {
				return nil, 0, nil, fmt.Errorf("agent %q: permissions[%d]: tool is required", id, j)
			}
			if len(rp.Actions) == 0 {
				return nil, 0, nil, fmt.Errorf("agent %q: permissions[%d]: actions must be non-empty", id, j)
			}

			conditions, warns, err := l.buildConditions(path, id, rp.Conditions)
			warnings = append(warnings, warns...)
			if err != nil {
				return nil, 0, nil, fmt.Errorf("agent %q: permissions[%d]: %w", id, j, err)
			}

			perms = append(perms, policy.Permission{
				Tool:            rp.Tool,
				Actions:         dedupe(rp.Actions),
				Conditions:      conditions,
				RequireApproval: rp.RequireApproval,
			})
		}

		rules = append(rules, policy.AgentRule{
			ID:               id,
			AllowOnlyParents: a.AllowOnlyParents,
			DenyIfParent:     a.DenyIfParent,
			Permissions:      perms,
		})
	}

	return rules, *raw.Version, warnings, nil
}

// buildConditions converts a raw condition map into the closed ConditionSet.
// Unknown keys are ignored for forward compatibility, but logged and
// reported as warnings.
func (l *Loader) buildConditions(path, agentID string, raw map[string]any) (policy.ConditionSet, []policy.LoadWarning, error) {
	var cs policy.ConditionSet
	var warnings []policy.LoadWarning

	for _, key := range sortedKeys(raw) {
		value := raw[key]
		switch key {
		case policy.ConditionMaxAmount:
			n, ok := numberValue(value)
			if !ok {
				return cs, warnings, fmt.Errorf("max_amount must be a number, got %T", value)
			}
			cs.MaxAmount = &n
		case policy.ConditionCurrencies:
			set, err := stringSlice(value)
			if err != nil {
				return cs, warnings, fmt.Errorf("currencies: %w", err)
			}
			cs.Currencies = set
		case policy.ConditionFolderPrefix:
			s, ok := value.(string)
			if !ok || s == "" {
				return cs, warnings, fmt.Errorf("folder_prefix must be a non-empty string")
			}
			cs.FolderPrefix = s
		case policy.ConditionExpr:
			src, ok := value.(string)
			if !ok {
				return cs, warnings, fmt.Errorf("expr must be a string")
			}
			if l.compiler == nil {
				return cs, warnings, fmt.Errorf("expr conditions are not enabled")
			}
			prg, err := l.compiler.Compile(src)
			if err != nil {
				return cs, warnings, fmt.Errorf("expr: %w", err)
			}
			cs.Expr = prg
		default:
			l.logger.Warn("ignoring unknown condition key",
				"path", path,
				"agent_id", agentID,
				"condition", key,
			)
			warnings = append(warnings, policy.LoadWarning{
				Path:    path,
				Message: fmt.Sprintf("agent %q: unknown condition %q ignored", agentID, key),
			})
		}
	}

	return cs, warnings, nil
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func stringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a sequence of strings, got %T", v)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("must be non-empty")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("must contain only strings, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// dedupe removes duplicate actions while preserving first-seen order.
func dedupe(actions []string) []string {
	seen := make(map[string]struct{}, len(actions))
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
