package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	celcompile "github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/outbound/cel"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/outbound/policyfs"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/config"
)

var validatePolicyDir string
var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the policy directory without serving",
	Long: `Load and validate every policy file in the policy directory, then
print a summary of agents, sources, and warnings without starting the
gateway. With --strict, any dropped file or ignored condition key is an
error.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validatePolicyDir, "policy-dir", "", "policy directory (default: from config)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "treat warnings as errors")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := validatePolicyDir
	if dir == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dir = cfg.Policy.Dir
	}

	compiler, err := celcompile.NewCompiler()
	if err != nil {
		return fmt.Errorf("failed to initialize condition compiler: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	snapshot, warnings, err := policyfs.NewLoader(compiler, logger).Load(dir)
	if err != nil {
		for _, w := range warnings {
			fmt.Printf("  %s: %s\n", w.Path, w.Message)
		}
		return &exitError{code: 1, err: fmt.Errorf("policy load failed: %w", err)}
	}

	fmt.Printf("policy directory: %s\n", dir)
	fmt.Printf("fingerprint:      %s\n", snapshot.Fingerprint)
	fmt.Printf("policy files:     %d\n", len(snapshot.Sources))
	fmt.Printf("agents:           %d\n", snapshot.AgentCount())

	ids := make([]string, 0, len(snapshot.Agents))
	for id := range snapshot.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rule := snapshot.Agents[id]
		fmt.Printf("  %s (%d permissions)\n", id, len(rule.Permissions))
	}

	if len(warnings) > 0 {
		fmt.Printf("warnings:         %d\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("  %s: %s\n", w.Path, w.Message)
		}
		if validateStrict {
			return &exitError{code: 1, err: fmt.Errorf("%d validation warnings", len(warnings))}
		}
	}
	return nil
}
