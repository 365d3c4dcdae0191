package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/inbound/admin"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/inbound/http"
	celcompile "github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/outbound/cel"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/outbound/policyfs"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/outbound/telemetry"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/adapter/outbound/tools"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/config"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/approval"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/audit"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/port/outbound"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/service"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Start the Aegis gateway.

Loads the policy directory, starts the filesystem watcher for hot
reloads, and serves the tool dispatch, approval, health, metrics, and
admin endpoints until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (text logs, stdout traces)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}

	logger := newLogger(cfg.DevMode)
	slog.SetDefault(logger)

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	compiler, err := celcompile.NewCompiler()
	if err != nil {
		return fmt.Errorf("failed to initialize condition compiler: %w", err)
	}
	loader := policyfs.NewLoader(compiler, logger)

	// Initial load. An unreadable policy directory is a startup failure; a
	// directory whose files all failed validation starts the gateway with an
	// empty snapshot so a later reload can recover.
	snapshot, warnings, err := loader.Load(cfg.Policy.Dir)
	if err != nil && !errors.Is(err, policyfs.ErrNoValidFiles) {
		return &exitError{code: 1, err: fmt.Errorf("policy load failed: %w", err)}
	}
	if err != nil {
		logger.Error("starting with an empty policy snapshot", "dir", cfg.Policy.Dir, "error", err)
	}
	index := service.NewPolicyIndex(snapshot, warnings)
	logger.Info("policies loaded",
		"dir", cfg.Policy.Dir,
		"policy_files", len(snapshot.Sources),
		"total_agents", snapshot.AgentCount(),
		"warnings", len(warnings),
		"fingerprint", snapshot.Fingerprint,
	)

	provider, err := telemetry.NewProvider(ctx, cfg.Telemetry.OTELEndpoint, cfg.DevMode, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()
	sink := telemetry.NewSink(provider.Tracer(), logger)

	approvals := approval.NewStore(
		approval.WithTTL(time.Duration(cfg.Approval.TTLSeconds)*time.Second),
		approval.WithLogger(logger),
	)
	ring := audit.NewRing(cfg.Audit.RingSize)

	dispatcher := service.NewDispatcher(index, approvals, ring,
		[]outbound.ToolAdapter{tools.NewPaymentsAdapter(), tools.NewFilesAdapter()},
		sink,
		service.WithDispatcherLogger(logger),
	)

	adminHandler := admin.NewHandler(index, ring, approvals, logger)
	transport := http.NewTransport(dispatcher, index, approvals,
		http.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		http.WithLogger(logger),
		http.WithAdminHandler(adminHandler.Routes()),
	)

	// Reload path: load, swap, report. A failed load keeps the previous
	// snapshot and is reported but never propagated to the watcher loop.
	reload := func() error {
		next, warns, err := loader.Load(cfg.Policy.Dir)
		if m := transport.Metrics(); m != nil {
			result := "success"
			if err != nil {
				result = "error"
			}
			m.PolicyReloadsTotal.WithLabelValues(result).Inc()
		}
		if err != nil {
			sink.RecordReload(ctx, "", err)
			return err
		}
		prev := index.Swap(next, warns)
		sink.RecordReload(ctx, next.Fingerprint, nil)
		logger.Info("policy snapshot swapped",
			"previous_fingerprint", prev,
			"fingerprint", next.Fingerprint,
			"total_agents", next.AgentCount(),
			"warnings", len(warns),
		)
		return nil
	}

	watcher := policyfs.NewWatcher(cfg.Policy.Dir,
		time.Duration(cfg.Policy.QuietPeriodMS)*time.Millisecond, reload, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error("policy watcher stopped", "error", err)
		}
	}()
	go approvals.RunSweeper(ctx, time.Minute)

	if err := transport.Start(ctx); err != nil {
		return &exitError{code: 2, err: fmt.Errorf("http server failed: %w", err)}
	}
	logger.Info("gateway stopped")
	return nil
}

// newLogger builds the process logger: JSON to stderr in production, text in
// dev mode. Stdout stays reserved for the audit stream.
func newLogger(dev bool) *slog.Logger {
	if dev {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
