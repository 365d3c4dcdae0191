// Package telemetry emits decision spans and structured audit lines. Every
// terminal decision becomes one "policy.decision" span plus one JSON log
// record carrying the same trace id.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/audit"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/port/outbound"
)

// serviceName identifies the gateway in trace backends.
const serviceName = "aegis-gateway"

// Provider owns the tracer provider lifecycle. Shutdown flushes pending
// spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	logger *slog.Logger
}

// NewProvider builds the tracing stack. With an OTLP endpoint configured,
// spans export over HTTP to it; in dev mode without an endpoint they pretty
// print to stderr; otherwise tracing is a no-op and only span contexts are
// generated for log correlation.
func NewProvider(ctx context.Context, endpoint string, devMode bool, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	switch {
	case endpoint != "":
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
		logger.Info("trace export enabled", "endpoint", endpoint)
	case devMode:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, logger: logger}, nil
}

// Tracer returns a tracer for the gateway.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(serviceName)
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// Sink emits one span and one audit log line per terminal decision and
// stamps the record with the span's trace id.
type Sink struct {
	tracer trace.Tracer
	audit  *slog.Logger
	logger *slog.Logger
}

var (
	_ outbound.DecisionSink   = (*Sink)(nil)
	_ outbound.ReloadReporter = (*Sink)(nil)
)

// NewSink creates the decision sink. Audit lines go to stdout as JSON
// regardless of the process logger's format, so they stay machine-parseable.
func NewSink(tracer trace.Tracer, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		tracer: tracer,
		audit:  slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		logger: logger,
	}
}

// RecordDecision implements outbound.DecisionSink.
func (s *Sink) RecordDecision(ctx context.Context, rec *audit.DecisionRecord) {
	parent := ""
	if rec.ParentAgent != nil {
		parent = *rec.ParentAgent
	}

	attrs := []attribute.KeyValue{
		attribute.String("aegis.agent_id", rec.AgentID),
		attribute.String("aegis.parent_agent", parent),
		attribute.String("aegis.tool", rec.Tool),
		attribute.String("aegis.action", rec.Action),
		attribute.String("aegis.decision", rec.Decision),
		attribute.String("aegis.reason", rec.Reason),
		attribute.String("aegis.params_hash", rec.ParamsHash),
		attribute.String("aegis.policy_fingerprint", rec.PolicyFingerprint),
		attribute.Float64("aegis.latency_ms", rec.LatencyMS),
	}
	if rec.ApprovalID != "" {
		attrs = append(attrs, attribute.String("aegis.approval_id", rec.ApprovalID))
	}

	_, span := s.tracer.Start(ctx, "policy.decision", trace.WithAttributes(attrs...))
	if sc := span.SpanContext(); sc.HasTraceID() {
		rec.TraceID = sc.TraceID().String()
	}
	span.End()

	s.audit.Info("decision",
		"agent_id", rec.AgentID,
		"parent_agent", parent,
		"tool", rec.Tool,
		"action", rec.Action,
		"decision", rec.Decision,
		"reason", rec.Reason,
		"params_hash", rec.ParamsHash,
		"latency_ms", rec.LatencyMS,
		"trace_id", rec.TraceID,
		"policy_fingerprint", rec.PolicyFingerprint,
		"approval_id", rec.ApprovalID,
	)
}

// RecordReload implements outbound.ReloadReporter.
func (s *Sink) RecordReload(ctx context.Context, fingerprint string, err error) {
	_, span := s.tracer.Start(ctx, "policy.reload", trace.WithAttributes(
		attribute.String("aegis.policy_fingerprint", fingerprint),
		attribute.Bool("aegis.reload_failed", err != nil),
	))
	span.End()

	if err != nil {
		s.logger.Error("policy reload failed", "error", err)
		return
	}
	s.logger.Info("policy reloaded", "policy_fingerprint", fingerprint)
}
