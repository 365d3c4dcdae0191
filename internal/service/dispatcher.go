package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/approval"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/audit"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/policy"
	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/port/outbound"
)

// DefaultInvokeTimeout bounds a single tool adapter call.
const DefaultInvokeTimeout = 10 * time.Second

// OutcomeKind classifies a dispatch result for the transport layer.
type OutcomeKind int

const (
	// OutcomeForwarded means the call was allowed and the tool executed.
	OutcomeForwarded OutcomeKind = iota
	// OutcomeDenied means policy rejected the call.
	OutcomeDenied
	// OutcomePendingApproval means the call was parked awaiting release.
	OutcomePendingApproval
	// OutcomeUnknownTool means policy allowed the call but no adapter serves
	// the tool.
	OutcomeUnknownTool
	// OutcomeAdapterError means the tool adapter failed.
	OutcomeAdapterError
	// OutcomeAdapterTimeout means the tool adapter exceeded its deadline.
	OutcomeAdapterTimeout
)

// DispatchOutcome is the terminal result of one agent call.
type DispatchOutcome struct {
	Kind       OutcomeKind
	Decision   policy.Decision
	Result     map[string]any // tool response, for OutcomeForwarded
	ApprovalID string         // token, for OutcomePendingApproval
	Err        error          // adapter failure, for error outcomes
}

// ReleaseKind classifies a release attempt for the transport layer.
type ReleaseKind int

const (
	// ReleaseForwarded means the approval was spent and the captured call
	// executed.
	ReleaseForwarded ReleaseKind = iota
	// ReleaseNotFound means no approval exists for the id.
	ReleaseNotFound
	// ReleaseConflict means the approval was already spent or expired.
	ReleaseConflict
	// ReleaseExpired means the approval outlived its TTL.
	ReleaseExpired
	// ReleaseToolFailed means the approval was spent but the tool call
	// failed. The approval stays spent.
	ReleaseToolFailed
)

// ReleaseOutcome is the terminal result of one release attempt.
type ReleaseOutcome struct {
	Kind   ReleaseKind
	Status approval.Status // current state, for ReleaseConflict
	Result map[string]any  // tool response, for ReleaseForwarded
	Err    error
}

// Dispatcher is the gateway core: it evaluates each call against the active
// policy snapshot, records the decision, and either forwards to the tool
// adapter, parks the call for approval, or rejects it. One decision record
// is produced per terminal outcome, in decision order.
type Dispatcher struct {
	index     *PolicyIndex
	approvals *approval.Store
	ring      *audit.Ring
	adapters  map[string]outbound.ToolAdapter
	sink      outbound.DecisionSink
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithInvokeTimeout overrides the per-call tool adapter deadline.
func WithInvokeTimeout(d time.Duration) DispatcherOption {
	return func(s *Dispatcher) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(s *Dispatcher) { s.logger = logger }
}

// WithDispatcherClock overrides the time source for tests.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(s *Dispatcher) { s.now = now }
}

// NewDispatcher wires the gateway core. Adapters are registered by their
// Name; sink may be nil when telemetry is disabled.
func NewDispatcher(
	index *PolicyIndex,
	approvals *approval.Store,
	ring *audit.Ring,
	adapters []outbound.ToolAdapter,
	sink outbound.DecisionSink,
	opts ...DispatcherOption,
) *Dispatcher {
	byName := make(map[string]outbound.ToolAdapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	s := &Dispatcher{
		index:     index,
		approvals: approvals,
		ring:      ring,
		adapters:  byName,
		sink:      sink,
		logger:    slog.Default(),
		timeout:   DefaultInvokeTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch evaluates and executes one agent call. Policy evaluation runs
// against the snapshot loaded at entry; a concurrent reload does not affect
// this call.
func (s *Dispatcher) Dispatch(ctx context.Context, req policy.Request) DispatchOutcome {
	start := s.now()
	snapshot := s.index.Current()

	decision := policy.Evaluate(snapshot, req)

	switch decision.Kind {
	case policy.DecisionDeny:
		s.record(ctx, req, decision, start, snapshot.Fingerprint, "")
		s.logger.Info("call denied",
			"agent_id", req.AgentID,
			"tool", req.Tool,
			"action", req.Action,
			"reason", decision.Reason,
		)
		return DispatchOutcome{Kind: OutcomeDenied, Decision: decision}

	case policy.DecisionApprovalRequired:
		id := s.approvals.Create(req, decision.PermissionRef)
		s.record(ctx, req, decision, start, snapshot.Fingerprint, id)
		return DispatchOutcome{Kind: OutcomePendingApproval, Decision: decision, ApprovalID: id}
	}

	result, err := s.invoke(ctx, req)
	s.record(ctx, req, decision, start, snapshot.Fingerprint, "")
	if err != nil {
		return s.adapterFailure(req, decision, err)
	}
	return DispatchOutcome{Kind: OutcomeForwarded, Decision: decision, Result: result}
}

// Release spends an approval and executes the captured call. The approval is
// marked executed before the adapter runs, so a tool failure cannot make the
// token replayable.
func (s *Dispatcher) Release(ctx context.Context, id, approverID string) ReleaseOutcome {
	start := s.now()
	res := s.approvals.Release(id, approverID)

	switch res.Code {
	case approval.ReleaseNotFound:
		return ReleaseOutcome{Kind: ReleaseNotFound}
	case approval.ReleaseConflict:
		return ReleaseOutcome{Kind: ReleaseConflict, Status: res.Status}
	case approval.ReleaseExpired:
		return ReleaseOutcome{Kind: ReleaseExpired, Status: approval.StatusExpired}
	}

	req := res.Request
	snapshot := s.index.Current()
	decision := policy.Decision{Kind: policy.DecisionApprovedExecuted}

	result, err := s.invoke(ctx, req)
	s.record(ctx, req, decision, start, snapshot.Fingerprint, id)
	if err != nil {
		out := s.adapterFailure(req, decision, err)
		return ReleaseOutcome{Kind: ReleaseToolFailed, Err: out.Err}
	}

	s.logger.Info("approval released",
		"approval_id", id,
		"approved_by", approverID,
		"agent_id", req.AgentID,
		"tool", req.Tool,
		"action", req.Action,
	)
	return ReleaseOutcome{Kind: ReleaseForwarded, Result: result}
}

// invoke routes the call to the tool adapter under the per-call deadline.
func (s *Dispatcher) invoke(ctx context.Context, req policy.Request) (map[string]any, error) {
	adapter, ok := s.adapters[req.Tool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownTool, req.Tool)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return adapter.Invoke(ctx, req.Action, req.Params)
}

var errUnknownTool = errors.New("no adapter registered for tool")

// adapterFailure maps an invoke error onto its outcome kind.
func (s *Dispatcher) adapterFailure(req policy.Request, decision policy.Decision, err error) DispatchOutcome {
	kind := OutcomeAdapterError
	switch {
	case errors.Is(err, errUnknownTool):
		kind = OutcomeUnknownTool
	case errors.Is(err, context.DeadlineExceeded):
		kind = OutcomeAdapterTimeout
	}
	s.logger.Error("tool invocation failed",
		"agent_id", req.AgentID,
		"tool", req.Tool,
		"action", req.Action,
		"error", err,
	)
	return DispatchOutcome{Kind: kind, Decision: decision, Err: err}
}

// record builds the decision record, lets the sink emit it (filling the
// trace id), then appends it to the ring.
func (s *Dispatcher) record(ctx context.Context, req policy.Request, decision policy.Decision, start time.Time, fingerprint, approvalID string) {
	var parent *string
	if req.ParentAgent != "" {
		p := req.ParentAgent
		parent = &p
	}

	rec := audit.DecisionRecord{
		Timestamp:         s.now().UTC(),
		AgentID:           req.AgentID,
		ParentAgent:       parent,
		Tool:              req.Tool,
		Action:            req.Action,
		Decision:          string(decision.Kind),
		Reason:            decision.Reason,
		ParamsHash:        audit.HashParams(req.Params),
		LatencyMS:         float64(s.now().Sub(start).Microseconds()) / 1000.0,
		PolicyFingerprint: fingerprint,
		ApprovalID:        approvalID,
	}
	if s.sink != nil {
		s.sink.RecordDecision(ctx, &rec)
	}
	s.ring.Append(rec)
}
