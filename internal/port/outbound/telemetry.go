package outbound

import (
	"context"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/domain/audit"
)

// DecisionSink is the outbound port for decision telemetry. The dispatcher
// hands every terminal decision record to the sink before appending it to
// the decision ring.
//
// The sink owns trace correlation: it emits the record as a span plus a
// structured audit log line and fills rec.TraceID so the ring carries the
// same id the trace backend sees.
type DecisionSink interface {
	RecordDecision(ctx context.Context, rec *audit.DecisionRecord)
}

// ReloadReporter receives policy reload outcomes for observability. A nil
// error means a new snapshot was published.
type ReloadReporter interface {
	RecordReload(ctx context.Context, fingerprint string, err error)
}
