// Package outbound defines the outbound port interfaces the gateway core
// consumes: tool adapters and the telemetry sink.
package outbound

import "context"

// ToolAdapter is the outbound port for executing an allowed or released tool
// call. Adapters implement one tool each (payments, files); the dispatcher
// routes by Name.
//
// Invoke is the only blocking call on the request path. Implementations must
// honour ctx cancellation and return context.DeadlineExceeded (wrapped or
// not) when the per-request deadline elapses.
type ToolAdapter interface {
	// Name returns the tool name the adapter serves.
	Name() string

	// Invoke executes one action and returns the tool's result object.
	Invoke(ctx context.Context, action string, params map[string]any) (map[string]any, error)
}
