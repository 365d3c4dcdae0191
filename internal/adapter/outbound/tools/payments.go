// Package tools provides the built-in mock tool adapters. They simulate
// downstream systems with realistic validation and latency so the gateway
// can be exercised end to end without real backends.
package tools

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/Bhaumik-Tandan/Ai-agent-gateway/internal/port/outbound"
)

var (
	_ outbound.ToolAdapter = (*PaymentsAdapter)(nil)
	_ outbound.ToolAdapter = (*FilesAdapter)(nil)
)

// paymentLatency is the simulated downstream latency per payment call.
const paymentLatency = 10 * time.Millisecond

// PaymentsAdapter simulates a payment processor. Created payments live in
// memory so refunds can be validated against them.
type PaymentsAdapter struct {
	mu       sync.Mutex
	payments map[string]map[string]any
	refunds  map[string]map[string]any
	latency  time.Duration
}

// NewPaymentsAdapter creates an empty payments adapter.
func NewPaymentsAdapter() *PaymentsAdapter {
	return &PaymentsAdapter{
		payments: make(map[string]map[string]any),
		refunds:  make(map[string]map[string]any),
		latency:  paymentLatency,
	}
}

// Name implements outbound.ToolAdapter.
func (a *PaymentsAdapter) Name() string { return "payments" }

// Invoke executes a payments action.
func (a *PaymentsAdapter) Invoke(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	switch action {
	case "create":
		return a.create(ctx, params)
	case "refund":
		return a.refund(ctx, params)
	default:
		return nil, fmt.Errorf("payments: unknown action %q", action)
	}
}

func (a *PaymentsAdapter) create(ctx context.Context, params map[string]any) (map[string]any, error) {
	amount, ok := floatParam(params, "amount")
	if !ok || amount <= 0 {
		return nil, fmt.Errorf("payments: amount must be positive")
	}
	currency, _ := stringParam(params, "currency")
	if currency == "" {
		return nil, fmt.Errorf("payments: currency is required")
	}
	vendorID, _ := stringParam(params, "vendor_id")
	if vendorID == "" {
		return nil, fmt.Errorf("payments: vendor_id is required")
	}

	payment := map[string]any{
		"payment_id": newToken(),
		"amount":     amount,
		"currency":   currency,
		"status":     "created",
	}

	a.mu.Lock()
	a.payments[payment["payment_id"].(string)] = payment
	a.mu.Unlock()

	if err := simulateLatency(ctx, a.latency); err != nil {
		return nil, err
	}
	return payment, nil
}

func (a *PaymentsAdapter) refund(ctx context.Context, params map[string]any) (map[string]any, error) {
	paymentID, _ := stringParam(params, "payment_id")
	if paymentID == "" {
		return nil, fmt.Errorf("payments: payment_id is required")
	}

	a.mu.Lock()
	_, exists := a.payments[paymentID]
	a.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("payments: payment %q not found", paymentID)
	}

	refund := map[string]any{
		"refund_id":  newToken(),
		"payment_id": paymentID,
		"status":     "refunded",
	}

	a.mu.Lock()
	a.refunds[refund["refund_id"].(string)] = refund
	a.mu.Unlock()

	if err := simulateLatency(ctx, a.latency); err != nil {
		return nil, err
	}
	return refund, nil
}

// newToken returns a 32-character hex id.
func newToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("tools: crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(buf)
}

// simulateLatency sleeps for d while honouring ctx cancellation.
func simulateLatency(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// floatParam reads a numeric parameter, coercing the JSON number types.
func floatParam(params map[string]any, key string) (float64, bool) {
	switch n := params[key].(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringParam(params map[string]any, key string) (string, bool) {
	s, ok := params[key].(string)
	return s, ok
}
