package tools

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fileLatency is the simulated downstream latency per file call.
const fileLatency = 5 * time.Millisecond

// FilesAdapter simulates a document store seeded with a few fixtures so read
// calls succeed out of the box.
type FilesAdapter struct {
	mu      sync.Mutex
	files   map[string]string
	latency time.Duration
}

// NewFilesAdapter creates a files adapter with the seed documents.
func NewFilesAdapter() *FilesAdapter {
	return &FilesAdapter{
		files: map[string]string{
			"/hr-docs/employee-handbook.txt": "Employee Handbook Version 2.0\n\nWelcome to the company...",
			"/hr-docs/benefits.txt":          "Benefits Information\n\nHealth Insurance: ...",
			"/legal/contract.docx":           "CONFIDENTIAL LEGAL CONTRACT\n\nThis agreement...",
		},
		latency: fileLatency,
	}
}

// Name implements outbound.ToolAdapter.
func (a *FilesAdapter) Name() string { return "files" }

// Invoke executes a files action.
func (a *FilesAdapter) Invoke(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	switch action {
	case "read":
		return a.read(ctx, params)
	case "write":
		return a.write(ctx, params)
	default:
		return nil, fmt.Errorf("files: unknown action %q", action)
	}
}

func (a *FilesAdapter) read(ctx context.Context, params map[string]any) (map[string]any, error) {
	path, _ := stringParam(params, "path")
	if path == "" {
		return nil, fmt.Errorf("files: path is required")
	}

	a.mu.Lock()
	content, ok := a.files[path]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("files: file %q not found", path)
	}

	if err := simulateLatency(ctx, a.latency); err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "content": content}, nil
}

func (a *FilesAdapter) write(ctx context.Context, params map[string]any) (map[string]any, error) {
	path, _ := stringParam(params, "path")
	if path == "" {
		return nil, fmt.Errorf("files: path is required")
	}
	content, _ := stringParam(params, "content")

	a.mu.Lock()
	a.files[path] = content
	a.mu.Unlock()

	if err := simulateLatency(ctx, a.latency); err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "status": "written"}, nil
}
