package tools

import (
	"context"
	"strings"
	"testing"
)

func TestFilesAdapter_ReadSeededFile(t *testing.T) {
	t.Parallel()

	a := NewFilesAdapter()
	res, err := a.Invoke(context.Background(), "read", map[string]any{
		"path": "/hr-docs/employee-handbook.txt",
	})
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	content, _ := res["content"].(string)
	if !strings.Contains(content, "Employee Handbook") {
		t.Errorf("content = %q, want the seeded handbook", content)
	}
}

func TestFilesAdapter_WriteThenRead(t *testing.T) {
	t.Parallel()

	a := NewFilesAdapter()
	ctx := context.Background()

	res, err := a.Invoke(ctx, "write", map[string]any{
		"path": "/hr-docs/new-policy.txt", "content": "Remote work policy",
	})
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if res["status"] != "written" {
		t.Errorf("write response = %v", res)
	}

	got, err := a.Invoke(ctx, "read", map[string]any{"path": "/hr-docs/new-policy.txt"})
	if err != nil {
		t.Fatalf("read-back error: %v", err)
	}
	if got["content"] != "Remote work policy" {
		t.Errorf("read-back content = %v", got["content"])
	}
}

func TestFilesAdapter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action string
		params map[string]any
	}{
		{name: "read missing path", action: "read", params: map[string]any{}},
		{name: "read unknown file", action: "read", params: map[string]any{"path": "/tmp/nope.txt"}},
		{name: "write missing path", action: "write", params: map[string]any{"content": "x"}},
		{name: "unknown action", action: "delete", params: map[string]any{"path": "/hr-docs/benefits.txt"}},
	}

	a := NewFilesAdapter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := a.Invoke(context.Background(), tt.action, tt.params); err == nil {
				t.Errorf("Invoke(%s, %v) should fail", tt.action, tt.params)
			}
		})
	}
}
