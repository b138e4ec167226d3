package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/latebit/castnav/internal/config"
	"github.com/latebit/castnav/internal/logging"
	"github.com/latebit/castnav/internal/view"
	"github.com/latebit/castnav/internal/works"
	"github.com/mark3labs/mcp-go/mcp"
)

const testWork = `{
  "id": "augustus",
  "title": "Augustus",
  "author": "John Williams",
  "year": "1972",
  "nodes": [
    {"id": "octavius", "data": {"label": "Octavius", "role": "emperor", "description": "First **emperor** of Rome"}},
    {"id": "livia", "data": {"label": "Livia"}},
    {"id": "julia", "data": {"label": "Julia"}},
    {"id": "tiberius", "data": {"label": "Tiberius"}}
  ],
  "edges": [
    {"source": "octavius", "target": "livia", "label": "wife"},
    {"source": "octavius", "target": "julia", "label": "daughter"},
    {"source": "livia", "target": "tiberius", "label": "son"}
  ]
}`

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name         string
		tool         mcp.Tool
		wantName     string
		wantRequired []string
		wantDesc     string
	}{
		{"works", worksTool(), "castnav_works", nil, "List the literary works"},
		{"open", openTool(), "castnav_open", []string{"work"}, "protagonist"},
		{"focus", focusTool(), "castnav_focus", []string{"node"}, "focus"},
		{"expand", expandTool(), "castnav_expand", []string{"node"}, "Expand or collapse"},
		{"back", backTool(), "castnav_back", nil, "previously focused"},
		{"reset", resetTool(), "castnav_reset", nil, "protagonist"},
		{"view", viewTool(), "castnav_view", nil, "Settle the layout"},
		{"details", detailsTool(), "castnav_details", []string{"node"}, "Describe"},
		{"close", closeTool(), "castnav_close", nil, "Close"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if !strings.Contains(tt.tool.Description, tt.wantDesc) {
				t.Errorf("description %q does not contain %q", tt.tool.Description, tt.wantDesc)
			}
			schema := tt.tool.InputSchema
			for _, req := range tt.wantRequired {
				if !slices.Contains(schema.Required, req) {
					t.Errorf("required params %v missing %q", schema.Required, req)
				}
				if _, ok := schema.Properties[req]; !ok {
					t.Errorf("properties missing key %q", req)
				}
			}
		})
	}
}

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "augustus.json"), []byte(testWork), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lib, err := works.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cfg := config.Default()
	cfg.WorksDir = dir
	cfg.Physics.Seed = 11

	ctx, cancel := context.WithCancel(context.Background())
	h := newHandler(ctx, lib, cfg, logging.Discard(), nil)
	t.Cleanup(func() {
		h.closeAll()
		cancel()
	})
	return h
}

// newCallToolRequest builds a CallToolRequest with the given arguments.
func newCallToolRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

// assertIsToolError checks that a CallToolResult is an error containing the given substring.
func assertIsToolError(t *testing.T, result *mcp.CallToolResult, substr string) {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected tool error result, got %q", resultText(t, result))
	}
	if text := resultText(t, result); !strings.Contains(text, substr) {
		t.Errorf("error text %q does not contain %q", text, substr)
	}
}

func assertText(t *testing.T, result *mcp.CallToolResult, substrs ...string) {
	t.Helper()
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	text := resultText(t, result)
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			t.Errorf("result %q does not contain %q", text, s)
		}
	}
}

func TestHandlerListWorks(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	result, err := h.listWorks(ctx, newCallToolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertText(t, result, "1 works", "augustus", "John Williams", "4 characters, 3 relationships")

	result, _ = h.listWorks(ctx, newCallToolRequest(map[string]any{"query": "tolstoy"}))
	assertText(t, result, "No works found.")
}

func TestHandlerNavigation(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	result, err := h.open(ctx, newCallToolRequest(map[string]any{"work": "augustus"}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	assertText(t, result, "session: ", "Focus: Octavius (octavius)", "visible 3", "octavius -[wife]- livia  main-dim")

	result, _ = h.expand(ctx, newCallToolRequest(map[string]any{"node": "livia"}))
	assertText(t, result, "expanded 2", "visible 4", "octavius -[wife]- livia  main-highlighted", "livia -[son]- tiberius  secondary")

	result, _ = h.focus(ctx, newCallToolRequest(map[string]any{"node": "tiberius"}))
	assertText(t, result, "Focus: Tiberius (tiberius)", "visible 2", "[focused    ] tiberius")

	result, _ = h.back(ctx, newCallToolRequest(map[string]any{}))
	assertText(t, result, "Focus: Octavius (octavius)", "expanded 2")

	result, _ = h.reset(ctx, newCallToolRequest(map[string]any{}))
	assertText(t, result, "Focus: Octavius (octavius)", "expanded 1", "visible 3")

	result, _ = h.back(ctx, newCallToolRequest(map[string]any{}))
	assertIsToolError(t, result, "history is empty")
}

func TestHandlerViewJSON(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	h.open(ctx, newCallToolRequest(map[string]any{"work": "augustus", "focus": "livia"}))

	result, err := h.view(ctx, newCallToolRequest(map[string]any{"json": true}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	var f view.Frame
	if err := json.Unmarshal([]byte(resultText(t, result)), &f); err != nil {
		t.Fatalf("view is not a JSON frame: %v", err)
	}
	if f.Stats.Focus != "livia" || !f.Settled {
		t.Errorf("frame = %+v", f.Stats)
	}
}

func TestHandlerDetails(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	h.open(ctx, newCallToolRequest(map[string]any{"work": "augustus"}))

	result, _ := h.details(ctx, newCallToolRequest(map[string]any{"node": "octavius"}))
	assertText(t, result, "Octavius (octavius)", "Role: emperor", "First emperor of Rome", "wife: Livia (livia)")

	result, _ = h.details(ctx, newCallToolRequest(map[string]any{"node": "nero"}))
	assertIsToolError(t, result, "invalid node reference")
}

func TestHandlerErrors(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	result, _ := h.focus(ctx, newCallToolRequest(map[string]any{"node": "livia"}))
	assertIsToolError(t, result, "call castnav_open first")

	result, _ = h.open(ctx, newCallToolRequest(map[string]any{}))
	assertIsToolError(t, result, "work is required")

	result, _ = h.open(ctx, newCallToolRequest(map[string]any{"work": "iliad"}))
	assertIsToolError(t, result, "work not found")

	result, _ = h.open(ctx, newCallToolRequest(map[string]any{"work": "augustus", "expansion": "sideways"}))
	assertIsToolError(t, result, "unknown expansion mode")

	result, _ = h.open(ctx, newCallToolRequest(map[string]any{"work": "augustus", "focus": "nero"}))
	assertIsToolError(t, result, "invalid node reference")

	h.open(ctx, newCallToolRequest(map[string]any{"work": "augustus", "expansion": "neighbors"}))
	result, _ = h.expand(ctx, newCallToolRequest(map[string]any{"node": "livia"}))
	assertIsToolError(t, result, "expansion disabled")

	result, _ = h.focus(ctx, newCallToolRequest(map[string]any{"node": "livia", "session": "nope"}))
	assertIsToolError(t, result, "unknown session")
}

func TestHandlerCloseSession(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	h.open(ctx, newCallToolRequest(map[string]any{"work": "augustus"}))

	result, _ := h.closeSession(ctx, newCallToolRequest(map[string]any{}))
	assertText(t, result, "closed ")

	result, _ = h.view(ctx, newCallToolRequest(map[string]any{}))
	assertIsToolError(t, result, "no open session")
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	applyFlags(cfg, "/w", "union", "", ":9100")
	if cfg.WorksDir != "/w" || cfg.Expansion != "union" || cfg.LogFile != "" || cfg.MetricsAddr != ":9100" {
		t.Errorf("config = %+v", cfg)
	}
}
