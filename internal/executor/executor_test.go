package executor

import (
	"context"
	"strings"
	"testing"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
	"github.com/ollielabs/ollie/internal/store"
	"github.com/ollielabs/ollie/internal/tools"
)

func testExecutorDeps(t *testing.T) (*safety.Gateway, *tools.Registry, tools.Context) {
	t.Helper()
	root := t.TempDir()
	cfg := safety.DefaultSafetyConfig(root)
	cfg.EnableAuditLog = false
	gw, err := safety.NewGateway(cfg, "sess-1", nil)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	noop := func(ctx context.Context, req tools.TaskRunRequest) (*tools.TaskRunResult, error) {
		return &tools.TaskRunResult{Success: true, Output: "ok"}, nil
	}
	reg := tools.NewRegistry(st, noop)
	return gw, reg, tools.Context{SessionID: "sess-1", ProjectRoot: root}
}

// TestProcessToolCalls_SafeCallsRunAndSucceed verifies a batch of safe-risk
// calls all execute and return observations in original order.
func TestProcessToolCalls_SafeCallsRunAndSucceed(t *testing.T) {
	gw, reg, tc := testExecutorDeps(t)
	calls := []messages.ToolCall{
		{ID: "1", Name: "list_dir", Arguments: map[string]any{"path": "."}},
		{ID: "2", Name: "list_dir", Arguments: map[string]any{"path": "."}},
	}
	result := ProcessToolCalls(context.Background(), calls, safety.ModeBuild, gw, reg, tc, Callbacks{})
	if result.FailedCount != 0 {
		t.Errorf("expected no failures, got %d", result.FailedCount)
	}
	if result.ParallelCount != 2 {
		t.Errorf("expected 2 calls in the parallel lane, got %d", result.ParallelCount)
	}
	if len(result.Observations) != 2 || len(result.Messages) != 2 {
		t.Errorf("expected 2 observations and 2 messages, got %d/%d", len(result.Observations), len(result.Messages))
	}
}

// TestProcessToolCalls_UnknownToolReportsError verifies an unrecognized
// tool name produces a failed observation naming the tool rather than a
// panic.
func TestProcessToolCalls_UnknownToolReportsError(t *testing.T) {
	gw, reg, tc := testExecutorDeps(t)
	calls := []messages.ToolCall{{ID: "1", Name: "delete_everything", Arguments: map[string]any{}}}
	result := ProcessToolCalls(context.Background(), calls, safety.ModeBuild, gw, reg, tc, Callbacks{})
	if result.FailedCount != 1 {
		t.Fatalf("expected 1 failure, got %d", result.FailedCount)
	}
	if !strings.Contains(result.Observations[0].Error, "delete_everything") {
		t.Errorf("expected error to name the unknown tool, got %q", result.Observations[0].Error)
	}
}

// TestProcessToolCalls_ModeGateBlocksUnavailableTool verifies a
// build-only tool called in plan mode is blocked without reaching the
// safety gateway at all.
func TestProcessToolCalls_ModeGateBlocksUnavailableTool(t *testing.T) {
	gw, reg, tc := testExecutorDeps(t)
	calls := []messages.ToolCall{{ID: "1", Name: "write_file", Arguments: map[string]any{"path": "a.go", "content": "x"}}}
	result := ProcessToolCalls(context.Background(), calls, safety.ModePlan, gw, reg, tc, Callbacks{})
	if result.FailedCount != 1 {
		t.Fatalf("expected write_file blocked in plan mode, got %d failures", result.FailedCount)
	}
	if result.ExecutedCount != 0 {
		t.Errorf("expected the call to never execute, got ExecutedCount=%d", result.ExecutedCount)
	}
}

// TestProcessToolCalls_ConfirmationDeniedBlocksExecution verifies a
// needs-confirmation tool whose Confirm callback denies is recorded as
// blocked and never executed.
func TestProcessToolCalls_ConfirmationDeniedBlocksExecution(t *testing.T) {
	gw, reg, tc := testExecutorDeps(t)
	var blockedTool, blockedReason string
	cb := Callbacks{
		Confirm: func(ctx context.Context, req *safety.ConfirmationRequest) safety.ConfirmationResponse {
			return safety.ConfirmationResponse{Kind: safety.RespondDeny}
		},
		Blocked: func(tool, reason string) { blockedTool, blockedReason = tool, reason },
	}
	calls := []messages.ToolCall{{ID: "1", Name: "write_file", Arguments: map[string]any{"path": "new.go", "content": "package a\n"}}}
	result := ProcessToolCalls(context.Background(), calls, safety.ModeBuild, gw, reg, tc, cb)
	if result.ExecutedCount != 0 {
		t.Errorf("expected denied call not executed, got ExecutedCount=%d", result.ExecutedCount)
	}
	if blockedTool != "write_file" {
		t.Errorf("expected Blocked callback invoked for write_file, got %q", blockedTool)
	}
	if blockedReason == "" {
		t.Error("expected a non-empty blocked reason")
	}
}

// TestProcessToolCalls_ConfirmationAllowedExecutes verifies a confirmed
// call does execute and is marked Confirmed.
func TestProcessToolCalls_ConfirmationAllowedExecutes(t *testing.T) {
	gw, reg, tc := testExecutorDeps(t)
	cb := Callbacks{
		Confirm: func(ctx context.Context, req *safety.ConfirmationRequest) safety.ConfirmationResponse {
			return safety.ConfirmationResponse{Kind: safety.RespondAllow}
		},
	}
	calls := []messages.ToolCall{{ID: "1", Name: "write_file", Arguments: map[string]any{"path": "new.go", "content": "package a\n"}}}
	result := ProcessToolCalls(context.Background(), calls, safety.ModeBuild, gw, reg, tc, cb)
	if result.ExecutedCount != 1 {
		t.Fatalf("expected 1 executed call, got %d", result.ExecutedCount)
	}
	if result.SequentialCount != 1 {
		t.Errorf("expected write_file to run in the sequential (unsafe) lane, got SequentialCount=%d", result.SequentialCount)
	}
}

// TestProcessToolCalls_PreservesOriginalOrder verifies that even though
// safe calls run concurrently, the returned messages/observations track
// each call's original index order, not completion order.
func TestProcessToolCalls_PreservesOriginalOrder(t *testing.T) {
	gw, reg, tc := testExecutorDeps(t)
	calls := []messages.ToolCall{
		{ID: "first", Name: "list_dir", Arguments: map[string]any{"path": "."}},
		{ID: "second", Name: "read_file", Arguments: map[string]any{"path": "does-not-exist.go"}},
	}
	result := ProcessToolCalls(context.Background(), calls, safety.ModeBuild, gw, reg, tc, Callbacks{})
	if len(result.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(result.Observations))
	}
	if result.Observations[0].Tool != "list_dir" || result.Observations[1].Tool != "read_file" {
		t.Errorf("expected order preserved, got %+v", result.Observations)
	}
}
