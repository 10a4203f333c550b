package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// TestTask_MissingPromptIsError verifies an empty prompt is rejected
// before the sub-agent callback is ever invoked.
func TestTask_MissingPromptIsError(t *testing.T) {
	called := false
	def := NewTaskDefinition(func(ctx context.Context, req TaskRunRequest) (*TaskRunResult, error) {
		called = true
		return &TaskRunResult{}, nil
	})
	res := def.Execute(context.Background(), map[string]any{"description": "x"}, testContext(t.TempDir()))
	if !res.IsError() {
		t.Fatal("expected error for missing prompt")
	}
	if called {
		t.Error("expected sub-agent callback not to be invoked for invalid args")
	}
}

// TestTask_ThoroughnessSelectsIterationCap verifies each thoroughness
// level is translated into the corresponding MaxIterations cap before
// being handed to the run callback.
func TestTask_ThoroughnessSelectsIterationCap(t *testing.T) {
	cases := map[string]int{"quick": 8, "medium": 15, "thorough": 25, "": 15, "bogus": 15}
	for thoroughness, want := range cases {
		var gotCap int
		def := NewTaskDefinition(func(ctx context.Context, req TaskRunRequest) (*TaskRunResult, error) {
			gotCap = req.MaxIterations
			return &TaskRunResult{Success: true, Output: "ok"}, nil
		})
		args := map[string]any{"description": "explore", "prompt": "find the bug"}
		if thoroughness != "" {
			args["thoroughness"] = thoroughness
		}
		res := def.Execute(context.Background(), args, testContext(t.TempDir()))
		if res.IsError() {
			t.Fatalf("thoroughness=%q: unexpected error: %s", thoroughness, res.Error)
		}
		if gotCap != want {
			t.Errorf("thoroughness=%q: expected cap %d, got %d", thoroughness, want, gotCap)
		}
	}
}

// TestTask_AppendsFilesExploredToOutput verifies a sub-run that reports
// explored files has them listed after the main output.
func TestTask_AppendsFilesExploredToOutput(t *testing.T) {
	def := NewTaskDefinition(func(ctx context.Context, req TaskRunRequest) (*TaskRunResult, error) {
		return &TaskRunResult{Success: true, Output: "found the bug in main.go", FilesExplored: []string{"main.go", "util.go"}}, nil
	})
	res := def.Execute(context.Background(), map[string]any{"prompt": "find the bug"}, testContext(t.TempDir()))
	if res.IsError() {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if !strings.Contains(res.Output, "Files explored:") || !strings.Contains(res.Output, "main.go") {
		t.Errorf("expected files-explored section, got %q", res.Output)
	}
}

// TestTask_SubAgentErrorSurfaced verifies a failing sub-agent callback
// reports an error result rather than panicking or silently succeeding.
func TestTask_SubAgentErrorSurfaced(t *testing.T) {
	def := NewTaskDefinition(func(ctx context.Context, req TaskRunRequest) (*TaskRunResult, error) {
		return nil, errors.New("sub-agent crashed")
	})
	res := def.Execute(context.Background(), map[string]any{"prompt": "find the bug"}, testContext(t.TempDir()))
	if !res.IsError() {
		t.Fatal("expected error result when sub-agent callback fails")
	}
}
