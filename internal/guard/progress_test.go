package guard

import (
	"testing"

	"github.com/ollielabs/ollie/internal/messages"
)

func step(tool string, args map[string]any, obs messages.ToolResult) messages.AgentStep {
	return messages.AgentStep{
		Actions:      []messages.ToolCall{{Name: tool, Arguments: args}},
		Observations: []messages.ToolResult{obs},
	}
}

// TestConsecutive_BelowThreshold verifies fewer than threshold identical
// calls in a row does not fire.
func TestConsecutive_BelowThreshold(t *testing.T) {
	steps := []messages.AgentStep{
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "x"}),
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "x"}),
	}
	if r := Consecutive(steps, 3); r.Hit {
		t.Errorf("expected no hit below threshold, got %+v", r)
	}
}

// TestConsecutive_ExactRepeat verifies threshold identical (name, args)
// calls in a row fires.
func TestConsecutive_ExactRepeat(t *testing.T) {
	steps := []messages.AgentStep{
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "x"}),
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "x"}),
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "x"}),
	}
	r := Consecutive(steps, 3)
	if !r.Hit || r.Tool != "read_file" || r.Attempts != 3 {
		t.Errorf("expected hit on read_file x3, got %+v", r)
	}
}

// TestConsecutive_DifferentArgsResetsStreak verifies a different argument
// signature anywhere in the streak resets the count, so reading different
// files in a row never trips the detector.
func TestConsecutive_DifferentArgsResetsStreak(t *testing.T) {
	steps := []messages.AgentStep{
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "x"}),
		step("read_file", map[string]any{"path": "b.go"}, messages.ToolResult{Output: "x"}),
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "x"}),
	}
	if r := Consecutive(steps, 3); r.Hit {
		t.Errorf("expected no hit when args differ, got %+v", r)
	}
}

// TestConsecutive_ReadEditReadDoesNotTrigger verifies an interleaved
// read->edit->read on the same file never fires, since edit breaks the run
// of identical signatures.
func TestConsecutive_ReadEditReadDoesNotTrigger(t *testing.T) {
	steps := []messages.AgentStep{
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "x"}),
		step("edit_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "ok"}),
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "y"}),
	}
	if r := Consecutive(steps, 3); r.Hit {
		t.Errorf("expected no hit for read-edit-read, got %+v", r)
	}
}

// TestNotFound_FiresOnRepeatedEmptyResults verifies threshold consecutive
// empty/not-found search results fire and surface the searched pattern.
func TestNotFound_FiresOnRepeatedEmptyResults(t *testing.T) {
	steps := []messages.AgentStep{
		step("grep", map[string]any{"pattern": "fooBar"}, messages.ToolResult{Output: "no matches"}),
		step("grep", map[string]any{"pattern": "fooBar"}, messages.ToolResult{Output: ""}),
		step("grep", map[string]any{"pattern": "fooBar"}, messages.ToolResult{Error: "ENOENT"}),
	}
	r := NotFound(steps, 3)
	if !r.Hit {
		t.Fatalf("expected not-found hit, got %+v", r)
	}
	found := false
	for _, p := range r.Patterns {
		if p == "fooBar" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected pattern fooBar surfaced, got %+v", r.Patterns)
	}
}

// TestNotFound_IgnoresNonSearchTools verifies that a run_command failure
// does not count toward the not-found detector, since it only watches the
// exploration tools.
func TestNotFound_IgnoresNonSearchTools(t *testing.T) {
	steps := []messages.AgentStep{
		step("run_command", map[string]any{"command": "ls"}, messages.ToolResult{Error: "not found"}),
		step("run_command", map[string]any{"command": "ls"}, messages.ToolResult{Error: "not found"}),
		step("run_command", map[string]any{"command": "ls"}, messages.ToolResult{Error: "not found"}),
	}
	if r := NotFound(steps, 3); r.Hit {
		t.Errorf("expected no hit for non-search tools, got %+v", r)
	}
}

// TestNotFound_SuccessfulResultsDoNotFire verifies results with content
// don't count as not-found hits.
func TestNotFound_SuccessfulResultsDoNotFire(t *testing.T) {
	steps := []messages.AgentStep{
		step("grep", map[string]any{"pattern": "x"}, messages.ToolResult{Output: "main.go:1: x"}),
		step("grep", map[string]any{"pattern": "x"}, messages.ToolResult{Output: "main.go:2: x"}),
		step("grep", map[string]any{"pattern": "x"}, messages.ToolResult{Output: "main.go:3: x"}),
	}
	if r := NotFound(steps, 3); r.Hit {
		t.Errorf("expected no hit for successful searches, got %+v", r)
	}
}

// TestDoom_RepeatedToolErrorsFire verifies the same tool failing threshold
// times in the recent window fires doom, independent of the consecutive
// detector.
func TestDoom_RepeatedToolErrorsFire(t *testing.T) {
	steps := []messages.AgentStep{
		step("edit_file", map[string]any{"path": "a.go", "old": "x"}, messages.ToolResult{Error: "no match"}),
		step("edit_file", map[string]any{"path": "a.go", "old": "y"}, messages.ToolResult{Error: "no match"}),
		step("edit_file", map[string]any{"path": "a.go", "old": "z"}, messages.ToolResult{Error: "no match"}),
	}
	r := Doom(steps, 3)
	if !r.Hit {
		t.Fatalf("expected doom hit on repeated edit_file errors, got %+v", r)
	}
}

// TestDoom_ABABOscillationFires verifies alternating between two distinct,
// non-exploration tools fires the oscillation branch.
func TestDoom_ABABOscillationFires(t *testing.T) {
	steps := []messages.AgentStep{
		step("write_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "ok"}),
		step("run_command", map[string]any{"command": "test"}, messages.ToolResult{Output: "fail"}),
		step("write_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "ok"}),
		step("run_command", map[string]any{"command": "test"}, messages.ToolResult{Output: "fail"}),
	}
	r := Doom(steps, 3)
	if !r.Hit {
		t.Fatalf("expected doom hit on ABAB oscillation, got %+v", r)
	}
}

// TestDoom_ExplorationOscillationExempt verifies alternating between two
// exploration tools (grep/read_file) never fires, since that is normal
// investigation, not a loop.
func TestDoom_ExplorationOscillationExempt(t *testing.T) {
	steps := []messages.AgentStep{
		step("grep", map[string]any{"pattern": "foo"}, messages.ToolResult{Output: "a.go:1"}),
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "contents"}),
		step("grep", map[string]any{"pattern": "bar"}, messages.ToolResult{Output: "b.go:1"}),
		step("read_file", map[string]any{"path": "b.go"}, messages.ToolResult{Output: "contents"}),
	}
	if r := Doom(steps, 3); r.Hit {
		t.Errorf("expected no hit for exploration oscillation, got %+v", r)
	}
}

// TestDoom_NoHitOnHealthyProgress verifies a sequence of distinct,
// successful calls never fires any doom branch.
func TestDoom_NoHitOnHealthyProgress(t *testing.T) {
	steps := []messages.AgentStep{
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "ok"}),
		step("edit_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "edited"}),
		step("run_command", map[string]any{"command": "go build"}, messages.ToolResult{Output: "ok"}),
	}
	if r := Doom(steps, 3); r.Hit {
		t.Errorf("expected no hit on healthy progress, got %+v", r)
	}
}

// TestProgressEstimate_StallDetected verifies a run where only one distinct
// tool was used and every result collapses to the same prefix reports no
// progress.
func TestProgressEstimate_StallDetected(t *testing.T) {
	steps := []messages.AgentStep{
		step("grep", map[string]any{"pattern": "x"}, messages.ToolResult{Output: "no matches"}),
		step("grep", map[string]any{"pattern": "y"}, messages.ToolResult{Output: "no matches"}),
	}
	if ProgressEstimate(steps, 3) {
		t.Error("expected stall (no progress) to be detected")
	}
}

// TestProgressEstimate_HighErrorRate verifies an error rate over 50% in the
// window reports no progress even with varied tools and output.
func TestProgressEstimate_HighErrorRate(t *testing.T) {
	steps := []messages.AgentStep{
		step("edit_file", map[string]any{"path": "a.go"}, messages.ToolResult{Error: "no match"}),
		step("run_command", map[string]any{"command": "go test"}, messages.ToolResult{Error: "build failed"}),
		step("read_file", map[string]any{"path": "b.go"}, messages.ToolResult{Output: "ok"}),
	}
	if ProgressEstimate(steps, 3) {
		t.Error("expected high error rate to report no progress")
	}
}

// TestProgressEstimate_HealthyProgress verifies varied, mostly-successful
// steps report progress.
func TestProgressEstimate_HealthyProgress(t *testing.T) {
	steps := []messages.AgentStep{
		step("read_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "package a"}),
		step("edit_file", map[string]any{"path": "a.go"}, messages.ToolResult{Output: "edited"}),
		step("run_command", map[string]any{"command": "go build"}, messages.ToolResult{Output: "built"}),
	}
	if !ProgressEstimate(steps, 3) {
		t.Error("expected healthy progress to be reported")
	}
}
