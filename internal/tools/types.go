// Package tools implements the ten built-in tools of spec §4.4 and the
// registry that exposes their schemas to the model and looks them up by
// name for the executor. Path/command logic is adapted from the teacher's
// internal/tools/filesystem.go and internal/tools/shell.go; atomic writes
// follow the lowkaihon-cli-coding-agent secondary reference.
package tools

import (
	"context"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

// Context is the fixed execution context handed to every tool's Execute
// function, per spec §3's ToolDefinition contract.
type Context struct {
	SessionID   string
	ProjectRoot string
	Model       string
	Host        string
}

// ExecuteFunc performs one tool invocation. ctx carries the cancellation
// signal; cooperating tools (notably run_command) must observe it.
type ExecuteFunc func(ctx context.Context, args map[string]any, tc Context) messages.ToolResult

// Definition is the immutable, shared-by-reference description of one
// tool: its schemas, risk class, and execute function.
type Definition struct {
	Name            string
	Description     string
	Risk            safety.Risk
	ParameterSchema map[string]any
	OutputSchema    map[string]any
	Execute         ExecuteFunc
}

// planModeAllowlist is the fixed set of tools available in plan mode,
// per spec §4.3 step 1.
var planModeAllowlist = map[string]bool{
	"read_file": true,
	"list_dir":  true,
	"glob":      true,
	"grep":      true,
	"todo_write": true,
	"todo_read": true,
	"task":      true,
}

// AvailableInMode reports whether tool is callable under mode.
func AvailableInMode(tool string, mode safety.Mode) bool {
	if mode == safety.ModeBuild {
		return true
	}
	return planModeAllowlist[tool]
}
