package agent

import (
	"context"
	"fmt"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

const (
	defaultMaxIterations     = 15
	defaultStreamTemperature = 0.2
	defaultCompactionRatio   = 0.80
)

// RunRequest is the full argument set to one Loop.Run call, per spec §4.1.
type RunRequest struct {
	Model          string
	Host           string
	APIKey         string
	UserMessage    string
	History        []messages.Message
	SessionID      string
	Mode           safety.Mode
	MaxIterations  int // 0 = defaultMaxIterations
	SystemPrompt   string

	OnContentToken func(token string)
	OnToolCall     func(index int, call messages.ToolCall)
	OnToolResult   func(index int, result messages.ToolResult)
	OnStepComplete func(step messages.AgentStep)

	Confirm func(ctx context.Context, req *safety.ConfirmationRequest) safety.ConfirmationResponse
	Blocked func(tool string, reason string)
}

// RunResult is the success outcome of a run.
type RunResult struct {
	FinalAnswer   string
	Steps         []messages.AgentStep
	Messages      []messages.Message
	Iterations    int
	ContextUsage  float64 // 0 if the context window could not be determined
}

// RunError is the sealed union of failure variants a run can terminate
// with. Exactly one concrete type below implements it.
type RunError interface {
	error
	isRunError()
}

type AbortedError struct{}

func (AbortedError) Error() string { return "run was cancelled" }
func (AbortedError) isRunError()   {}

type ModelError struct{ Msg string }

func (e ModelError) Error() string { return fmt.Sprintf("model error: %s", e.Msg) }
func (ModelError) isRunError()     {}

type LoopDetectedError struct {
	Action   string
	Attempts int
}

func (e LoopDetectedError) Error() string {
	return fmt.Sprintf("loop detected: %s repeated %d times", e.Action, e.Attempts)
}
func (LoopDetectedError) isRunError() {}

type MaxIterationsError struct {
	N           int
	LastThought string
}

func (e MaxIterationsError) Error() string {
	return fmt.Sprintf("reached max iterations (%d)", e.N)
}
func (MaxIterationsError) isRunError() {}

// ToolError is reserved for executor-internal faults distinct from routine
// per-tool failures, which never propagate as a RunError.
type ToolError struct {
	Tool string
	Msg  string
}

func (e ToolError) Error() string { return fmt.Sprintf("tool %s: %s", e.Tool, e.Msg) }
func (ToolError) isRunError()     {}
