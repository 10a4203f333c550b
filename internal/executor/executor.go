// Package executor implements the two-lane tool dispatcher of spec §4.3:
// safe (risk=safe) calls run concurrently with settle-all semantics,
// unsafe calls run sequentially to support interactive confirmation, and
// results are re-sorted by original call index before being appended to
// the message buffer. Fan-out is grounded on the teacher's
// internal/agent/loop.go parallel-tool-call block, upgraded from its raw
// sync.WaitGroup+sort.Slice pattern to golang.org/x/sync/errgroup.
package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
	"github.com/ollielabs/ollie/internal/tools"
)

// toolResultPrefix reminds the model that the user cannot see raw tool
// output, per spec §4.3 step 3.
const toolResultPrefix = "[Tool output below is not visible to the user unless you relay it.]\n"

// Callbacks are the host-supplied suspension points for one run.
type Callbacks struct {
	// Confirm resolves a needs_confirmation decision. It must be safe to
	// call from multiple goroutines only in the sense that the unsafe
	// lane calls it sequentially; the safe lane never needs confirmation
	// since safe-risk tools are never confirmable.
	Confirm func(ctx context.Context, req *safety.ConfirmationRequest) safety.ConfirmationResponse
	// Blocked is notified whenever a call is denied or rejected.
	Blocked func(tool string, reason string)
}

// ProcessedCall is one call's full outcome, indexed by its position in the
// original calls[] slice.
type ProcessedCall struct {
	Index     int
	Call      messages.ToolCall
	Result    messages.ToolResult
	Executed  bool
	Confirmed bool
	Duration  time.Duration
}

// Result is process_tool_calls' aggregate return value, per spec §4.3.
type Result struct {
	Observations    []messages.ToolResult
	Messages        []messages.Message
	ExecutedCount   int
	TotalDurationMS int64
	ParallelCount   int
	SequentialCount int
	FailedCount     int
}

// ProcessToolCalls partitions calls into safe/unsafe lanes, runs the safe
// lane concurrently and the unsafe lane sequentially, then re-sorts by
// original index before building the aggregate result.
func ProcessToolCalls(
	ctx context.Context,
	calls []messages.ToolCall,
	mode safety.Mode,
	gw *safety.Gateway,
	registry *tools.Registry,
	tc tools.Context,
	cb Callbacks,
) Result {
	start := time.Now()
	processed := make([]ProcessedCall, len(calls))

	var safeIdx, unsafeIdx []int
	for i, call := range calls {
		def, ok := registry.Lookup(call.Name)
		if ok && def.Risk == safety.RiskSafe {
			safeIdx = append(safeIdx, i)
		} else {
			unsafeIdx = append(unsafeIdx, i)
		}
	}

	if len(safeIdx) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, i := range safeIdx {
			i := i
			g.Go(func() (err error) {
				defer func() {
					// Settle-all semantics: a panic in one task must not
					// cancel or crash its siblings.
					if r := recover(); r != nil {
						processed[i] = ProcessedCall{
							Index: i,
							Call:  calls[i],
							Result: messages.ToolResult{
								Tool:  calls[i].Name,
								Error: fmt.Sprintf("Execution failed: %v", r),
							},
						}
					}
				}()
				processed[i] = runOnePerCall(gctx, calls[i], i, mode, gw, registry, tc, cb)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, i := range unsafeIdx {
		if ctx.Err() != nil {
			processed[i] = ProcessedCall{
				Index: i, Call: calls[i],
				Result: messages.ToolResult{Tool: calls[i].Name, Error: "Execution cancelled"},
			}
			continue
		}
		processed[i] = runOnePerCall(ctx, calls[i], i, mode, gw, registry, tc, cb)
	}

	result := Result{
		ParallelCount:   len(safeIdx),
		SequentialCount: len(unsafeIdx),
	}
	for _, p := range processed {
		result.Observations = append(result.Observations, p.Result)
		result.Messages = append(result.Messages, messages.Message{
			Role:       messages.RoleTool,
			Content:    formatToolMessage(p.Result),
			ToolCallID: p.Call.ID,
			ToolName:   p.Call.Name,
		})
		if p.Executed {
			result.ExecutedCount++
		}
		if p.Result.IsError() {
			result.FailedCount++
		}
	}
	result.TotalDurationMS = time.Since(start).Milliseconds()
	return result
}

func formatToolMessage(r messages.ToolResult) string {
	if r.IsError() {
		return "Error: " + r.Error
	}
	return toolResultPrefix + r.Output
}

// runOnePerCall implements the per-call pipeline of spec §4.3: mode gate,
// safety check, execute, audit.
func runOnePerCall(
	ctx context.Context,
	call messages.ToolCall,
	index int,
	mode safety.Mode,
	gw *safety.Gateway,
	registry *tools.Registry,
	tc tools.Context,
	cb Callbacks,
) ProcessedCall {
	start := time.Now()

	// Step 1: mode gate.
	if !tools.AvailableInMode(call.Name, mode) {
		return ProcessedCall{
			Index: index, Call: call,
			Result: messages.ToolResult{Tool: call.Name, Error: "[TOOL NOT AVAILABLE] this tool cannot be used in the current mode"},
		}
	}

	def, ok := registry.Lookup(call.Name)
	if !ok {
		return ProcessedCall{
			Index: index, Call: call,
			Result: messages.ToolResult{Tool: call.Name, Error: fmt.Sprintf("[TOOL FAILED - OPERATION NOT PERFORMED] %s", tools.ErrUnknownTool(call.Name))},
		}
	}

	// Step 2: safety check.
	decision := gw.Check(call.Name, call.Arguments, def.Risk, mode)
	confirmed := false
	switch decision.Kind {
	case safety.DecisionDenied:
		gw.RecordDenied(call.Name, call.Arguments, decision.Reason)
		if cb.Blocked != nil {
			cb.Blocked(call.Name, decision.Reason)
		}
		return ProcessedCall{
			Index: index, Call: call,
			Result: messages.ToolResult{Tool: call.Name, Error: fmt.Sprintf("[TOOL FAILED - OPERATION NOT PERFORMED] %s. Tell the user this operation was blocked for safety reasons.", decision.Reason)},
		}
	case safety.DecisionNeedsConfirmation:
		if cb.Confirm == nil {
			gw.RecordRejected(call.Name, call.Arguments, "no confirmation handler available")
			return ProcessedCall{
				Index: index, Call: call,
				Result: messages.ToolResult{Tool: call.Name, Error: "[TOOL FAILED - OPERATION NOT PERFORMED] confirmation required but no handler is attached."},
			}
		}
		resp := cb.Confirm(ctx, decision.Request)
		allowed := gw.HandleConfirmationResponse(resp)
		if !allowed {
			gw.RecordRejected(call.Name, call.Arguments, "user denied confirmation")
			if cb.Blocked != nil {
				cb.Blocked(call.Name, "user denied confirmation")
			}
			return ProcessedCall{
				Index: index, Call: call,
				Result: messages.ToolResult{Tool: call.Name, Error: "[TOOL FAILED - OPERATION NOT PERFORMED] the user denied execution of this tool."},
			}
		}
		confirmed = true
	}

	// Step 3: execute (with input validation).
	if err := tools.ValidateArgs(def, call.Arguments); err != nil {
		return ProcessedCall{
			Index: index, Call: call,
			Result: messages.ToolResult{Tool: call.Name, Error: err.Error()},
		}
	}

	result := def.Execute(ctx, call.Arguments, tc)

	if !result.IsError() {
		if err := tools.ValidateOutput(def, result.Output); err != nil {
			result = messages.ToolResult{Tool: call.Name, Error: fmt.Sprintf("Invalid tool output: %v", err)}
		}
	}

	// Step 4: audit.
	duration := time.Since(start)
	gw.RecordExecution(call.Name, call.Arguments, result.Output, result.Error, duration, confirmed)

	return ProcessedCall{
		Index: index, Call: call, Result: result,
		Executed: true, Confirmed: confirmed, Duration: duration,
	}
}
