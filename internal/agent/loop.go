// Package agent implements the Think-Act-Observe control loop of spec
// §4.1: one streaming model call per iteration, tool dispatch through the
// two-lane executor, progress-guard checks, and threshold-triggered
// compaction. Grounded on the teacher's internal/agent/loop.go iteration
// shape (accumulate-stream -> dispatch-tools -> record-step -> repeat),
// generalized from goclaw's multi-provider/multi-channel loop down to a
// single local Ollama model and a single terminal session.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ollielabs/ollie/internal/compact"
	"github.com/ollielabs/ollie/internal/executor"
	"github.com/ollielabs/ollie/internal/guard"
	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/modelclient"
	"github.com/ollielabs/ollie/internal/safety"
	"github.com/ollielabs/ollie/internal/store"
	"github.com/ollielabs/ollie/internal/tools"
)

const buildSystemPrompt = `You are Ollie, a local coding agent operating directly on the user's project through a fixed set of tools. Work iteratively: inspect before you change, make the smallest edit that satisfies the request, and verify your own work when you can. Tell the user plainly when an operation was blocked for safety reasons; never claim to have done something you did not do.`

const planSystemPrompt = `You are Ollie, operating in read-only plan mode. You may explore the project with read_file, list_dir, glob, grep, and task, and you may record a plan with todo_write/todo_read, but you cannot write files or run commands. Describe what you would do; ask the user to switch to build mode to execute it.`

const taskExploreSystemPrompt = `You are a focused sub-agent exploring a codebase to answer one question. You have read-only tools. Be efficient: read only what you need, then report a concise, directly useful answer.`

// Loop runs one session's agent iterations. Per-call state lives in the
// RunRequest/RunResult pair; the fields below are the session-scoped
// collaborators a run needs (model client, store, gateway, tool registry)
// plus the handful of values the task tool's recursive callback needs to
// re-enter Run with the same session identity.
type Loop struct {
	client   *modelclient.Client
	store    *store.Store
	gateway  *safety.Gateway
	registry *tools.Registry
	log      *slog.Logger

	sessionID   string
	projectRoot string

	guardThreshold int
	compactCfg     compact.Config

	// currentModel/currentHost track the most recent Run call's target, so
	// a nested task-tool invocation talks to the same model host.
	currentModel string
	currentHost  string
}

// New builds a Loop for one session. The registry is constructed here so
// the task tool's recursive callback can close over the Loop itself.
func New(client *modelclient.Client, st *store.Store, gw *safety.Gateway, log *slog.Logger, sessionID, projectRoot string) *Loop {
	if log == nil {
		log = slog.Default()
	}
	l := &Loop{
		client:         client,
		store:          st,
		gateway:        gw,
		log:            log,
		sessionID:      sessionID,
		projectRoot:    projectRoot,
		guardThreshold: 3,
		compactCfg:     compact.DefaultConfig(),
	}
	l.registry = tools.NewRegistry(st, l.runTask)
	return l
}

// Run executes one Think-Act-Observe run to completion, per spec §4.1.
// It never panics or returns a bare error: every failure path is reported
// through the RunError return.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*RunResult, RunError) {
	defer l.gateway.Flush()
	l.currentModel = req.Model
	l.currentHost = req.Host

	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		if req.Mode == safety.ModePlan {
			systemPrompt = planSystemPrompt
		} else {
			systemPrompt = buildSystemPrompt
		}
	}

	contextWindow, err := l.client.ContextWindow(ctx, req.Model)
	if err != nil {
		l.log.Debug("context window lookup failed, disabling compaction", "error", err)
		contextWindow = 0
	}

	buffer := make([]messages.Message, 0, len(req.History)+2)
	buffer = append(buffer, messages.Message{Role: messages.RoleSystem, Content: systemPrompt})
	buffer = append(buffer, req.History...)
	buffer = append(buffer, messages.Message{Role: messages.RoleUser, Content: req.UserMessage})

	toolDefs := l.modelToolDefs(req.Mode)

	var steps []messages.AgentStep
	lastThought := ""

	for i := 0; i < maxIter; i++ {
		if ctx.Err() != nil {
			return nil, AbortedError{}
		}

		l.gateway.ResetTurn()

		chatReq := modelclient.ChatRequest{
			Model:    req.Model,
			Host:     req.Host,
			APIKey:   req.APIKey,
			Messages: buffer,
			Tools:    toolDefs,
			Options:  modelclient.ChatOptions{Temperature: defaultStreamTemperature, NumCtx: contextWindow},
		}

		result, streamErr := modelclient.Accumulate(ctx, l.client, chatReq, modelclient.StreamCallbacks{
			OnContentToken: req.OnContentToken,
			OnToolCall:     req.OnToolCall,
		})
		if streamErr != nil {
			if errors.Is(streamErr, modelclient.ErrAborted) {
				return nil, AbortedError{}
			}
			return nil, ModelError{Msg: streamErr.Error()}
		}

		if result.Content == "" && len(result.ToolCalls) == 0 {
			buffer = append(buffer, messages.Message{Role: messages.RoleUser, Content: "please answer or use a tool"})
			continue
		}

		if len(result.ToolCalls) == 0 {
			finalText := SanitizeAssistantContent(result.Content)
			buffer = append(buffer, messages.Message{Role: messages.RoleAssistant, Content: finalText})
			return &RunResult{
				FinalAnswer:  finalText,
				Steps:        steps,
				Messages:     buffer,
				Iterations:   i + 1,
				ContextUsage: contextUsage(buffer, contextWindow),
			}, nil
		}

		lastThought = result.Content
		buffer = append(buffer, messages.Message{
			Role:      messages.RoleAssistant,
			Content:   SanitizeAssistantContent(result.Content),
			ToolCalls: result.ToolCalls,
		})

		execResult := executor.ProcessToolCalls(ctx, result.ToolCalls, req.Mode, l.gateway, l.registry, tools.Context{
			SessionID:   req.SessionID,
			ProjectRoot: l.projectRoot,
			Model:       req.Model,
			Host:        req.Host,
		}, executor.Callbacks{Confirm: req.Confirm, Blocked: req.Blocked})

		buffer = append(buffer, execResult.Messages...)
		if req.OnToolResult != nil {
			for idx, obs := range execResult.Observations {
				req.OnToolResult(idx, obs)
			}
		}

		step := messages.AgentStep{
			Thought:      result.Content,
			Actions:      result.ToolCalls,
			Observations: execResult.Observations,
			DurationMS:   execResult.TotalDurationMS,
		}
		steps = append(steps, step)
		if req.OnStepComplete != nil {
			req.OnStepComplete(step)
		}

		if c := guard.Consecutive(steps, l.guardThreshold); c.Hit {
			return nil, LoopDetectedError{Action: c.Tool, Attempts: c.Attempts}
		}

		suppressDoom := false
		if nf := guard.NotFound(steps, l.guardThreshold); nf.Hit {
			suppressDoom = true
			buffer = append(buffer, messages.Message{
				Role: messages.RoleSystem,
				Content: fmt.Sprintf(
					"The items you're searching for (%s) likely do not exist in this project. Consider a different approach or tell the user.",
					strings.Join(append(append([]string{}, nf.Patterns...), nf.Paths...), ", "),
				),
			})
		}
		if !suppressDoom {
			if d := guard.Doom(steps, l.guardThreshold); d.Hit {
				return nil, LoopDetectedError{Action: d.Reason, Attempts: l.guardThreshold + 1}
			}
		}

		if contextWindow > 0 {
			usage := contextUsage(buffer, contextWindow)
			if level := compact.SelectLevel(usage, l.compactCfg); level != compact.LevelNone {
				compacted, cErr := compact.Compact(ctx, l.client, req.Model, buffer, level, l.compactCfg)
				if cErr != nil {
					l.log.Warn("compaction failed, continuing uncompacted", "error", cErr)
				} else {
					buffer = compacted
				}
			}
		}
	}

	return nil, MaxIterationsError{N: maxIter, LastThought: lastThought}
}

func (l *Loop) modelToolDefs(mode safety.Mode) []modelclient.ToolDefinition {
	var defs []modelclient.ToolDefinition
	for _, d := range l.registry.All() {
		if !tools.AvailableInMode(d.Name, mode) {
			continue
		}
		defs = append(defs, modelclient.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.ParameterSchema,
		})
	}
	return defs
}

// runTask implements the task tool's recursive sub-agent invocation: a
// nested Run call in read-only plan mode using the "explore" system
// prompt, with files read tracked from the sub-run's own step record.
func (l *Loop) runTask(ctx context.Context, req tools.TaskRunRequest) (*tools.TaskRunResult, error) {
	subResult, runErr := l.Run(ctx, RunRequest{
		Model:         l.currentModel,
		Host:          l.currentHost,
		UserMessage:   req.Prompt,
		SessionID:     l.sessionID,
		Mode:          safety.ModePlan,
		MaxIterations: req.MaxIterations,
		SystemPrompt:  taskExploreSystemPrompt,
	})
	if runErr != nil {
		return &tools.TaskRunResult{Success: false, Output: runErr.Error()}, nil
	}

	var filesExplored []string
	seen := map[string]bool{}
	for _, step := range subResult.Steps {
		for _, a := range step.Actions {
			if a.Name != "read_file" {
				continue
			}
			if p, ok := a.Arguments["path"].(string); ok && p != "" && !seen[p] {
				seen[p] = true
				filesExplored = append(filesExplored, p)
			}
		}
	}

	return &tools.TaskRunResult{
		Success:       true,
		Output:        subResult.FinalAnswer,
		FilesExplored: filesExplored,
		Iterations:    subResult.Iterations,
	}, nil
}

// estimateTokens is a conservative, provider-agnostic token estimate
// (~4 bytes/token for English-dominant source and prose) used only to
// drive the compaction threshold check, not billing or correctness.
func estimateTokens(m messages.Message) int {
	n := len(m.Content) / 4
	for _, tc := range m.ToolCalls {
		n += len(tc.Name) + len(messages.CanonicalArgsJSON(tc.Arguments))/4
	}
	return n
}

func contextUsage(buffer []messages.Message, contextWindow int) float64 {
	if contextWindow <= 0 {
		return 0
	}
	total := 0
	for _, m := range buffer {
		total += estimateTokens(m)
	}
	return float64(total) / float64(contextWindow)
}
