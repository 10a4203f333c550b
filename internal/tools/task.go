package tools

import (
	"context"
	"fmt"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

// TaskRunRequest is handed to the injected TaskRunFunc callback. Mirrors
// the teacher's DelegateRunRequest (internal/tools/delegate.go): a plain
// struct instead of importing the agent package, avoiding a tools<->agent
// import cycle.
type TaskRunRequest struct {
	Description   string
	Prompt        string
	MaxIterations int
}

// TaskRunResult is the sub-loop's outcome.
type TaskRunResult struct {
	Success       bool
	Output        string
	FilesExplored []string
	Iterations    int
}

// TaskRunFunc invokes the agent loop recursively in read-only plan mode.
// Injected from cmd/internal/agent wiring to avoid the import cycle, the
// same way the teacher injects AgentRunFunc into its delegate tool.
type TaskRunFunc func(ctx context.Context, req TaskRunRequest) (*TaskRunResult, error)

type TaskArgs struct {
	Description  string `json:"description" jsonschema:"required,description=Short label for this sub-task"`
	Prompt       string `json:"prompt" jsonschema:"required,description=Full instructions for the sub-agent"`
	Thoroughness string `json:"thoroughness,omitempty" jsonschema:"enum=quick,enum=medium,enum=thorough,description=Controls the sub-agent's iteration budget"`
}

// thoroughnessIterationCaps implements spec §4.4's task row: {quick:8,
// medium:15, thorough:25}.
var thoroughnessIterationCaps = map[string]int{
	"quick":    8,
	"medium":   15,
	"thorough": 25,
}

func NewTaskDefinition(run TaskRunFunc) Definition {
	return Definition{
		Name:            "task",
		Description:     "Delegate a bounded read-only exploration sub-task to a nested agent.",
		Risk:            safety.RiskSafe,
		ParameterSchema: schemaFor(TaskArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute: func(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
			description, _ := args["description"].(string)
			prompt, _ := args["prompt"].(string)
			if prompt == "" {
				return errResult("task", "prompt argument is required")
			}
			thoroughness, _ := args["thoroughness"].(string)
			cap, ok := thoroughnessIterationCaps[thoroughness]
			if !ok {
				cap = thoroughnessIterationCaps["medium"]
			}

			result, err := run(ctx, TaskRunRequest{
				Description:   description,
				Prompt:        prompt,
				MaxIterations: cap,
			})
			if err != nil {
				return errResult("task", fmt.Sprintf("sub-task failed: %v", err))
			}
			out := result.Output
			if len(result.FilesExplored) > 0 {
				out += "\n\nFiles explored:"
				for _, f := range result.FilesExplored {
					out += "\n- " + f
				}
			}
			return messages.ToolResult{Tool: "task", Output: out}
		},
	}
}
