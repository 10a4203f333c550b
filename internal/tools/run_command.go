package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

const (
	defaultCommandTimeout = 30 * time.Second
	maxCommandTimeout     = 120 * time.Second
	maxOutputChars        = 10000
)

type RunCommandArgs struct {
	Command string `json:"command" jsonschema:"required,description=Shell command to run"`
	Cwd     string `json:"cwd,omitempty" jsonschema:"description=Working directory, relative to the project root"`
	Timeout int    `json:"timeout,omitempty" jsonschema:"description=Timeout in milliseconds (default 30000, max 120000)"`
}

type runCommandOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

func NewRunCommandDefinition() Definition {
	return Definition{
		Name:            "run_command",
		Description:     "Run a shell command and capture its output.",
		Risk:            safety.RiskPrompt,
		ParameterSchema: schemaFor(RunCommandArgs{}),
		OutputSchema:    schemaFor(runCommandOutput{}),
		Execute:         executeRunCommand,
	}
}

func executeRunCommand(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
	command, _ := args["command"].(string)
	if command == "" {
		return errResult("run_command", "command argument is required")
	}
	cwdArg, _ := args["cwd"].(string)
	timeoutMS := intArg(args, "timeout", int(defaultCommandTimeout/time.Millisecond))
	timeout := time.Duration(timeoutMS) * time.Millisecond
	if timeout <= 0 || timeout > maxCommandTimeout {
		timeout = defaultCommandTimeout
	}

	cwd := tc.ProjectRoot
	if cwdArg != "" {
		resolved, err := safety.ResolvePath(cwdArg, tc.ProjectRoot)
		if err != nil {
			return errResult("run_command", fmt.Sprintf("cannot resolve cwd: %v", err))
		}
		cwd = resolved
	}

	out, err := executeOnHost(ctx, command, cwd, timeout)
	if err != nil {
		return errResult("run_command", err.Error())
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return errResult("run_command", fmt.Sprintf("encode output: %v", err))
	}
	return messages.ToolResult{Tool: "run_command", Output: string(encoded)}
}

// executeOnHost spawns a shell, captures stdout/stderr separately, enforces
// timeout and cancellation, and truncates each stream to maxOutputChars.
// Adapted from the teacher's internal/tools/shell.go executeOnHost.
func executeOnHost(ctx context.Context, command, cwd string, timeout time.Duration) (runCommandOutput, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	cmd.Dir = cwd
	cmd.Env = safety.SanitizedEnviron()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if cctx.Err() == context.DeadlineExceeded {
		return runCommandOutput{}, fmt.Errorf("command timed out after %s", timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return runCommandOutput{}, fmt.Errorf("command cancelled")
	}

	exitCode := 0
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if runErr != nil {
		return runCommandOutput{}, fmt.Errorf("command failed to start: %w", runErr)
	}

	return runCommandOutput{
		Stdout:   truncateOutput(stdout.String()),
		Stderr:   truncateOutput(stderr.String()),
		ExitCode: exitCode,
	}, nil
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputChars {
		return s
	}
	return s[:maxOutputChars] + "...(truncated)"
}
