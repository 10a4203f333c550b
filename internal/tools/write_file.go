package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"required,description=Path to write, relative to the project root"`
	Content string `json:"content" jsonschema:"required,description=Full file content to write"`
}

func NewWriteFileDefinition() Definition {
	return Definition{
		Name:            "write_file",
		Description:     "Create or overwrite a file with the given content.",
		Risk:            safety.RiskPrompt,
		ParameterSchema: schemaFor(WriteFileArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute:         executeWriteFile,
	}
}

func executeWriteFile(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return errResult("write_file", "path argument is required")
	}
	resolved, err := safety.ResolvePath(path, tc.ProjectRoot)
	if err != nil {
		return errResult("write_file", fmt.Sprintf("cannot resolve path: %v", err))
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return errResult("write_file", fmt.Sprintf("cannot create parent directories: %v", err))
	}
	if err := AtomicWrite(resolved, []byte(content), 0o644); err != nil {
		return errResult("write_file", fmt.Sprintf("cannot write file: %v", err))
	}
	return messages.ToolResult{Tool: "write_file", Output: fmt.Sprintf("Wrote %d bytes to %s", len(content), path)}
}

// AtomicWrite writes content to a temp file in target's directory, then
// renames it into place, so a crash or concurrent read never observes a
// half-written file. Adapted from lowkaihon-cli-coding-agent/tools/pathutil.go.
func AtomicWrite(target string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".ollie-write-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return err
	}
	tmpPath = ""
	return nil
}
