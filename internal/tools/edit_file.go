package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

type EditFileArgs struct {
	Path      string `json:"path" jsonschema:"required,description=Path to edit, relative to the project root"`
	OldString string `json:"oldString" jsonschema:"required,description=Exact text to replace; must occur exactly once in the file"`
	NewString string `json:"newString" jsonschema:"required,description=Replacement text"`
}

func NewEditFileDefinition() Definition {
	return Definition{
		Name:            "edit_file",
		Description:     "Replace one exact occurrence of a string in a file.",
		Risk:            safety.RiskMedium,
		ParameterSchema: schemaFor(EditFileArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute:         executeEditFile,
	}
}

func executeEditFile(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
	path, _ := args["path"].(string)
	oldStr, _ := args["oldString"].(string)
	newStr, _ := args["newString"].(string)
	if path == "" || oldStr == "" {
		return errResult("edit_file", "path and oldString arguments are required")
	}

	resolved, err := safety.ResolvePath(path, tc.ProjectRoot)
	if err != nil {
		return errResult("edit_file", fmt.Sprintf("cannot resolve path: %v", err))
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return errResult("edit_file", fmt.Sprintf("cannot read file: %v", err))
	}
	content := string(data)

	count := strings.Count(content, oldStr)
	if count == 0 {
		return errResult("edit_file", "String not found in file")
	}
	if count > 1 {
		return errResult("edit_file", fmt.Sprintf("String found %d times", count))
	}

	updated := strings.Replace(content, oldStr, newStr, 1)
	if err := AtomicWrite(resolved, []byte(updated), 0o644); err != nil {
		return errResult("edit_file", fmt.Sprintf("cannot write file: %v", err))
	}
	return messages.ToolResult{Tool: "edit_file", Output: fmt.Sprintf("Edited %s", path)}
}
