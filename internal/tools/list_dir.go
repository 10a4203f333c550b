package tools

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

type ListDirArgs struct {
	Path string `json:"path" jsonschema:"required,description=Directory to list, relative to the project root"`
}

func NewListDirDefinition() Definition {
	return Definition{
		Name:            "list_dir",
		Description:     "List entry names in a directory.",
		Risk:            safety.RiskSafe,
		ParameterSchema: schemaFor(ListDirArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute:         executeListDir,
	}
}

func executeListDir(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	resolved, err := safety.ResolvePath(path, tc.ProjectRoot)
	if err != nil {
		return errResult("list_dir", fmt.Sprintf("cannot resolve path: %v", err))
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return errResult("list_dir", fmt.Sprintf("cannot list directory: %v", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for _, n := range names {
		out += n + "\n"
	}
	return messages.ToolResult{Tool: "list_dir", Output: out}
}
