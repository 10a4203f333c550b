package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

const (
	maxLineChars    = 2000
	defaultReadLimit = 2000
)

// ReadFileArgs is the read_file tool's parameter struct; invopop/jsonschema
// derives ParameterSchema from these tags.
type ReadFileArgs struct {
	Path   string `json:"path" jsonschema:"required,description=Path to the file to read, relative to the project root"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=1-based line number to start reading from"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of lines to return (default 2000)"`
}

func NewReadFileDefinition() Definition {
	return Definition{
		Name:            "read_file",
		Description:     "Read a text file and return its content with line numbers.",
		Risk:            safety.RiskSafe,
		ParameterSchema: schemaFor(ReadFileArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute:         executeReadFile,
	}
}

func executeReadFile(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
	path, _ := args["path"].(string)
	if path == "" {
		return errResult("read_file", "path argument is required")
	}
	offset := intArg(args, "offset", 0)
	limit := intArg(args, "limit", defaultReadLimit)
	if limit <= 0 {
		limit = defaultReadLimit
	}

	resolved, err := safety.ResolvePath(path, tc.ProjectRoot)
	if err != nil {
		return errResult("read_file", fmt.Sprintf("cannot resolve path: %v", err))
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return errResult("read_file", fmt.Sprintf("cannot read file: %v", err))
	}

	lines := strings.Split(string(data), "\n")
	total := len(lines)
	start := offset
	if start < 1 {
		start = 1
	}
	end := start - 1 + limit
	if end > total {
		end = total
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<file path=%q>\n", path)
	for i := start; i <= end && i <= total; i++ {
		line := lines[i-1]
		if len(line) > maxLineChars {
			line = line[:maxLineChars] + "...(truncated)"
		}
		fmt.Fprintf(&b, "%6d|%s\n", i, line)
	}
	b.WriteString("</file>")
	if end < total {
		fmt.Fprintf(&b, "\n(File has %d total lines, showing %d-%d)", total, start, end)
	}

	return messages.ToolResult{Tool: "read_file", Output: b.String()}
}

func errResult(tool, msg string) messages.ToolResult {
	return messages.ToolResult{Tool: tool, Error: msg}
}

func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
