package tools

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

// excludedDirs are always skipped by glob, per spec §4.4.
var excludedDirs = map[string]bool{
	"node_modules": true, ".git": true, "dist": true, "build": true, ".next": true, ".cache": true,
}

type GlobArgs struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Glob pattern to match files against, e.g. **/*.go"`
	Cwd     string `json:"cwd,omitempty" jsonschema:"description=Directory to root the match in, relative to the project root"`
}

func NewGlobDefinition() Definition {
	return Definition{
		Name:            "glob",
		Description:     "Find files matching a glob pattern.",
		Risk:            safety.RiskSafe,
		ParameterSchema: schemaFor(GlobArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute:         executeGlob,
	}
}

func executeGlob(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return errResult("glob", "pattern argument is required")
	}
	cwd, _ := args["cwd"].(string)
	if cwd == "" {
		cwd = "."
	}
	root, err := safety.ResolvePath(cwd, tc.ProjectRoot)
	if err != nil {
		return errResult("glob", fmt.Sprintf("cannot resolve cwd: %v", err))
	}

	var matches []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matched, _ := doubleStarMatch(pattern, rel); matched {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return errResult("glob", fmt.Sprintf("glob walk failed: %v", err))
	}
	sort.Strings(matches)
	return messages.ToolResult{Tool: "glob", Output: strings.Join(matches, "\n")}
}

// doubleStarMatch extends filepath.Match with "**" (match across path
// separators), since the stdlib glob semantics stop at the first "/".
func doubleStarMatch(pattern, name string) (bool, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Match(pattern, name)
	}
	parts := strings.Split(pattern, "**")
	if len(parts) != 2 {
		// fall back to a straightforward suffix check for patterns with
		// multiple "**" segments.
		suffix := strings.TrimPrefix(parts[len(parts)-1], "/")
		return strings.HasSuffix(name, suffix), nil
	}
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")
	if prefix != "" && !strings.HasPrefix(name, prefix) {
		return false, nil
	}
	rest := strings.TrimPrefix(name, prefix)
	rest = strings.TrimPrefix(rest, "/")
	if suffix == "" {
		return true, nil
	}
	return filepath.Match(suffix, filepath.Base(rest))
}
