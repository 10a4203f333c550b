package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
)

const maxGrepLineChars = 200

type GrepArgs struct {
	Pattern     string `json:"pattern" jsonschema:"required,description=Regular expression to search for (case-insensitive)"`
	FilePattern string `json:"filePattern,omitempty" jsonschema:"description=Glob restricting which files are searched"`
	Cwd         string `json:"cwd,omitempty" jsonschema:"description=Directory to search in, relative to the project root"`
}

func NewGrepDefinition() Definition {
	return Definition{
		Name:            "grep",
		Description:     "Search file contents for a regular expression.",
		Risk:            safety.RiskSafe,
		ParameterSchema: schemaFor(GrepArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute:         executeGrep,
	}
}

type grepMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

func executeGrep(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return errResult("grep", "pattern argument is required")
	}
	filePattern, _ := args["filePattern"].(string)
	cwd, _ := args["cwd"].(string)
	if cwd == "" {
		cwd = "."
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return errResult("grep", fmt.Sprintf("invalid pattern: %v", err))
	}

	root, err := safety.ResolvePath(cwd, tc.ProjectRoot)
	if err != nil {
		return errResult("grep", fmt.Sprintf("cannot resolve cwd: %v", err))
	}

	var matches []grepMatch
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		if filePattern != "" {
			if ok, _ := doubleStarMatch(filePattern, rel); !ok {
				return nil
			}
		}
		f, err := os.Open(p)
		if err != nil {
			return nil // skip unreadable files
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if re.MatchString(line) {
				trimmed := strings.TrimSpace(line)
				if len(trimmed) > maxGrepLineChars {
					trimmed = trimmed[:maxGrepLineChars] + "..."
				}
				matches = append(matches, grepMatch{File: rel, Line: lineNo, Content: trimmed})
			}
		}
		return nil
	})

	if len(matches) == 0 {
		return messages.ToolResult{Tool: "grep", Output: "No matches found."}
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d: %s\n", m.File, m.Line, m.Content)
	}
	return messages.ToolResult{Tool: "grep", Output: b.String()}
}
