// Package guard implements the progress-guard heuristics of spec §4.6:
// consecutive-call, not-found, doom-loop, and progress-estimate
// detectors, applied in the fixed order consecutive -> not_found -> doom.
// This is new code authored directly against spec §4.6's rules; no
// example repo exposes a standalone detector to ground it on (the
// teacher's loop.go references an internal toolLoopState whose detection
// logic was not reachable in the surveyed source).
package guard

import (
	"strings"

	"github.com/ollielabs/ollie/internal/messages"
)

const defaultThreshold = 3

// exploreTools are exempt from the doom-loop's ABAB-oscillation check,
// since alternating between them is normal exploration, per spec §4.6.
var exploreTools = map[string]bool{
	"grep": true, "glob": true, "read_file": true, "list_dir": true,
}

// action is one flattened (name, canonical-args) signature.
type action struct {
	tool      string
	signature string
}

func flatten(steps []messages.AgentStep) []action {
	var out []action
	for _, s := range steps {
		for _, a := range s.Actions {
			out = append(out, action{tool: a.Name, signature: messages.CanonicalArgsJSON(a.Arguments)})
		}
	}
	return out
}

// ConsecutiveResult reports a consecutive-loop hit.
type ConsecutiveResult struct {
	Hit      bool
	Tool     string
	Attempts int
}

// Consecutive fires when the same (name, canonical-args) signature
// repeats >= threshold times in a row, with no different signature
// between them. Flattening every step's actions into one sequence (rather
// than only comparing within a step) matches the teacher's "read->edit->
// read on the same file must not trigger" design rationale: a differing
// signature anywhere in the run resets the streak.
func Consecutive(steps []messages.AgentStep, threshold int) ConsecutiveResult {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	flat := flatten(steps)
	if len(flat) == 0 {
		return ConsecutiveResult{}
	}
	last := flat[len(flat)-1]
	count := 0
	for i := len(flat) - 1; i >= 0; i-- {
		if flat[i] == last {
			count++
		} else {
			break
		}
	}
	if count >= threshold {
		return ConsecutiveResult{Hit: true, Tool: last.tool, Attempts: count}
	}
	return ConsecutiveResult{}
}

// notFoundTokens mark an observation as "nothing found" for the purposes
// of the not-found detector.
var notFoundTokens = []string{
	"no matches", "enoent", "does not exist", "not found", "no such file",
}

var searchTools = map[string]bool{"grep": true, "glob": true, "read_file": true, "list_dir": true}

// NotFoundResult names the terms the diagnostic message should surface.
type NotFoundResult struct {
	Hit      bool
	Patterns []string
	Paths    []string
}

// NotFound looks at the last max(threshold+2, 5) steps and counts
// search-tool observations that are empty or carry a not-found token. If
// the count reaches threshold, it fires and extracts the union of
// pattern/path arguments for the diagnostic message.
func NotFound(steps []messages.AgentStep, threshold int) NotFoundResult {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	window := threshold + 2
	if window < 5 {
		window = 5
	}
	recent := lastSteps(steps, window)

	count := 0
	patternSet := map[string]bool{}
	pathSet := map[string]bool{}
	for _, s := range recent {
		for i, a := range s.Actions {
			if !searchTools[a.Name] {
				continue
			}
			if i >= len(s.Observations) {
				continue
			}
			obs := s.Observations[i]
			if isEmptyOrNotFound(obs) {
				count++
				if p, ok := a.Arguments["pattern"].(string); ok && p != "" {
					patternSet[p] = true
				}
				if p, ok := a.Arguments["path"].(string); ok && p != "" {
					pathSet[p] = true
				}
			}
		}
	}

	if count < threshold {
		return NotFoundResult{}
	}
	return NotFoundResult{Hit: true, Patterns: setToSlice(patternSet), Paths: setToSlice(pathSet)}
}

func isEmptyOrNotFound(obs messages.ToolResult) bool {
	text := strings.ToLower(obs.Output + obs.Error)
	if strings.TrimSpace(obs.Output) == "" && obs.Error == "" {
		return true
	}
	for _, tok := range notFoundTokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

// DoomResult reports a doom-loop hit and its cause.
type DoomResult struct {
	Hit    bool
	Reason string
}

// Doom fires over the last threshold+1 steps when any of: (a) the
// consecutive detector also fires, (b) the same tool errors >= threshold
// times, or (c) a 2-periodic ABAB oscillation occurs where A != B, unless
// {A,B} are both exploration tools.
func Doom(steps []messages.AgentStep, threshold int) DoomResult {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	window := lastSteps(steps, threshold+1)

	if c := Consecutive(window, threshold); c.Hit {
		return DoomResult{Hit: true, Reason: "identical calls repeated"}
	}

	errCounts := map[string]int{}
	for _, s := range window {
		for i, a := range s.Actions {
			if i >= len(s.Observations) {
				continue
			}
			if s.Observations[i].IsError() {
				errCounts[a.Name]++
			}
		}
	}
	for tool, n := range errCounts {
		if n >= threshold {
			return DoomResult{Hit: true, Reason: "tool " + tool + " failed repeatedly"}
		}
	}

	flat := flatten(window)
	if len(flat) >= 4 {
		n := len(flat)
		a, b := flat[n-1], flat[n-2]
		if a != b && isABAB(flat) {
			if !(exploreTools[a.tool] && exploreTools[b.tool]) {
				return DoomResult{Hit: true, Reason: "oscillating between " + a.tool + " and " + b.tool}
			}
		}
	}
	return DoomResult{}
}

func isABAB(flat []action) bool {
	n := len(flat)
	if n < 4 {
		return false
	}
	a, b := flat[n-1], flat[n-2]
	return flat[n-3] == a && flat[n-4] == b
}

// ProgressEstimate returns false (no progress) over the last window steps
// when either at most one distinct tool was used and all results collapse
// to the same 100-char prefix, or the error rate exceeds 50%.
func ProgressEstimate(steps []messages.AgentStep, window int) bool {
	if window <= 0 {
		window = defaultThreshold
	}
	recent := lastSteps(steps, window)
	if len(recent) == 0 {
		return true
	}

	distinctTools := map[string]bool{}
	prefixes := map[string]bool{}
	total, errs := 0, 0
	for _, s := range recent {
		for i, a := range s.Actions {
			distinctTools[a.Name] = true
			total++
			if i < len(s.Observations) {
				obs := s.Observations[i]
				if obs.IsError() {
					errs++
				}
				text := obs.Output
				if len(text) > 100 {
					text = text[:100]
				}
				prefixes[text] = true
			}
		}
	}
	if total == 0 {
		return true
	}
	if len(distinctTools) <= 1 && len(prefixes) <= 1 {
		return false
	}
	if float64(errs)/float64(total) > 0.5 {
		return false
	}
	return true
}

func lastSteps(steps []messages.AgentStep, n int) []messages.AgentStep {
	if len(steps) <= n {
		return steps
	}
	return steps[len(steps)-n:]
}

func setToSlice(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
