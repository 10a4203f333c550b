package safety

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ollielabs/ollie/internal/messages"
)

// sensitiveEnvPattern matches environment variable names that must be
// stripped before spawning a subprocess, per spec §4.2.
var sensitiveEnvPattern = regexp.MustCompile(`_KEY$|_SECRET$|_TOKEN$|_PASSWORD$|_CREDENTIALS$|^AWS_|^GITHUB_TOKEN$|^GH_TOKEN$|^OPENAI_API_KEY$|^ANTHROPIC_API_KEY$|^DATABASE_URL$`)

// Mode is the plan/build tool-availability gate from spec §4.1/§4.3.
type Mode string

const (
	ModePlan  Mode = "plan"
	ModeBuild Mode = "build"
)

// Gateway is a per-session policy engine: the sole owner of its audit
// buffer and rate-limit counters, per spec §3/§5.
type Gateway struct {
	cfg       SafetyConfig
	sessionID string
	log       *slog.Logger
	audit     *Log
	rate      *rateState

	mu            sync.Mutex
	allowAlways   map[string]bool
	denyAlways    map[string]bool
}

func NewGateway(cfg SafetyConfig, sessionID string, log *slog.Logger) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}
	auditPath := cfg.AuditLogPath
	if auditPath != "" && !filepath.IsAbs(auditPath) {
		auditPath = filepath.Join(cfg.ProjectRoot, auditPath)
	}
	al, err := OpenLog(auditPath, cfg.EnableAuditLog)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Gateway{
		cfg:         cfg,
		sessionID:   sessionID,
		log:         log,
		audit:       al,
		rate:        newRateState(),
		allowAlways: make(map[string]bool),
		denyAlways:  make(map[string]bool),
	}, nil
}

func (g *Gateway) ResetTurn() { g.rate.resetTurn() }

func (g *Gateway) Flush() { g.audit.Flush() }

// effectiveRisk applies autonomy-regime and per-tool-override resolution.
func (g *Gateway) requiresConfirmation(tool string, risk Risk) (confirm bool, denied bool) {
	if ov, ok := g.cfg.ToolOverrides[tool]; ok {
		if ov.AlwaysDeny {
			return false, true
		}
		if ov.AlwaysAllow {
			return false, false
		}
		if ov.AlwaysConfirm {
			return true, false
		}
	}
	switch g.cfg.AutonomyLevel {
	case AutonomyParanoid:
		return risk != RiskSafe || true, false // confirm everything except truly safe is still confirmed in paranoid
	case AutonomyAutonomous:
		return false, false
	case AutonomyBalanced:
		return risk == RiskHigh || risk == RiskPrompt || tool == "run_command", false
	case AutonomyCautious:
		fallthrough
	default:
		return risk != RiskSafe, false
	}
}

// Check runs the full pipeline described in spec §4.2, short-circuiting on
// the first decision.
func (g *Gateway) Check(tool string, args map[string]any, risk Risk, mode Mode) Decision {
	// Step 1: rate limit (incl. loop precursor dedup).
	sig := tool + "|" + canonicalArgsHash(args)
	if deny, reason := g.rate.checkAndRecord(sig, g.cfg.MaxToolCallsPerTurn, g.cfg.MaxToolCallsPerSession); deny {
		return Decision{Kind: DecisionDenied, Reason: reason}
	}

	// Step 2: deny override.
	g.mu.Lock()
	denyAlways := g.denyAlways[tool]
	allowAlways := g.allowAlways[tool]
	g.mu.Unlock()
	if ov, ok := g.cfg.ToolOverrides[tool]; ok && ov.AlwaysDeny {
		return Decision{Kind: DecisionDenied, Reason: "tool is always-denied by configuration"}
	}
	if denyAlways {
		return Decision{Kind: DecisionDenied, Reason: "user previously chose deny-always for this tool"}
	}

	// Step 3: path validation.
	if dec, checked := g.checkPaths(tool, args); checked {
		return dec
	}

	// Step 4: command validation (run_command only).
	if tool == "run_command" {
		if dec, ok := g.checkCommand(args, mode); ok {
			return dec
		}
	}

	// Step 5: write-overwrite guard.
	if tool == "write_file" {
		if dec, ok := g.checkWriteOverwrite(args); ok {
			return dec
		}
	}

	// Step 6: confirmation decision.
	if allowAlways {
		return Decision{Kind: DecisionAllowed}
	}
	confirm, denied := g.requiresConfirmation(tool, risk)
	if denied {
		return Decision{Kind: DecisionDenied, Reason: "tool is always-denied by configuration"}
	}
	if !confirm {
		return Decision{Kind: DecisionAllowed}
	}
	return Decision{Kind: DecisionNeedsConfirmation, Request: g.buildConfirmationRequest(tool, args, risk)}
}

func (g *Gateway) checkPaths(tool string, args map[string]any) (Decision, bool) {
	var raw string
	var ok bool
	for _, key := range []string{"path", "cwd"} {
		if v, present := args[key]; present {
			if s, isStr := v.(string); isStr && s != "" {
				raw = s
				ok = true
				break
			}
		}
	}
	if !ok {
		return Decision{}, false
	}

	resolved, err := ResolvePath(raw, g.cfg.ProjectRoot)
	if err != nil {
		return Decision{Kind: DecisionDenied, Reason: "path traversal: " + err.Error()}, true
	}
	rel, err := filepath.Rel(g.cfg.ProjectRoot, resolved)
	if err != nil {
		rel = resolved
	}

	if len(g.cfg.AllowedPaths) > 0 {
		matched := false
		for _, p := range g.cfg.AllowedPaths {
			if MatchesPathPattern(p, rel) {
				matched = true
				break
			}
		}
		if !matched {
			return Decision{Kind: DecisionDenied, Reason: "path not in allowed_paths"}, true
		}
	}
	for _, p := range g.cfg.DeniedPaths {
		if MatchesPathPattern(p, rel) {
			return Decision{Kind: DecisionDenied, Reason: "path matches denied_paths pattern: " + p}, true
		}
	}
	return Decision{}, false
}

func (g *Gateway) checkCommand(args map[string]any, mode Mode) (Decision, bool) {
	cmd, _ := args["command"].(string)
	if cmd == "" {
		return Decision{}, false
	}

	if mode == ModePlan {
		trimmed := trimSegment(cmd)
		for _, prefix := range readOnlyPlanPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				return Decision{Kind: DecisionAllowed}, true
			}
		}
		for _, tok := range mutatingTokens {
			if strings.Contains(cmd, tok) {
				return Decision{Kind: DecisionDenied, Reason: "mutating command is not permitted in plan mode"}, true
			}
		}
		return Decision{Kind: DecisionNeedsConfirmation, Request: g.buildConfirmationRequest("run_command", args, RiskPrompt)}, true
	}

	segments := splitCommandSegments(cmd)
	for _, seg := range segments {
		trimmedSeg := trimSegment(seg)
		for _, p := range dangerousCommandPatterns {
			if p.MatchString(trimmedSeg) {
				return Decision{Kind: DecisionDenied, Reason: "command matches a dangerous pattern"}, true
			}
		}
		for _, denied := range g.cfg.DeniedCommands {
			if denied != "" && strings.Contains(trimmedSeg, denied) {
				return Decision{Kind: DecisionDenied, Reason: "command matches configured denied_commands entry"}, true
			}
		}
		if !g.cfg.AllowNetworkCommands {
			fields := strings.Fields(trimmedSeg)
			if len(fields) > 0 {
				for _, np := range networkCommandPrefixes {
					if fields[0] == np {
						return Decision{Kind: DecisionDenied, Reason: "network command is not permitted"}, true
					}
				}
			}
		}
	}
	return Decision{}, false
}

func (g *Gateway) checkWriteOverwrite(args map[string]any) (Decision, bool) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return Decision{}, false
	}
	resolved, err := ResolvePath(path, g.cfg.ProjectRoot)
	if err != nil {
		return Decision{}, false // path step already caught traversal
	}
	existing, err := os.ReadFile(resolved)
	if err != nil {
		return Decision{}, false // file does not exist yet: not an overwrite
	}

	if len(strings.TrimSpace(content)) < 10 {
		return Decision{Kind: DecisionDenied, Reason: "refusing to overwrite existing file with empty/trivial content"}, true
	}

	oldLen := len(existing)
	newLen := len(content)
	if oldLen > 0 {
		delta := float64(newLen-oldLen) / float64(oldLen)
		if delta < -0.5 || delta > 0.5 {
			req := g.buildConfirmationRequest("write_file", args, RiskPrompt)
			req.Preview = &Preview{Kind: PreviewDiff, Before: string(existing), After: content, Path: path}
			return Decision{Kind: DecisionNeedsConfirmation, Request: req}, true
		}
	}
	return Decision{}, false
}

func (g *Gateway) buildConfirmationRequest(tool string, args map[string]any, risk Risk) *ConfirmationRequest {
	req := &ConfirmationRequest{
		ID:               uuid.NewString(),
		Tool:             tool,
		Args:             args,
		Risk:             risk,
		HumanDescription: humanDescription(tool, args),
	}
	switch tool {
	case "run_command":
		cmd, _ := args["command"].(string)
		cwd, _ := args["cwd"].(string)
		req.Preview = &Preview{Kind: PreviewCommand, Command: cmd, Cwd: cwd}
	case "write_file":
		content, _ := args["content"].(string)
		truncated := false
		if len(content) > 2000 {
			content = content[:2000]
			truncated = true
		}
		req.Preview = &Preview{Kind: PreviewContent, Text: content, Truncated: truncated}
	case "edit_file":
		oldStr, _ := args["oldString"].(string)
		newStr, _ := args["newString"].(string)
		path, _ := args["path"].(string)
		req.Preview = &Preview{Kind: PreviewDiff, Before: oldStr, After: newStr, Path: path}
	}
	return req
}

func humanDescription(tool string, args map[string]any) string {
	switch tool {
	case "run_command":
		cmd, _ := args["command"].(string)
		return fmt.Sprintf("Run shell command: %s", cmd)
	case "write_file":
		path, _ := args["path"].(string)
		return fmt.Sprintf("Write file: %s", path)
	case "edit_file":
		path, _ := args["path"].(string)
		return fmt.Sprintf("Edit file: %s", path)
	default:
		return fmt.Sprintf("Execute tool: %s", tool)
	}
}

// HandleConfirmationResponse applies the operator's answer, installing a
// session-scoped exemption for allow_always/deny_always.
func (g *Gateway) HandleConfirmationResponse(resp ConfirmationResponse) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch resp.Kind {
	case RespondAllow:
		return true
	case RespondAllowAlways:
		if resp.ForTool != "" {
			g.allowAlways[resp.ForTool] = true
		}
		return true
	case RespondDeny:
		return false
	case RespondDenyAlways:
		if resp.ForTool != "" {
			g.denyAlways[resp.ForTool] = true
		}
		return false
	default:
		return false
	}
}

// RecordExecution, RecordDenied, RecordRejected append audit entries.
func (g *Gateway) RecordExecution(tool string, args map[string]any, output, errMsg string, duration time.Duration, confirmed bool) {
	result := AuditAllowed
	if confirmed {
		result = AuditConfirmed
	}
	g.audit.Append(AuditEntry{
		Timestamp:  time.Now(),
		SessionID:  g.sessionID,
		Tool:       tool,
		Args:       args,
		Result:     result,
		DurationMS: duration.Milliseconds(),
		Output:     output,
		Err:        errMsg,
	})
}

func (g *Gateway) RecordDenied(tool string, args map[string]any, reason string) {
	g.audit.Append(AuditEntry{
		Timestamp: time.Now(),
		SessionID: g.sessionID,
		Tool:      tool,
		Args:      args,
		Result:    AuditDenied,
		Reason:    reason,
	})
}

func (g *Gateway) RecordRejected(tool string, args map[string]any, reason string) {
	g.audit.Append(AuditEntry{
		Timestamp: time.Now(),
		SessionID: g.sessionID,
		Tool:      tool,
		Args:      args,
		Result:    AuditRejected,
		Reason:    reason,
	})
}

// SanitizedEnviron returns the current process environment with any
// variable matching a sensitive-name pattern stripped, for subprocess
// execution by run_command.
func SanitizedEnviron() []string {
	base := os.Environ()
	out := make([]string, 0, len(base))
	for _, kv := range base {
		name := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			name = kv[:idx]
		}
		if sensitiveEnvPattern.MatchString(name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func canonicalArgsHash(args map[string]any) string {
	return messages.CanonicalArgsJSON(args)
}
