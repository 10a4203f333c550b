// Package safety implements the policy engine that mediates every
// side-effecting tool call: autonomy regimes, path confinement, command
// filtering, environment sanitization, rate limiting, and an append-only
// redacted audit trail. Grounded on the path-resolution and
// command-denylist logic of the teacher's internal/tools/filesystem.go and
// internal/tools/shell.go.
package safety

import (
	"time"
)

// Risk is a per-tool tag governing parallelism eligibility and the default
// confirmation requirement.
type Risk string

const (
	RiskSafe   Risk = "safe"
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
	RiskPrompt Risk = "prompt"
)

// Autonomy is the per-session regime governing how aggressively the
// gateway auto-allows calls.
type Autonomy string

const (
	AutonomyParanoid   Autonomy = "paranoid"
	AutonomyCautious   Autonomy = "cautious" // default
	AutonomyBalanced   Autonomy = "balanced"
	AutonomyAutonomous Autonomy = "autonomous"
)

// ToolOverride lets an operator pin a tool's behavior regardless of the
// session's autonomy regime.
type ToolOverride struct {
	AlwaysAllow   bool `json:"always_allow,omitempty"`
	AlwaysConfirm bool `json:"always_confirm,omitempty"`
	AlwaysDeny    bool `json:"always_deny,omitempty"`
}

// SafetyConfig configures one gateway instance, normally one per session.
type SafetyConfig struct {
	ProjectRoot             string                  `json:"project_root"`
	AutonomyLevel           Autonomy                `json:"autonomy_level"`
	MaxFileSize             int64                   `json:"max_file_size"`
	MaxToolCallsPerTurn     int                     `json:"max_tool_calls_per_turn"`
	MaxToolCallsPerSession  int                     `json:"max_tool_calls_per_session"`
	ToolOverrides           map[string]ToolOverride `json:"tool_overrides,omitempty"`
	AllowedPaths            []string                `json:"allowed_paths,omitempty"`
	DeniedPaths             []string                `json:"denied_paths,omitempty"`
	AllowedCommands         []string                `json:"allowed_commands,omitempty"`
	DeniedCommands          []string                `json:"denied_commands,omitempty"`
	AllowNetworkCommands    bool                    `json:"allow_network_commands"`
	AuditLogPath            string                  `json:"audit_log_path"`
	EnableAuditLog          bool                    `json:"enable_audit_log"`
}

// DefaultSafetyConfig returns the cautious, single-user default.
func DefaultSafetyConfig(projectRoot string) SafetyConfig {
	return SafetyConfig{
		ProjectRoot:            projectRoot,
		AutonomyLevel:          AutonomyCautious,
		MaxFileSize:            5 * 1024 * 1024,
		MaxToolCallsPerTurn:    30,
		MaxToolCallsPerSession: 500,
		DeniedPaths:            []string{".env", ".env.*", "*.pem", "*.key", "id_rsa*"},
		AllowNetworkCommands:   false,
		AuditLogPath:           ".ollie/audit.jsonl",
		EnableAuditLog:         true,
	}
}

// Preview is the structured hint shown to the operator for a confirmation
// request.
type PreviewKind string

const (
	PreviewCommand PreviewKind = "command"
	PreviewContent PreviewKind = "content"
	PreviewDiff    PreviewKind = "diff"
)

type Preview struct {
	Kind      PreviewKind `json:"kind"`
	Command   string      `json:"command,omitempty"`
	Cwd       string      `json:"cwd,omitempty"`
	Text      string      `json:"text,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
	Before    string      `json:"before,omitempty"`
	After     string      `json:"after,omitempty"`
	Path      string      `json:"path,omitempty"`
}

// ConfirmationRequest is the artifact handed to the confirmation callback.
type ConfirmationRequest struct {
	ID                string         `json:"id"`
	Tool              string         `json:"tool"`
	Args              map[string]any `json:"args"`
	Risk              Risk           `json:"risk"`
	HumanDescription  string         `json:"human_description"`
	Preview           *Preview       `json:"preview,omitempty"`
}

// ConfirmationResponseKind is the operator's answer to a ConfirmationRequest.
type ConfirmationResponseKind string

const (
	RespondAllow       ConfirmationResponseKind = "allow"
	RespondAllowAlways ConfirmationResponseKind = "allow_always"
	RespondDeny        ConfirmationResponseKind = "deny"
	RespondDenyAlways  ConfirmationResponseKind = "deny_always"
)

type ConfirmationResponse struct {
	Kind    ConfirmationResponseKind
	ForTool string // scoping target for allow_always/deny_always
}

// Decision is the gateway's verdict on one call.
type DecisionKind string

const (
	DecisionAllowed            DecisionKind = "allowed"
	DecisionDenied             DecisionKind = "denied"
	DecisionNeedsConfirmation  DecisionKind = "needs_confirmation"
)

type Decision struct {
	Kind    DecisionKind
	Reason  string
	Request *ConfirmationRequest
}

// AuditResult is the recorded outcome of one decided call.
type AuditResult string

const (
	AuditAllowed   AuditResult = "allowed"
	AuditDenied    AuditResult = "denied"
	AuditConfirmed AuditResult = "confirmed"
	AuditRejected  AuditResult = "rejected"
)

// AuditEntry is one append-only, redacted audit log line.
type AuditEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"session_id"`
	Tool       string         `json:"tool"`
	Args       map[string]any `json:"args"`
	Result     AuditResult    `json:"result"`
	Reason     string         `json:"reason,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Output     string         `json:"output,omitempty"`
	Err        string         `json:"error,omitempty"`
}
