// Package messages defines the wire-and-storage data model shared by the
// agent loop, the safety gateway, and the session store: messages, tool
// calls, and tool results, plus deterministic conversion between the
// in-memory message buffer and the persisted part encoding.
package messages

import "encoding/json"

// Role tags the four message kinds the agent loop ever produces or consumes.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one model-requested tool invocation. Arguments is a
// structured mapping from string keys to primitive/JSON values, preserved
// verbatim end to end.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is a tagged union over {system, user, assistant, tool}. Only
// assistant messages carry ToolCalls; only tool messages carry ToolCallID
// (identifying which call this message answers) and ToolName.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolResult is the outcome of one tool invocation. Exactly one of Output
// (non-empty on success) or Error (a user-directed message) is meaningful.
type ToolResult struct {
	Tool   string `json:"tool"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (r ToolResult) IsError() bool { return r.Error != "" }

// Part is one element of a message's stored-form encoding. Exactly one of
// Text, Call, or Result is populated depending on Kind.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

type Part struct {
	Kind   PartKind    `json:"kind"`
	Text   string      `json:"content,omitempty"`
	Call   *ToolCall   `json:"call,omitempty"`
	Result *ToolResult `json:"result,omitempty"`
}

// StoredMessage is the persisted form: a role plus an ordered list of parts.
type StoredMessage struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// ToStored converts an in-memory message to its persisted part encoding.
func ToStored(m Message) StoredMessage {
	sm := StoredMessage{Role: m.Role}
	if m.Content != "" || (m.Role != RoleAssistant && len(m.ToolCalls) == 0) {
		sm.Parts = append(sm.Parts, Part{Kind: PartText, Text: m.Content})
	}
	for i := range m.ToolCalls {
		tc := m.ToolCalls[i]
		sm.Parts = append(sm.Parts, Part{Kind: PartToolCall, Call: &tc})
	}
	if m.Role == RoleTool {
		sm.Parts = append(sm.Parts, Part{Kind: PartToolResult, Result: &ToolResult{
			Tool:   m.ToolName,
			Output: m.Content,
		}})
	}
	return sm
}

// FromStored converts a persisted message back to its in-memory form. This
// is the inverse of ToStored: to_ollama(to_stored(msgs)) == msgs for any
// sequence the agent itself produced.
func FromStored(sm StoredMessage) Message {
	m := Message{Role: sm.Role}
	for _, p := range sm.Parts {
		switch p.Kind {
		case PartText:
			m.Content = p.Text
		case PartToolCall:
			if p.Call != nil {
				m.ToolCalls = append(m.ToolCalls, *p.Call)
			}
		case PartToolResult:
			if p.Result != nil {
				m.Content = p.Result.Output
				m.ToolName = p.Result.Tool
				if p.Result.Error != "" {
					m.Content = p.Result.Error
				}
			}
		}
	}
	return m
}

// MarshalParts and UnmarshalParts implement the JSON encoding used for the
// messages.parts column in the session store.
func MarshalParts(parts []Part) ([]byte, error) { return json.Marshal(parts) }

func UnmarshalParts(data []byte) ([]Part, error) {
	var parts []Part
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// AgentStep is one loop iteration's record, per spec §3. actions[i] pairs
// with observations[i] by index.
type AgentStep struct {
	Thought      string       `json:"thought"`
	Actions      []ToolCall   `json:"actions"`
	Observations []ToolResult `json:"observations"`
	DurationMS   int64        `json:"duration_ms"`
}

// CanonicalArgsJSON renders arguments deterministically (sorted keys) so
// that two logically-identical calls hash identically regardless of map
// iteration order. Used by the progress guard and the rate limiter's loop
// precursor check.
func CanonicalArgsJSON(args map[string]any) string {
	b, err := json.Marshal(canonicalize(args))
	if err != nil {
		return ""
	}
	return string(b)
}

func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = canonicalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = canonicalize(val)
		}
		return out
	default:
		return t
	}
}
