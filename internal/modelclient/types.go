package modelclient

import "github.com/ollielabs/ollie/internal/messages"

// ToolDefinition is the wire-format description of one callable tool,
// built from internal/tools.Definition by the agent loop before each
// streaming call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatOptions mirrors the sampling knobs the agent loop sets per call.
type ChatOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// ChatRequest is one streamed chat call.
type ChatRequest struct {
	Model   string              `json:"model"`
	Host    string              `json:"-"`
	APIKey  string              `json:"-"`
	Messages []messages.Message `json:"-"`
	Tools   []ToolDefinition    `json:"-"`
	Options ChatOptions         `json:"-"`
}

// Chunk is one fragment of a streamed chat response, per spec §4.5.
type Chunk struct {
	Content   string
	ToolCalls []messages.ToolCall
	Done      bool
}

// ChatResult is the stream handler's accumulated output.
type ChatResult struct {
	Content   string
	ToolCalls []messages.ToolCall
}
