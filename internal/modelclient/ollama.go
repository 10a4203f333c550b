package modelclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ollielabs/ollie/internal/messages"
)

const defaultTimeout = 120 * time.Second

// Client is a raw net/http Ollama transport client. It deliberately avoids
// any LLM SDK dependency: Ollama's wire format is not covered by
// anthropic-sdk-go or go-openai, so the teacher's own raw-HTTP-plus-manual-
// decode style (see internal/providers/anthropic.go in the reference tree)
// is adapted here instead of pulling in a new dependency.
type Client struct {
	host   string
	apiKey string
	http   *http.Client
	log    *slog.Logger
}

func New(host, apiKey string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		host:   host,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 0},
		log:    log,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// showResponse mirrors the subset of /api/show this client reads.
type showResponse struct {
	ModelInfo map[string]json.RawMessage `json:"model_info"`
	Details   struct {
		Family string `json:"family"`
	} `json:"details"`
}

// ContextWindow fetches the model's context length via /api/show. On any
// failure the loop disables compaction but continues, per spec §4.1.
func (c *Client) ContextWindow(ctx context.Context, model string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/show", map[string]string{"model": model})
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ollama: /api/show returned status %d", resp.StatusCode)
	}
	var sr showResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return 0, err
	}
	key := sr.Details.Family + ".context_length"
	if raw, ok := sr.ModelInfo[key]; ok {
		var n int
		if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("ollama: context_length not found for family %q", sr.Details.Family)
}

type wireMessage struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	ToolCalls []wireToolCall      `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type chatWireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatWireChunk struct {
	Message wireMessage `json:"message"`
	Done    bool        `json:"done"`
}

func toWireMessages(msgs []messages.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{Function: wireFunctionCall{Name: tc.Name, Arguments: tc.Arguments}})
		}
		out = append(out, wm)
	}
	return out
}

func toWireTools(defs []ToolDefinition) []wireTool {
	out := make([]wireTool, 0, len(defs))
	for _, d := range defs {
		var wt wireTool
		wt.Type = "function"
		wt.Function.Name = d.Name
		wt.Function.Description = d.Description
		wt.Function.Parameters = d.Parameters
		out = append(out, wt)
	}
	return out
}

// ChatStream opens a streaming chat call against Ollama's /api/chat
// endpoint, decoding newline-delimited JSON chunks and forwarding them to
// the stream handler via onChunk. It respects ctx cancellation mid-stream.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, onChunk func(Chunk) error) error {
	wireReq := chatWireRequest{
		Model:    req.Model,
		Messages: toWireMessages(req.Messages),
		Tools:    toWireTools(req.Tools),
		Stream:   true,
		Options: map[string]any{
			"temperature": req.Options.Temperature,
		},
	}
	if req.Options.NumCtx > 0 {
		wireReq.Options["num_ctx"] = req.Options.NumCtx
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat", wireReq)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ollama: chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama: chat returned status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var wc chatWireChunk
		if err := json.Unmarshal(line, &wc); err != nil {
			c.log.Warn("ollama: failed to decode chat chunk", "error", err)
			continue
		}
		chunk := Chunk{Content: wc.Message.Content, Done: wc.Done}
		for _, tc := range wc.Message.ToolCalls {
			chunk.ToolCalls = append(chunk.ToolCalls, messages.ToolCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
		if wc.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ollama: stream read failed: %w", err)
	}
	return nil
}

// Chat performs a single non-streaming call, used by the context compactor
// for its summarization request.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	result := &ChatResult{}
	var content bytes.Buffer
	err := c.ChatStream(ctx, req, func(ch Chunk) error {
		content.WriteString(ch.Content)
		result.ToolCalls = append(result.ToolCalls, ch.ToolCalls...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Content = content.String()
	return result, nil
}
