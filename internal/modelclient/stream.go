package modelclient

import (
	"context"
	"errors"

	"github.com/ollielabs/ollie/internal/messages"
)

// ErrAborted is raised when the cancellation signal fires mid-stream. The
// agent loop translates this into the aborted result variant.
var ErrAborted = errors.New("model stream aborted")

// StreamCallbacks are the loop's live-forwarding hooks, invoked as chunks
// arrive rather than only once accumulation completes.
type StreamCallbacks struct {
	OnContentToken func(token string)
	OnToolCall     func(index int, call messages.ToolCall)
}

// Accumulate consumes a model stream, appending each non-empty content
// fragment and forwarding it live, and pushing each tool-call chunk onto
// the accumulator while forwarding it with its current index. It returns
// the fully accumulated result once a Done chunk arrives.
func Accumulate(ctx context.Context, client *Client, req ChatRequest, cb StreamCallbacks) (*ChatResult, error) {
	result := &ChatResult{}
	err := client.ChatStream(ctx, req, func(chunk Chunk) error {
		if ctx.Err() != nil {
			return ErrAborted
		}
		if chunk.Content != "" {
			result.Content += chunk.Content
			if cb.OnContentToken != nil {
				cb.OnContentToken(chunk.Content)
			}
		}
		for _, tc := range chunk.ToolCalls {
			idx := len(result.ToolCalls)
			result.ToolCalls = append(result.ToolCalls, tc)
			if cb.OnToolCall != nil {
				cb.OnToolCall(idx, tc)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAborted) || ctx.Err() != nil {
			return nil, ErrAborted
		}
		return nil, err
	}
	return result, nil
}
