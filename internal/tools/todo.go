package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
	"github.com/ollielabs/ollie/internal/store"
)

// TodoItemArgs is one entry of todo_write's todos[] argument.
type TodoItemArgs struct {
	ID       string `json:"id,omitempty" jsonschema:"description=Existing todo id to update, or empty for a new one"`
	Content  string `json:"content" jsonschema:"required,description=Task description"`
	Status   string `json:"status,omitempty" jsonschema:"enum=pending,enum=in_progress,enum=completed,enum=cancelled"`
	Priority int    `json:"priority,omitempty" jsonschema:"description=Higher runs first"`
}

type TodoWriteArgs struct {
	SessionID string         `json:"session_id" jsonschema:"required"`
	Todos     []TodoItemArgs `json:"todos" jsonschema:"required"`
}

type TodoReadArgs struct {
	SessionID string `json:"session_id" jsonschema:"required"`
}

// NewTodoWriteDefinition binds the todo_write tool to a concrete store.
func NewTodoWriteDefinition(st *store.Store) Definition {
	return Definition{
		Name:            "todo_write",
		Description:     "Replace the full todo list for a session.",
		Risk:            safety.RiskSafe,
		ParameterSchema: schemaFor(TodoWriteArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute: func(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
			sessionID, _ := args["session_id"].(string)
			if sessionID == "" {
				sessionID = tc.SessionID
			}
			rawTodos, _ := args["todos"].([]any)
			todos := make([]store.Todo, 0, len(rawTodos))
			for _, raw := range rawTodos {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				id, _ := m["id"].(string)
				if id == "" {
					id = uuid.NewString()
				}
				content, _ := m["content"].(string)
				status, _ := m["status"].(string)
				if status == "" {
					status = string(store.TodoPending)
				}
				todos = append(todos, store.Todo{
					ID:       id,
					Content:  content,
					Status:   store.TodoStatus(status),
					Priority: intArg(m, "priority", 0),
				})
			}
			if err := st.ReplaceTodos(sessionID, todos); err != nil {
				return errResult("todo_write", fmt.Sprintf("cannot store todos: %v", err))
			}
			return messages.ToolResult{Tool: "todo_write", Output: fmt.Sprintf("Stored %d todo(s).", len(todos))}
		},
	}
}

// NewTodoReadDefinition binds the todo_read tool to a concrete store.
func NewTodoReadDefinition(st *store.Store) Definition {
	return Definition{
		Name:            "todo_read",
		Description:     "Return the stored todo list for a session.",
		Risk:            safety.RiskSafe,
		ParameterSchema: schemaFor(TodoReadArgs{}),
		OutputSchema:    plainTextOutputSchema(),
		Execute: func(ctx context.Context, args map[string]any, tc Context) messages.ToolResult {
			sessionID, _ := args["session_id"].(string)
			if sessionID == "" {
				sessionID = tc.SessionID
			}
			todos, err := st.GetTodos(sessionID)
			if err != nil {
				return errResult("todo_read", fmt.Sprintf("cannot load todos: %v", err))
			}
			if len(todos) == 0 {
				return messages.ToolResult{Tool: "todo_read", Output: "(no todos)"}
			}
			var b strings.Builder
			for _, t := range todos {
				fmt.Fprintf(&b, "[%s] (%s, priority %d) %s\n", t.ID, t.Status, t.Priority, t.Content)
			}
			return messages.ToolResult{Tool: "todo_read", Output: b.String()}
		},
	}
}
