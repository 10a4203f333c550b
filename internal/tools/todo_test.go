package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/ollielabs/ollie/internal/store"
)

func testStoreForTodos(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if _, err := st.GetOrCreate("sess-1", "/proj", "proj", "build", "m", "h"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return st
}

// TestTodoWrite_StoresNewTodos verifies todo_write persists a fresh list
// and reports how many were stored.
func TestTodoWrite_StoresNewTodos(t *testing.T) {
	st := testStoreForTodos(t)
	def := NewTodoWriteDefinition(st)
	res := def.Execute(context.Background(), map[string]any{
		"session_id": "sess-1",
		"todos": []any{
			map[string]any{"content": "write the report", "status": "pending", "priority": float64(2)},
		},
	}, testContext(t.TempDir()))
	if res.IsError() {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if !strings.Contains(res.Output, "1 todo") {
		t.Errorf("expected count in output, got %q", res.Output)
	}

	todos, err := st.GetTodos("sess-1")
	if err != nil {
		t.Fatalf("GetTodos: %v", err)
	}
	if len(todos) != 1 || todos[0].Content != "write the report" {
		t.Errorf("unexpected stored todos: %+v", todos)
	}
}

// TestTodoWrite_DefaultsSessionIDFromContext verifies an empty
// session_id argument falls back to the tool context's SessionID.
func TestTodoWrite_DefaultsSessionIDFromContext(t *testing.T) {
	st := testStoreForTodos(t)
	def := NewTodoWriteDefinition(st)
	tc := Context{SessionID: "sess-1", ProjectRoot: t.TempDir()}
	res := def.Execute(context.Background(), map[string]any{
		"todos": []any{map[string]any{"content": "x"}},
	}, tc)
	if res.IsError() {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	todos, err := st.GetTodos("sess-1")
	if err != nil || len(todos) != 1 {
		t.Fatalf("expected 1 todo stored under context session, got %+v, err=%v", todos, err)
	}
}

// TestTodoRead_EmptyListReportsPlaceholder verifies an empty todo list
// reports a human-readable placeholder instead of blank output.
func TestTodoRead_EmptyListReportsPlaceholder(t *testing.T) {
	st := testStoreForTodos(t)
	def := NewTodoReadDefinition(st)
	res := def.Execute(context.Background(), map[string]any{"session_id": "sess-1"}, testContext(t.TempDir()))
	if res.IsError() {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if !strings.Contains(res.Output, "no todos") {
		t.Errorf("expected placeholder for empty list, got %q", res.Output)
	}
}

// TestTodoRead_FormatsStoredTodos verifies todo_read renders each stored
// todo's id, status, priority, and content.
func TestTodoRead_FormatsStoredTodos(t *testing.T) {
	st := testStoreForTodos(t)
	writeDef := NewTodoWriteDefinition(st)
	writeDef.Execute(context.Background(), map[string]any{
		"session_id": "sess-1",
		"todos": []any{
			map[string]any{"id": "t1", "content": "ship feature", "status": "in_progress", "priority": float64(3)},
		},
	}, testContext(t.TempDir()))

	readDef := NewTodoReadDefinition(st)
	res := readDef.Execute(context.Background(), map[string]any{"session_id": "sess-1"}, testContext(t.TempDir()))
	if res.IsError() {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if !strings.Contains(res.Output, "ship feature") || !strings.Contains(res.Output, "in_progress") {
		t.Errorf("expected formatted todo line, got %q", res.Output)
	}
}
