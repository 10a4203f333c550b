// Package store implements the SQLite-backed session/message/todo
// persistence layer described in SPEC_FULL.md §6, adapted from the
// interface shape of the teacher's internal/store/session_store.go.
package store

import "time"

// TodoStatus enumerates spec §3's Todo lifecycle.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoCancelled  TodoStatus = "cancelled"
)

// Todo mirrors spec §3 exactly.
type Todo struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Content   string     `json:"content"`
	Status    TodoStatus `json:"status"`
	Priority  int        `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Session is one row of the sessions table (spec §6).
type Session struct {
	ID           string
	ProjectPath  string
	ProjectName  string
	Title        string
	Mode         string
	Model        string
	Host         string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
