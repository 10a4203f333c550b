package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ollielabs/ollie/internal/messages"
)

// Store is the sqlite-backed session/message/todo persistence layer.
// Its method set mirrors the teacher's internal/store/session_store.go
// SessionStore interface, trimmed to the fields spec §6's schema names
// (no multi-tenant/channel/memory-flush/spawn bookkeeping).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path in WAL
// mode and applies pending migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: serialize writers, per spec §5 ownership model
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SchemaVersion reports the currently applied migration version.
func (s *Store) SchemaVersion() (uint, error) { return Version(s.db) }

// MigrateDown rolls back steps migrations (1 if steps <= 0).
func (s *Store) MigrateDown(steps int) error { return Down(s.db, steps) }

// MigrateForce sets the migration version without running any migration,
// for recovering a database left in a dirty state.
func (s *Store) MigrateForce(version int) error { return Force(s.db, version) }

// GetOrCreate returns the existing session by id, or creates a new row.
func (s *Store) GetOrCreate(id, projectPath, projectName, mode, model, host string) (*Session, error) {
	sess, err := s.GetSession(id)
	if err == nil {
		return sess, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	now := time.Now().UTC()
	sess = &Session{
		ID: id, ProjectPath: projectPath, ProjectName: projectName,
		Mode: mode, Model: model, Host: host, CreatedAt: now, UpdatedAt: now,
	}
	_, err = s.db.Exec(`INSERT INTO sessions(id, project_path, project_name, title, mode, model, host, message_count, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?, ?, 0, ?, ?)`,
		sess.ID, sess.ProjectPath, sess.ProjectName, sess.Mode, sess.Model, sess.Host, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`SELECT id, project_path, project_name, title, mode, model, host, message_count, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.ProjectPath, &sess.ProjectName, &sess.Title, &sess.Mode, &sess.Model, &sess.Host,
		&sess.MessageCount, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

// MostRecentForProject returns the most recently updated session for a
// project path, for --continue.
func (s *Store) MostRecentForProject(projectPath string) (*Session, error) {
	row := s.db.QueryRow(`SELECT id, project_path, project_name, title, mode, model, host, message_count, created_at, updated_at
		FROM sessions WHERE project_path = ? ORDER BY updated_at DESC LIMIT 1`, projectPath)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.ProjectPath, &sess.ProjectName, &sess.Title, &sess.Mode, &sess.Model, &sess.Host,
		&sess.MessageCount, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

// AddMessage appends one message and bumps the session's counters.
func (s *Store) AddMessage(sessionID string, m messages.Message) error {
	parts, err := messages.MarshalParts(messages.ToStored(m).Parts)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`INSERT INTO messages(id, session_id, role, parts, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), sessionID, string(m.Role), string(parts), now); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.Exec(`UPDATE sessions SET message_count = message_count + 1, updated_at = ? WHERE id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("update session counters: %w", err)
	}
	return tx.Commit()
}

// GetHistory returns every message for a session in insertion order.
func (s *Store) GetHistory(sessionID string) ([]messages.Message, error) {
	rows, err := s.db.Query(`SELECT role, parts FROM messages WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messages.Message
	for rows.Next() {
		var role, partsJSON string
		if err := rows.Scan(&role, &partsJSON); err != nil {
			return nil, err
		}
		parts, err := messages.UnmarshalParts([]byte(partsJSON))
		if err != nil {
			return nil, err
		}
		out = append(out, messages.FromStored(messages.StoredMessage{Role: messages.Role(role), Parts: parts}))
	}
	return out, rows.Err()
}

// ReplaceTodos implements todo_write's replace-all semantics: delete every
// existing todo for the session, insert the new list, preserving
// created_at for ids that already existed.
func (s *Store) ReplaceTodos(sessionID string, todos []Todo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing := make(map[string]time.Time)
	rows, err := tx.Query(`SELECT id, created_at FROM todos WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id string
		var createdAt time.Time
		if err := rows.Scan(&id, &createdAt); err != nil {
			rows.Close()
			return err
		}
		existing[id] = createdAt
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM todos WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear todos: %w", err)
	}

	now := time.Now().UTC()
	for _, t := range todos {
		createdAt := now
		if prior, ok := existing[t.ID]; ok {
			createdAt = prior
		}
		if _, err := tx.Exec(`INSERT INTO todos(id, session_id, content, status, priority, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, sessionID, t.Content, string(t.Status), t.Priority, createdAt, now); err != nil {
			return fmt.Errorf("insert todo: %w", err)
		}
	}
	return tx.Commit()
}

// GetTodos returns the stored list for a session.
func (s *Store) GetTodos(sessionID string) ([]Todo, error) {
	rows, err := s.db.Query(`SELECT id, content, status, priority, created_at, updated_at FROM todos
		WHERE session_id = ? ORDER BY priority DESC, created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Todo
	for rows.Next() {
		t := Todo{SessionID: sessionID}
		if err := rows.Scan(&t.ID, &t.Content, &t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
