package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/safety"
	"github.com/ollielabs/ollie/internal/store"
)

// TestNewLogger_VerboseFlagEnablesDebugLevel verifies --verbose lowers
// the log level to debug even without OLLY_DEBUG set.
func TestNewLogger_VerboseFlagEnablesDebugLevel(t *testing.T) {
	t.Setenv("OLLY_DEBUG", "")
	verboseFlag = true
	t.Cleanup(func() { verboseFlag = false })

	log := newLogger()
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected --verbose to enable debug-level logging")
	}
}

// TestNewLogger_DefaultLevelIsInfo verifies debug logging stays off
// without --verbose or OLLY_DEBUG set.
func TestNewLogger_DefaultLevelIsInfo(t *testing.T) {
	t.Setenv("OLLY_DEBUG", "")
	verboseFlag = false

	log := newLogger()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug logging disabled by default")
	}
}

// TestTaggedWriter_PrefixesEveryWrite verifies each Write call is
// prefixed with the fixed tag, not merely the first line.
func TestTaggedWriter_PrefixesEveryWrite(t *testing.T) {
	var buf bytes.Buffer
	w := &taggedWriter{w: &buf, tag: "[agent]"}
	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := buf.String()
	want := "[agent] first\n[agent] second\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func openTestCmdStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestResolveSession_ExplicitSessionIDNotFoundErrors verifies an
// explicit --session id that does not exist surfaces a clear error
// rather than silently creating a new session.
func TestResolveSession_ExplicitSessionIDNotFoundErrors(t *testing.T) {
	st := openTestCmdStore(t)
	sessionFlag = "does-not-exist"
	t.Cleanup(func() { sessionFlag = "" })

	_, err := resolveSession(st, "/proj", "proj", "m", "h", safety.ModeBuild)
	if err == nil {
		t.Fatal("expected an error for an unknown explicit session id")
	}
}

// TestResolveSession_ExplicitSessionIDFound verifies an existing session
// id is returned as-is without creating a duplicate.
func TestResolveSession_ExplicitSessionIDFound(t *testing.T) {
	st := openTestCmdStore(t)
	created, err := st.GetOrCreate("known-session", "/proj", "proj", "build", "m", "h")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	sessionFlag = "known-session"
	t.Cleanup(func() { sessionFlag = "" })

	got, err := resolveSession(st, "/proj", "proj", "m", "h", safety.ModeBuild)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("expected session %q, got %q", created.ID, got.ID)
	}
}

// TestResolveSession_ContinueFlagPicksMostRecent verifies --continue
// resolves to the most recently updated session for the project.
func TestResolveSession_ContinueFlagPicksMostRecent(t *testing.T) {
	st := openTestCmdStore(t)
	if _, err := st.GetOrCreate("older", "/proj", "proj", "build", "m", "h"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := st.GetOrCreate("newer", "/proj", "proj", "build", "m", "h"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := st.AddMessage("newer", messages.Message{Role: messages.RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("bump newer: %v", err)
	}

	continueFlag = true
	t.Cleanup(func() { continueFlag = false })

	got, err := resolveSession(st, "/proj", "proj", "m", "h", safety.ModeBuild)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "newer" {
		t.Errorf("expected the most recently updated session 'newer', got %q", got.ID)
	}
}

// TestResolveSession_NoFlagsCreatesNewSession verifies the default path
// (no --session, no --continue) always creates a fresh session.
func TestResolveSession_NoFlagsCreatesNewSession(t *testing.T) {
	st := openTestCmdStore(t)
	got, err := resolveSession(st, "/proj", "proj", "m", "h", safety.ModeBuild)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID == "" {
		t.Error("expected a freshly generated session id")
	}
	if _, err := st.GetSession(got.ID); errors.Is(err, sql.ErrNoRows) {
		t.Error("expected the new session to actually be persisted")
	}
}
