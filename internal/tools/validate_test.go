package tools

import "testing"

// TestValidateArgs_MissingRequiredFieldFails verifies a required field
// absent from args is rejected with an "Invalid arguments" error.
func TestValidateArgs_MissingRequiredFieldFails(t *testing.T) {
	def := NewReadFileDefinition()
	err := ValidateArgs(def, map[string]any{})
	if err == nil {
		t.Fatal("expected validation error for missing required path")
	}
}

// TestValidateArgs_ValidArgsPass verifies a well-formed argument set
// passes validation for read_file.
func TestValidateArgs_ValidArgsPass(t *testing.T) {
	def := NewReadFileDefinition()
	if err := ValidateArgs(def, map[string]any{"path": "main.go"}); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

// TestValidateArgs_OptionalFieldsOmittedPass verifies offset/limit are
// genuinely optional for read_file.
func TestValidateArgs_OptionalFieldsOmittedPass(t *testing.T) {
	def := NewReadFileDefinition()
	if err := ValidateArgs(def, map[string]any{"path": "main.go", "offset": 5}); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

// TestValidateArgs_SchemaCachedAcrossCalls verifies repeated validation
// calls for the same tool name reuse the compiled schema without erroring
// (exercises the cache path, not just first-compile).
func TestValidateArgs_SchemaCachedAcrossCalls(t *testing.T) {
	def := NewWriteFileDefinition()
	args := map[string]any{"path": "a.go", "content": "package a\n"}
	for i := 0; i < 3; i++ {
		if err := ValidateArgs(def, args); err != nil {
			t.Fatalf("call %d: unexpected validation error: %v", i, err)
		}
	}
}

// TestValidateOutput_PlainTextToolAcceptsAnyString verifies a prose tool's
// string output schema accepts ordinary output unconditionally.
func TestValidateOutput_PlainTextToolAcceptsAnyString(t *testing.T) {
	def := NewReadFileDefinition()
	if err := ValidateOutput(def, "     1\tpackage main\n"); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

// TestValidateOutput_RunCommandAcceptsWellFormedJSON verifies run_command's
// structured output schema accepts its own encoded shape.
func TestValidateOutput_RunCommandAcceptsWellFormedJSON(t *testing.T) {
	def := NewRunCommandDefinition()
	output := `{"stdout":"ok\n","stderr":"","exit_code":0}`
	if err := ValidateOutput(def, output); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

// TestValidateOutput_RunCommandRejectsMissingField verifies a malformed
// structured output (missing a required field) fails validation.
func TestValidateOutput_RunCommandRejectsMissingField(t *testing.T) {
	def := NewRunCommandDefinition()
	output := `{"stdout":"ok"}`
	if err := ValidateOutput(def, output); err == nil {
		t.Fatal("expected validation error for output missing stderr/exit_code")
	}
}

// TestValidateOutput_NoSchemaIsNoOp verifies a Definition with no
// OutputSchema never blocks a result.
func TestValidateOutput_NoSchemaIsNoOp(t *testing.T) {
	def := Definition{Name: "custom"}
	if err := ValidateOutput(def, "anything at all"); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}
