package tools

import (
	"fmt"

	"github.com/ollielabs/ollie/internal/store"
)

// Registry holds the fixed set of built-in tools, looked up by name by
// the executor. Definitions are immutable and shared by reference, per
// spec §3's ownership note.
type Registry struct {
	byName map[string]Definition
	order  []string
}

// NewRegistry builds the full ten-tool registry of spec §4.4. taskRun is
// the callback the agent package supplies for the task tool's recursive
// sub-loop invocation.
func NewRegistry(st *store.Store, taskRun TaskRunFunc) *Registry {
	defs := []Definition{
		NewReadFileDefinition(),
		NewListDirDefinition(),
		NewGlobDefinition(),
		NewGrepDefinition(),
		NewWriteFileDefinition(),
		NewEditFileDefinition(),
		NewRunCommandDefinition(),
		NewTodoWriteDefinition(st),
		NewTodoReadDefinition(st),
		NewTaskDefinition(taskRun),
	}
	r := &Registry{byName: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns every definition in fixed registration order, so the tool
// list presented to the model is stable across calls.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// ErrUnknownTool is returned by Lookup's callers when the model names a
// tool the registry does not define.
func ErrUnknownTool(name string) error {
	return fmt.Errorf("unknown tool: %s", name)
}
