package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// schemaReflector derives each tool's parameter JSON Schema from its Go
// argument struct's jsonschema tags, per the DOMAIN STACK wiring in
// SPEC_FULL.md §3.
var schemaReflector = &jsonschema.Reflector{
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

// schemaFor reflects v's struct tags into a JSON-Schema-as-map document
// suitable for ToolDefinition.ParameterSchema and for handing to the
// model as a function-calling schema.
func schemaFor(v any) map[string]any {
	s := schemaReflector.Reflect(v)
	b, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// plainTextOutputSchema is the OutputSchema for every tool whose Output is
// human-readable prose rather than a structured encoding.
func plainTextOutputSchema() map[string]any {
	return map[string]any{"type": "string"}
}
