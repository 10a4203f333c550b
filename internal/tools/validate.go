package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	compileMu    sync.Mutex
	compiledCache = make(map[string]*jsonschema.Schema)
)

// ValidateArgs validates args against def's parameter schema, compiling
// (and caching) the schema on first use. Per spec §4.3 step 3, a failure
// here returns a structured "Invalid arguments" error without running the
// tool.
func ValidateArgs(def Definition, args map[string]any) error {
	schema, err := compiledSchema(def.Name, def.ParameterSchema)
	if err != nil {
		// A malformed schema should not block execution; log-worthy but
		// not a correctness requirement of spec §4.3.
		return nil
	}
	if err := schema.ValidateInterface(args); err != nil {
		return fmt.Errorf("Invalid arguments: %w", err)
	}
	return nil
}

// ValidateOutput validates a tool's successful Output string against def's
// output schema, after def.Execute has already run. Per spec §4.3 step 3,
// this is the output-side counterpart to ValidateArgs. Output is JSON for
// structured tools (run_command) and plain prose for the rest; only a
// schema that actually declares an object/array shape gets the output
// JSON-decoded before validation; a string-typed schema validates the raw
// text as-is, since prose that happens to parse as a JSON number or bool
// must not be judged against the wrong type.
func ValidateOutput(def Definition, output string) error {
	if def.OutputSchema == nil {
		return nil
	}
	schema, err := compiledSchema(def.Name+"#output", def.OutputSchema)
	if err != nil {
		return nil
	}
	var v any = output
	if schemaExpectsStructuredValue(def.OutputSchema) {
		var decoded any
		if err := json.Unmarshal([]byte(output), &decoded); err != nil {
			return fmt.Errorf("tool output failed schema validation: %w", err)
		}
		v = decoded
	}
	if err := schema.ValidateInterface(v); err != nil {
		return fmt.Errorf("tool output failed schema validation: %w", err)
	}
	return nil
}

func schemaExpectsStructuredValue(schemaDoc map[string]any) bool {
	switch schemaDoc["type"] {
	case "object", "array":
		return true
	}
	_, hasProperties := schemaDoc["properties"]
	return hasProperties
}

func compiledSchema(name string, schemaDoc map[string]any) (*jsonschema.Schema, error) {
	compileMu.Lock()
	defer compileMu.Unlock()
	if s, ok := compiledCache[name]; ok {
		return s, nil
	}
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name+".json", jsonMustDecode(raw)); err != nil {
		return nil, err
	}
	s, err := c.Compile(name + ".json")
	if err != nil {
		return nil, err
	}
	compiledCache[name] = s
	return s, nil
}

func jsonMustDecode(raw []byte) any {
	var v any
	_ = json.Unmarshal(raw, &v)
	return v
}
