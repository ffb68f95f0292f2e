package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://lexsim.schemas.local/scenario.schema.json"

//go:embed schema.json
var schemaJSON string

var (
	compileOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	compileErr  error
)

// compiled returns the scenario schema ("") or one of its $defs by name.
func compiled(def string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader([]byte(schemaJSON))); err != nil {
			compileErr = fmt.Errorf("scenario schema load failed: %w", err)
			return
		}
		schemas = make(map[string]*jsonschema.Schema)
		for _, name := range []string{"", "statute"} {
			url := schemaURL
			if name != "" {
				url += "#/$defs/" + name
			}
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("scenario schema compile failed: %w", err)
				return
			}
			schemas[name] = s
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return schemas[def], nil
}

// normalize converts a generic YAML tree into plain JSON types. YAML
// timestamps become ISO dates; non-string map keys are rejected.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[ks] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly), nil
		}
		return t.Format(time.RFC3339), nil
	default:
		return v, nil
	}
}

// toJSON validates the normalized document against the named schema and
// returns its JSON encoding.
func toJSON(def string, generic any) ([]byte, error) {
	doc, err := normalize(generic)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var inst any
	if err := dec.Decode(&inst); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	schema, err := compiled(def)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return raw, nil
}
