package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "clonefix-config.json"

// schemaJSON describes the accepted file layout. Unknown keys are rejected so
// typos such as "treshold" surface instead of silently keeping the default.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "duplicates": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "threshold": {"type": "number", "minimum": 0, "maximum": 1},
        "ngram_size": {"type": "integer", "minimum": 1},
        "min_block_lines": {"type": "integer", "minimum": 1},
        "literal_shapes": {"type": "boolean"},
        "max_units": {"type": "integer", "minimum": 0}
      }
    },
    "refactor": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "mode": {"enum": ["wrapper", "collapse"]},
        "in_place": {"type": "boolean"},
        "backup_suffix": {"type": "string"}
      }
    },
    "smells": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "long_method_lines": {"type": "integer", "minimum": 1},
        "long_parameter_count": {"type": "integer", "minimum": 0}
      }
    },
    "exclude": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "patterns": {"type": "array", "items": {"type": "string"}},
        "dirs": {"type": "array", "items": {"type": "string"}},
        "gitignore": {"type": "boolean"}
      }
    },
    "output": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "format": {"enum": ["text", "json", "markdown", "toon"]},
        "color": {"type": "boolean"}
      }
    },
    "log": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"enum": ["trace", "debug", "info", "warn", "warning", "error"]},
        "format": {"enum": ["text", "json"]}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// validateSchema checks a raw decoded config map. The map is round-tripped
// through JSON so TOML and YAML number types compare the same way.
func validateSchema(raw map[string]any) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
