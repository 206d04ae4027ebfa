package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// rulesSchema describes the wire format accepted by POST/PUT /rules: one rule
// object or an array of them. Kept in sync with the stub package's JSON codec.
const rulesSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "oneOf": [
    {"$ref": "#/$defs/rule"},
    {"type": "array", "items": {"$ref": "#/$defs/rule"}}
  ],
  "$defs": {
    "rule": {
      "type": "object",
      "required": ["predicates", "outcome"],
      "properties": {
        "id": {"type": "string"},
        "predicates": {
          "type": "array",
          "minItems": 1,
          "items": {"$ref": "#/$defs/predicate"}
        },
        "outcome": {"$ref": "#/$defs/outcome"},
        "delay": {"type": ["string", "number"]},
        "consumption": {"$ref": "#/$defs/consumption"}
      }
    },
    "predicate": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {"enum": ["method", "url", "query", "header", "pathExt", "bodySubset"]},
        "method": {"type": "string"},
        "url": {"type": "string"},
        "key": {"type": "string"},
        "value": {"type": "string"},
        "extension": {"type": "string"},
        "bodySubset": {}
      }
    },
    "outcome": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind": {"enum": ["respond", "exclude"]},
        "response": {"$ref": "#/$defs/response"}
      }
    },
    "response": {
      "type": "object",
      "required": ["statusCode"],
      "properties": {
        "statusCode": {"type": "integer", "minimum": 100, "maximum": 599},
        "headers": {"type": "object", "additionalProperties": {"type": "string"}},
        "body": {"$ref": "#/$defs/body"},
        "bodyFile": {"type": "string"},
        "storePolicy": {"enum": ["allowed", "memoryOnly", "notAllowed"]},
        "protoVersion": {"type": "string"}
      }
    },
    "body": {
      "type": "object",
      "properties": {
        "kind": {"enum": ["empty", "bytes", "text", "error"]},
        "data": {"type": "string"},
        "text": {"type": "string"},
        "domain": {"type": "string"},
        "code": {"type": "integer"}
      }
    },
    "consumption": {
      "type": "object",
      "properties": {
        "unlimited": {"type": "boolean"},
        "remainingUses": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileRulesSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("rules.json", strings.NewReader(rulesSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("rules.json")
	})
	return compiledSchema, schemaErr
}

// validateRulesPayload checks a raw request body against the rules schema.
func validateRulesPayload(data []byte) error {
	schema, err := compileRulesSchema()
	if err != nil {
		return fmt.Errorf("rules schema: %w", err)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("rules payload: %w", err)
	}
	return nil
}
