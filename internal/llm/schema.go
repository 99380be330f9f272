package llm

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// intentSchema is the contract the model's output must satisfy before
// anything downstream looks at it.
const intentSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["action", "confidence"],
	"properties": {
		"action": {"type": "string", "minLength": 1},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"entities": {"type": "object"}
	},
	"additionalProperties": true
}`

var compiledIntentSchema = jsonschema.MustCompileString("intent.schema.json", intentSchema)

// validateIntentJSON checks jsonText against the intent schema.
func validateIntentJSON(jsonText string) error {
	var value any
	if err := json.Unmarshal([]byte(jsonText), &value); err != nil {
		return fmt.Errorf("unmarshal model output: %w", err)
	}
	if err := compiledIntentSchema.Validate(value); err != nil {
		return fmt.Errorf("model output failed schema validation: %w", err)
	}
	return nil
}
