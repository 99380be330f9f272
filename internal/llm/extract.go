package llm

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// extractJSON pulls the JSON object out of raw model output. Models in
// JSON mode usually return bare JSON, but fenced or prose-wrapped output
// still appears; anything without a valid object inside is malformed.
func extractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}

	candidate := trimmed[start : end+1]
	if !gjson.Valid(candidate) {
		return "", fmt.Errorf("invalid JSON in model output")
	}
	return candidate, nil
}
