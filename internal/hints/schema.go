package hints

import (
	"fmt"

	"github.com/abhisek/synapse/internal/llm"
)

// challengeSchema is named per length limit; compiled schemas are cached
// by name.
func challengeSchema(maxLen int) *llm.Schema {
	return &llm.Schema{
		Name:        fmt.Sprintf("thinking-challenge-%d", maxLen),
		Description: "One open-ended critical thinking question",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "A short title of at most six words",
				},
				"question": map[string]any{
					"type":        "string",
					"maxLength":   maxLen,
					"description": "The question shown to the learner",
				},
				"difficulty": map[string]any{
					"type": "string",
					"enum": []any{"easy", "medium", "hard"},
				},
			},
			"required":             []any{"title", "question", "difficulty"},
			"additionalProperties": false,
		},
	}
}
