package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiModelAliases(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash", resolveModel("gemini-flash", geminiModels))
	assert.Equal(t, "gemini-2.5-flash-lite", resolveModel("gemini-lite", geminiModels))
	assert.Equal(t, "gemini-3-pro-preview", resolveModel("gemini-3-pro-preview", geminiModels))
}

func TestBuildGeminiSchema(t *testing.T) {
	schema := buildGeminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":   map[string]any{"type": "string", "maxLength": 200},
			"difficulty": map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
			"topicIds": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"maxItems": float64(3),
			},
			"points": map[string]any{"type": "integer"},
		},
		"required": []any{"question"},
	})

	assert.Equal(t, genai.TypeObject, schema.Type)
	require.Len(t, schema.Properties, 4)
	assert.Equal(t, genai.TypeString, schema.Properties["question"].Type)
	require.NotNil(t, schema.Properties["question"].MaxLength)
	assert.EqualValues(t, 200, *schema.Properties["question"].MaxLength)
	assert.Len(t, schema.Properties["difficulty"].Enum, 3)
	assert.Equal(t, genai.TypeArray, schema.Properties["topicIds"].Type)
	assert.Equal(t, genai.TypeString, schema.Properties["topicIds"].Items.Type)
	require.NotNil(t, schema.Properties["topicIds"].MaxItems)
	assert.EqualValues(t, 3, *schema.Properties["topicIds"].MaxItems)
	assert.Equal(t, genai.TypeInteger, schema.Properties["points"].Type)
	assert.Equal(t, []string{"question"}, schema.Required)
}

func TestGeminiStopReason(t *testing.T) {
	tests := []struct {
		reason genai.FinishReason
		want   string
	}{
		{genai.FinishReasonStop, StopEnd},
		{genai.FinishReasonMaxTokens, StopMaxTokens},
		{genai.FinishReasonSafety, StopError},
	}
	for _, tt := range tests {
		got := mapGeminiStopReason(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: tt.reason}},
		})
		assert.Equal(t, tt.want, got, string(tt.reason))
	}
	assert.Equal(t, StopError, mapGeminiStopReason(&genai.GenerateContentResponse{}))
}
