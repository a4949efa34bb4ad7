package hints

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/synapse/internal/llm"
)

func TestHint(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("  What would change if the premise were false?  "))
	g := New(mock, DefaultConfig())

	hint, err := g.Hint(context.Background(), HintInput{Title: "Ship of Theseus", Text: "Is it the same ship?"})
	require.NoError(t, err)
	assert.Equal(t, "What would change if the premise were false?", hint)

	req, ok := mock.LastCall()
	require.True(t, ok)
	assert.Nil(t, req.Schema)
	assert.Contains(t, req.System, "Do not reveal")
	msg := req.Messages[0].Content
	assert.Contains(t, msg, "Challenge: Ship of Theseus")
	assert.Contains(t, msg, DefaultQuery)
}

func TestHintUserQuery(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("Consider the parts."))
	g := New(mock, DefaultConfig())

	_, err := g.Hint(context.Background(), HintInput{Text: "Is it the same ship?", UserQuery: "where do I start?"})
	require.NoError(t, err)
	req, _ := mock.LastCall()
	assert.Contains(t, req.Messages[0].Content, `"where do I start?"`)
	assert.NotContains(t, req.Messages[0].Content, "Challenge:")
}

func TestHintProviderError(t *testing.T) {
	g := New(llm.NewMockProvider(), DefaultConfig())
	_, err := g.Hint(context.Background(), HintInput{Text: "x"})
	var unavailable *llm.ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestChallenge(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"title":      "Maps and memory",
		"question":   " If a map shapes how you remember a city, who authored your memories? ",
		"difficulty": "medium",
	}))
	g := New(mock, DefaultConfig())

	got, err := g.Challenge(context.Background(), ChallengeInput{Topics: []string{"logic", "history"}})
	require.NoError(t, err)
	assert.Equal(t, "If a map shapes how you remember a city, who authored your memories?", got.Question)
	assert.Equal(t, "medium", got.Difficulty)

	req, _ := mock.LastCall()
	require.NotNil(t, req.Schema)
	assert.Contains(t, req.System, "under 200 characters")
	assert.Contains(t, req.Messages[0].Content, "Interests: logic, history")
	assert.Contains(t, req.Messages[0].Content, "Already asked:\nNone")
}

func TestChallengeRepeatRejected(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"title": "t", "question": "Is free will compatible with prediction?", "difficulty": "hard",
	}))
	_, err := New(mock, DefaultConfig()).Challenge(context.Background(), ChallengeInput{
		Topics:         []string{"ethics"},
		PriorQuestions: []string{"is free will compatible with prediction? "},
	})
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Contains(t, rejected.Reason, "repeats")
}

func TestCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQuestionLen = 10
	g := New(nil, cfg)

	tests := []struct {
		question string
		ok       bool
	}{
		{"Why?", true},
		{"", false},
		{"Why is the sky blue?", false},
		{"¿Por qué?", true},
	}
	for _, tt := range tests {
		err := g.check(&Generated{Question: tt.question}, nil)
		assert.Equal(t, tt.ok, err == nil, "question %q", tt.question)
	}
}

func TestChallengeSchemaEnforced(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{"title": "t", "question": strings.Repeat("a", 201), "difficulty": "hard"}))
	_, err := New(mock, DefaultConfig()).Challenge(context.Background(), ChallengeInput{Topics: []string{"ethics"}})
	var invalid *llm.ErrInvalidResponse
	assert.True(t, errors.As(err, &invalid))
}

func TestBuildList(t *testing.T) {
	assert.Equal(t, "None", buildList(nil, 3))
	assert.Equal(t, "1. b\n2. c", buildList([]string{"a", "b", "c"}, 2))
}
