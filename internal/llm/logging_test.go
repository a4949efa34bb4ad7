package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/synapse/internal/store"
)

type recordingRepo struct {
	store.EventRepo // unused methods panic
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

func TestLoggingRecordsEvent(t *testing.T) {
	repo := &recordingRepo{}
	mock := NewMockProvider(MockResponse{
		Content: []byte("Look at the second clause again."),
		Usage:   Usage{InputTokens: 12, OutputTokens: 7},
	})
	p := WithLogging(mock, ProviderGemini, repo, zap.NewNop())

	ctx := WithPurpose(context.Background(), "hint")
	_, err := p.Generate(ctx, Ask("Be Socratic.", "Can you give me a hint?", 200))
	require.NoError(t, err)

	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.Equal(t, ProviderGemini, ev.Provider)
	assert.Equal(t, "mock", ev.Model)
	assert.Equal(t, "hint", ev.Purpose)
	assert.True(t, ev.Success)
	assert.Equal(t, 12, ev.InputTokens)
	assert.Contains(t, ev.RequestBody, "[system]\nBe Socratic.")
	assert.Contains(t, ev.RequestBody, "[user]\nCan you give me a hint?")
	assert.Equal(t, "Look at the second clause again.", ev.ResponseBody)
}

func TestLoggingFailureAndRepoError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	repo := &recordingRepo{err: errors.New("disk full")}
	mock := NewMockProvider(MockResponse{Err: &ErrRateLimit{Err: errors.New("slow down")}})
	p := WithLogging(mock, ProviderOpenAI, repo, zap.New(core))

	_, err := p.Generate(context.Background(), Request{})
	require.Error(t, err)

	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].Success)
	assert.Contains(t, repo.events[0].ErrorMessage, "rate limited")
	assert.Equal(t, 1, logs.FilterMessage("llm request failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to record llm event").Len())
}

func TestLoggingWithoutRepo(t *testing.T) {
	p := WithLogging(NewMockProvider(MockText("ok")), ProviderMock, nil, nil)
	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
}
