package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/store"
)

func TestObserveInvocation(t *testing.T) {
	m := New()
	m.ObserveInvocation("submit-response", http.StatusOK, 20*time.Millisecond)
	m.ObserveInvocation("submit-response", http.StatusOK, 30*time.Millisecond)
	m.ObserveInvocation("submit-response", http.StatusBadRequest, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.invocations.WithLabelValues("submit-response", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("submit-response", "400")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestStatsChanged(t *testing.T) {
	m := New()
	require.NoError(t, m.StatsChanged(context.Background(), "u1", ledger.Outcome{
		XPEarned: 15,
		Streak:   ledger.StreakChange{Gap: ledger.GapNextDay},
	}))
	require.NoError(t, m.StatsChanged(context.Background(), "u1", ledger.Outcome{
		XPEarned:  90,
		LeveledUp: true,
		Streak:    ledger.StreakChange{Gap: ledger.GapSameDay},
	}))

	assert.Equal(t, 105.0, testutil.ToFloat64(m.xpAwarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.levelUps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streaks.WithLabelValues("next-day")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streaks.WithLabelValues("same-day")))
}

type failingEvents struct {
	store.EventRepo
	appended int
}

func (f *failingEvents) AppendLLMRequest(context.Context, store.LLMRequestEventData) error {
	f.appended++
	return errors.New("disk full")
}

func TestWrapEvents(t *testing.T) {
	m := New()
	inner := &failingEvents{}
	events := m.WrapEvents(inner)

	err := events.AppendLLMRequest(context.Background(), store.LLMRequestEventData{Purpose: "hint", Success: true})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, inner.appended)

	require.NoError(t, m.WrapEvents(nil).AppendLLMRequest(context.Background(), store.LLMRequestEventData{Success: false}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("hint", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("unknown", "error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveInvocation("get-leaderboard", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `synapse_function_invocations_total{function="get-leaderboard",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
