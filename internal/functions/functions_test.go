package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/synapse/internal/analytics"
	"github.com/abhisek/synapse/internal/hints"
	"github.com/abhisek/synapse/internal/leaderboard"
	"github.com/abhisek/synapse/internal/llm"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/progress"
	"github.com/abhisek/synapse/internal/selection"
	"github.com/abhisek/synapse/internal/store"
)

type harness struct {
	t   *testing.T
	st  *store.Store
	reg *Registry
	llm *llm.MockProvider
	now time.Time
}

type reply struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data"`
	Error    string         `json:"error"`
	Code     string         `json:"code"`
	Warnings []string       `json:"warnings"`
}

func newHarness(t *testing.T, withLLM bool) *harness {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenMemory(ctx, t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{t: t, st: st, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	board := leaderboard.New(st, leaderboard.NewMemoryCache(time.Minute), nil)
	deps := Deps{
		Docs:        st,
		Progress:    progress.New(st, progress.DefaultConfig(), progress.WithClock(clock), progress.WithListener(board)),
		Selector:    selection.New(st, selection.WithRand(func(int) int { return 0 }), selection.WithClock(clock)),
		Leaderboard: board,
		Analytics:   analytics.New(st, clock, nil),
		Now:         clock,
	}
	if withLLM {
		h.llm = llm.NewMockProvider()
		deps.Hints = hints.New(h.llm, hints.DefaultConfig())
	}
	h.reg = New(deps)
	return h
}

func (h *harness) call(name string, body any) (int, reply) {
	h.t.Helper()
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(h.t, err)
	}
	status, env := h.reg.Invoke(context.Background(), name, raw)

	out, err := json.Marshal(env)
	require.NoError(h.t, err)
	var r reply
	require.NoError(h.t, json.Unmarshal(out, &r))
	return status, r
}

func (h *harness) ok(name string, body any) map[string]any {
	h.t.Helper()
	status, r := h.call(name, body)
	require.Equal(h.t, http.StatusOK, status, "error: %s", r.Error)
	require.True(h.t, r.Success)
	return r.Data
}

func (h *harness) user(id string, topics ...string) {
	h.t.Helper()
	h.ok(OnUserCreate, map[string]any{"$id": id, "email": id + "@example.com", "name": id})
	if len(topics) > 0 {
		_, err := h.st.Update(context.Background(), model.Users, id, map[string]any{"selectedTopics": topics})
		require.NoError(h.t, err)
	}
}

func (h *harness) challenge(id string, c model.Challenge) {
	h.t.Helper()
	_, err := h.st.Create(context.Background(), model.Challenges, id, c)
	require.NoError(h.t, err)
}

func TestRegistryNames(t *testing.T) {
	h := newHarness(t, false)
	assert.Len(t, h.reg.Names(), 14)
	for _, n := range []string{SubmitResponse, GetQuestion, OnUserCreate, GenerateUniqueChallenge} {
		assert.True(t, h.reg.Has(n), n)
	}
}

func TestUnknownFunction(t *testing.T) {
	h := newHarness(t, false)
	status, r := h.call("does-not-exist", "{}")
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, r.Success)
	assert.Equal(t, "NOT_FOUND", r.Code)
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t, false)
	tests := []struct {
		name    string
		fn      string
		body    string
		wantErr string
	}{
		{"malformed json", SubmitResponse, `{"userId":`, "Invalid JSON in request body"},
		{"missing fields", SubmitResponse, `{}`, "Missing required fields: userId, challengeId, responseText"},
		{"question id accepted", SubmitResponse, `{"questionId":"q1","responseText":"x"}`, "Missing required fields: userId"},
		{"negative time", SubmitResponse, `{"userId":"u","challengeId":"c","responseText":"x","thinkingTime":-1}`, "thinkingTime must be at least 0"},
		{"missing index", SubmitChallenge, `{"userId":"u","challengeId":"c","responseText":"x"}`, "Missing required fields: questionIndex"},
		{"bad mode", GetChallengeForUser, `{"userId":"u","mode":"random"}`, "mode must be one of recommended, all"},
		{"bad action", ManageTopics, `{"action":"rename"}`, "Invalid action. Use: create, update, delete, list"},
		{"negative xp", UpdateUserGamification, `{"userId":"u","xpToAdd":-5}`, "xpToAdd must be at least 0"},
		{"huge xp", UpdateUserGamification, `{"userId":"u","xpToAdd":1000001}`, "xpToAdd must be at most 100000"},
		{"huge time", SubmitResponse, `{"userId":"u","challengeId":"c","responseText":"x","thinkingTime":1e19}`, "thinkingTime must be at most 86400"},
		{"huge step time", SubmitChallengeStep, `{"userId":"u","questionId":"q","answer":"a","timeTaken":1e19}`, "timeTaken must be at most 86400"},
		{"hint needs a question", GetAIHint, `{"userQuery":"help"}`, "Missing required fields: questionId or questionText"},
		{"bad leaderboard type", GetLeaderboard, `{"type":"karma"}`, "Invalid leaderboard type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, r := h.call(tt.fn, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_ERROR", r.Code)
			assert.Contains(t, r.Error, tt.wantErr)
		})
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{29.6, 30},
		{-3, 0},
		{86400, 86400},
		{1e19, 86400},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, seconds(tt.in), "seconds(%v)", tt.in)
	}
}

func TestSubmitResponseEndToEnd(t *testing.T) {
	h := newHarness(t, false)
	h.user("u1")
	h.user("u2")
	h.challenge("c1", model.Challenge{CoreProvocation: "Is a copy the original?", TopicID: "identity"})

	long := make([]byte, 250)
	for i := range long {
		long[i] = 'a'
	}
	data := h.ok(SubmitResponse, map[string]any{"userId": "u1", "challengeId": "c1", "responseText": string(long), "thinkingTime": 150})
	assert.Equal(t, "u1_c1", data["responseId"])
	assert.Equal(t, true, data["applied"])
	assert.EqualValues(t, 13, data["xpEarned"])
	assert.EqualValues(t, 13, data["xp"])
	assert.EqualValues(t, 1, data["level"])
	assert.EqualValues(t, 1, data["currentStreak"])

	board := h.ok(GetLeaderboard, map[string]any{"userId": "u2"})
	entries := board["leaderboard"].([]any)
	assert.Equal(t, "u1", entries[0].(map[string]any)["userId"])
	assert.EqualValues(t, 2, board["userRank"])

	data = h.ok(SubmitResponse, map[string]any{"userId": "u1", "challengeId": "c1", "responseText": "edited", "thinkingTime": 3})
	assert.Equal(t, true, data["retry"])
	assert.Equal(t, false, data["applied"])
	assert.EqualValues(t, 0, data["xpEarned"])
	assert.EqualValues(t, 13, data["xp"])

	status, r := h.call(SubmitResponse, map[string]any{"userId": "u1", "challengeId": "nope", "responseText": "x"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, r.Error, "challenge nope not found")
}

func TestSubmitChallengeMessages(t *testing.T) {
	h := newHarness(t, false)
	h.user("u1")
	h.challenge("c1", model.Challenge{Title: "Trolley", Questions: []string{"Pull the lever?", "Why?"}})

	data := h.ok(SubmitChallenge, map[string]any{"userId": "u1", "challengeId": "c1", "questionIndex": 0, "responseText": "yes", "thinkingTime": 70})
	assert.Equal(t, "Question 1 saved! 1 more to go!", data["message"])
	assert.Equal(t, false, data["completed"])

	data = h.ok(SubmitChallenge, map[string]any{"userId": "u1", "challengeId": "c1", "questionIndex": 1, "responseText": "fewer harmed", "thinkingTime": 70})
	assert.Equal(t, "Challenge complete! You earned 25 XP!", data["message"])
	assert.EqualValues(t, 10, data["completionBonus"])
	assert.EqualValues(t, 25, data["xp"])

	data = h.ok(SubmitChallenge, map[string]any{"userId": "u1", "challengeId": "c1", "questionIndex": 1, "responseText": "changed my mind"})
	assert.Equal(t, "Challenge already completed. Your answer was updated.", data["message"])
	assert.Equal(t, true, data["retry"])
}

func TestSubmitChallengeStepFeedback(t *testing.T) {
	h := newHarness(t, false)
	h.user("u1")
	h.challenge("q1", model.Challenge{Question: "2+2?", Type: model.TypeMCQ, Options: []string{"3", "4"}, CorrectAnswer: "4"})
	h.challenge("q2", model.Challenge{Question: "3+3?", Type: model.TypeMCQ, Options: []string{"6", "7"}, CorrectAnswer: "6"})

	data := h.ok(SubmitChallengeStep, map[string]any{"userId": "u1", "questionId": "q1", "answer": " 4", "timeTaken": 8})
	assert.Equal(t, "Correct!", data["feedback"])
	assert.Equal(t, true, data["isCorrect"])
	assert.EqualValues(t, 10, data["xpEarned"])
	assert.EqualValues(t, 10, data["totalXp"])

	data = h.ok(SubmitChallengeStep, map[string]any{"userId": "u1", "questionId": "q2", "answer": "7"})
	assert.Equal(t, "Keep thinking!", data["feedback"])
	assert.EqualValues(t, 15, data["totalXp"])
}

func TestUpdateUserGamification(t *testing.T) {
	h := newHarness(t, false)
	h.user("u1")

	data := h.ok(UpdateUserGamification, map[string]any{"userId": "u1", "xpToAdd": 40})
	assert.EqualValues(t, 40, data["xp"])
	assert.EqualValues(t, 0, data["streakBonusXp"])

	h.now = h.now.AddDate(0, 0, 1)
	data = h.ok(UpdateUserGamification, map[string]any{"userId": "u1", "xpToAdd": 60})
	assert.EqualValues(t, 5, data["streakBonusXp"])
	assert.EqualValues(t, 105, data["xp"])
	assert.EqualValues(t, 2, data["level"])
	assert.Equal(t, true, data["leveledUp"])
	assert.EqualValues(t, 2, data["currentStreak"])
}

func TestChallengeSelection(t *testing.T) {
	h := newHarness(t, false)
	h.user("u1")

	status, r := h.call(GetChallengeForUser, map[string]any{"userId": "u1"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NO_TOPICS_SELECTED", r.Code)

	h.user("u2", "logic")
	h.challenge("c1", model.Challenge{CoreProvocation: "Can a paradox be useful?", TopicID: "logic", Type: model.TypeMCQ, Options: []string{"yes", "no"}, CorrectAnswer: "yes"})

	data := h.ok(GetQuestion, map[string]any{"userId": "u2"})
	q := data["question"].(map[string]any)
	assert.Equal(t, "c1", q["id"])
	assert.NotContains(t, q, "correctAnswer")

	data = h.ok(GetChallengeForUser, map[string]any{"userId": "u2", "mode": "recommended"})
	assert.Equal(t, "c1", data["id"])
	assert.Equal(t, "u2_c1", data["historyId"])

	status, r = h.call(GetChallengeForUser, map[string]any{"userId": "u2"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NO_CHALLENGES_LEFT", r.Code)
}

func TestRecordQuestionView(t *testing.T) {
	h := newHarness(t, false)
	data := h.ok(RecordQuestionView, map[string]any{"userId": "u1", "questionId": "q1"})
	assert.Equal(t, "u1_q1", data["historyId"])
	assert.Equal(t, true, data["created"])

	data = h.ok(RecordQuestionView, map[string]any{"userId": "u1", "challengeId": "q1"})
	assert.Equal(t, false, data["created"])
}

func TestManageTopics(t *testing.T) {
	h := newHarness(t, false)

	status, r := h.call(ManageTopics, map[string]any{"action": "create", "name": "Logic"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, r.Error, "description")

	data := h.ok(ManageTopics, map[string]any{"action": "create", "topicId": "logic", "name": "Logic", "description": "Reasoning"})
	topic := data["topic"].(map[string]any)
	assert.Equal(t, "logic", topic["$id"])

	h.ok(ManageTopics, map[string]any{"action": "create", "name": "Ethics", "description": "Right and wrong", "category": "philosophy"})

	data = h.ok(ManageTopics, map[string]any{"action": "update", "topicId": "logic", "category": "philosophy"})
	topic = data["topic"].(map[string]any)
	assert.Equal(t, "philosophy", topic["category"])
	assert.Equal(t, "Logic", topic["name"])

	data = h.ok(ManageTopics, map[string]any{"action": "list"})
	topics := data["topics"].([]any)
	require.Len(t, topics, 2)
	assert.Equal(t, "Ethics", topics[0].(map[string]any)["name"])

	h.ok(ManageTopics, map[string]any{"action": "delete", "topicId": "logic"})
	status, _ = h.call(ManageTopics, map[string]any{"action": "delete", "topicId": "logic"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubmitFeedbackAndUserCreate(t *testing.T) {
	h := newHarness(t, false)

	data := h.ok(SubmitFeedback, map[string]any{"userId": "u1", "feedbackText": "More logic puzzles please"})
	assert.NotEmpty(t, data["feedbackId"])

	data = h.ok(OnUserCreate, map[string]any{"$id": "u9", "email": "u9@example.com"})
	assert.Equal(t, true, data["created"])
	data = h.ok(OnUserCreate, map[string]any{"$id": "u9", "email": "u9@example.com"})
	assert.Equal(t, false, data["created"])
	assert.Equal(t, "User profile already exists", data["message"])

	var u model.User
	require.NoError(t, store.Fetch(context.Background(), h.st, model.Users, "u9", &u))
	assert.Equal(t, 1, u.Level)
	assert.NotNil(t, u.SelectedTopics)
}

func TestAIFunctions(t *testing.T) {
	h := newHarness(t, true)
	h.user("u1", "logic")
	h.challenge("c1", model.Challenge{Title: "Liar", CoreProvocation: "This sentence is false."})
	_, err := h.st.Create(context.Background(), model.Topics, "logic", model.Topic{Name: "Formal Logic", Description: "d"})
	require.NoError(t, err)

	h.llm.AddResponse(llm.MockText("What happens if you assume it is true?"))
	data := h.ok(GetAIHint, map[string]any{"questionId": "c1"})
	assert.Equal(t, "What happens if you assume it is true?", data["hint"])
	req, _ := h.llm.LastCall()
	assert.Contains(t, req.Messages[0].Content, "This sentence is false.")

	status, _ := h.call(GetAIHint, map[string]any{"questionId": "missing"})
	assert.Equal(t, http.StatusNotFound, status)

	h.llm.AddResponse(llm.MockJSON(map[string]any{
		"title": "Rules and exceptions", "question": "Can a rule that allows exceptions still be a rule?", "difficulty": "medium",
	}))
	data = h.ok(GenerateUniqueChallenge, map[string]any{"userId": "u1"})
	assert.Equal(t, "Can a rule that allows exceptions still be a rule?", data["question"])
	assert.Equal(t, model.SourceAIGenerated, data["source"])
	req, _ = h.llm.LastCall()
	assert.Contains(t, req.Messages[0].Content, "Formal Logic")

	id := data["id"].(string)
	var c model.Challenge
	require.NoError(t, store.Fetch(context.Background(), h.st, model.Challenges, id, &c))
	assert.Equal(t, "u1", c.CreatedFor)
	assert.Equal(t, "logic", c.TopicID)

	status, r := h.call(GetAIHint, map[string]any{"questionText": "Why?"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "UPSTREAM_ERROR", r.Code)
	assert.Equal(t, "AI service is busy, please try again shortly", r.Error)
}

func TestAIFunctionsWithoutProvider(t *testing.T) {
	h := newHarness(t, false)
	status, r := h.call(GetAIHint, map[string]any{"questionText": "Why?"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "CONFIG_ERROR", r.Code)
}

func TestUserAnalytics(t *testing.T) {
	h := newHarness(t, false)
	h.user("u1")
	h.challenge("q1", model.Challenge{Question: "?", TopicID: "logic", Type: model.TypeMCQ, CorrectAnswer: "a"})
	h.ok(SubmitChallengeStep, map[string]any{"userId": "u1", "questionId": "q1", "answer": "a", "timeTaken": 30})

	data := h.ok(GetUserAnalytics, map[string]any{"userId": "u1"})
	assert.EqualValues(t, 1, data["totalResponses"])
	assert.EqualValues(t, 100, data["accuracy"])
	assert.EqualValues(t, 30, data["averageTime"])
	assert.Equal(t, "up", data["trend"])
	assert.Contains(t, data["topicProgress"], "logic")
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveInvocation(function string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, function+":"+http.StatusText(status))
}

func TestObserver(t *testing.T) {
	h := newHarness(t, false)
	obs := &recordingObserver{}
	h.reg.AddObserver(obs)

	h.call(GetUserAnalytics, map[string]any{})
	h.call("missing", "{}")
	assert.Equal(t, []string{"get-user-analytics:Bad Request", "missing:Not Found"}, obs.calls)
}
