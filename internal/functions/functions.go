package functions

import (
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/analytics"
	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/hints"
	"github.com/abhisek/synapse/internal/leaderboard"
	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/llm"
	"github.com/abhisek/synapse/internal/progress"
	"github.com/abhisek/synapse/internal/selection"
	"github.com/abhisek/synapse/internal/store"
)

// Function names.
const (
	SubmitResponse          = "submit-response"
	SubmitChallenge         = "submit-challenge"
	SubmitChallengeStep     = "submit-challenge-step"
	UpdateUserGamification  = "update-user-gamification"
	GetChallengeForUser     = "get-challenge-for-user"
	GetQuestion             = "get-question"
	RecordQuestionView      = "record-question-view"
	GetLeaderboard          = "get-leaderboard"
	GetUserAnalytics        = "get-user-analytics"
	GetAIHint               = "get-ai-hint"
	GenerateUniqueChallenge = "generate-unique-challenge"
	ManageTopics            = "manage-topics"
	SubmitFeedback          = "submit-feedback"
	OnUserCreate            = "on-user-create"
)

// Deps are the services the functions run on.
type Deps struct {
	Docs        store.Documents
	Progress    *progress.Service
	Selector    *selection.Selector
	Leaderboard *leaderboard.Service
	Analytics   *analytics.Service

	// Hints is nil when no LLM provider is configured.
	Hints *hints.Generator

	// HintsConfig bounds generated challenges.
	HintsConfig hints.Config

	Now    func() time.Time
	Logger *zap.Logger
}

type service struct {
	Deps
}

// New registers every function against deps.
func New(deps Deps) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.HintsConfig == (hints.Config{}) {
		deps.HintsConfig = hints.DefaultConfig()
	}
	s := &service{Deps: deps}

	r := NewRegistry(deps.Logger)
	r.Register(SubmitResponse, s.submitResponse)
	r.Register(SubmitChallenge, s.submitChallenge)
	r.Register(SubmitChallengeStep, s.submitChallengeStep)
	r.Register(UpdateUserGamification, s.updateUserGamification)
	r.Register(GetChallengeForUser, s.getChallengeForUser)
	r.Register(GetQuestion, s.getQuestion)
	r.Register(RecordQuestionView, s.recordQuestionView)
	r.Register(GetLeaderboard, s.getLeaderboard)
	r.Register(GetUserAnalytics, s.getUserAnalytics)
	r.Register(GetAIHint, s.getAIHint)
	r.Register(GenerateUniqueChallenge, s.generateUniqueChallenge)
	r.Register(ManageTopics, s.manageTopics)
	r.Register(SubmitFeedback, s.submitFeedback)
	r.Register(OnUserCreate, s.onUserCreate)
	return r
}

func (s *service) hintsOrErr() (*hints.Generator, error) {
	if s.Hints == nil {
		return nil, apperr.Config("no LLM provider configured; set GEMINI_API_KEY or SYNAPSE_LLM_PROVIDER", nil)
	}
	return s.Hints, nil
}

// generationError maps a hint generator failure to a caller-facing error.
func generationError(action string, err error) error {
	var rejected *hints.RejectedError
	switch {
	case llm.Busy(err):
		return apperr.Upstream("AI service is busy, please try again shortly", err)
	case errors.As(err, &rejected):
		return apperr.Upstream("Generated challenge was rejected: "+rejected.Reason, err)
	default:
		return apperr.Upstream(action, err)
	}
}

// maxSeconds caps a client-reported duration at one day.
const maxSeconds = 86400

// seconds rounds a client-reported duration to whole seconds.
func seconds(f float64) int {
	return int(math.Round(min(max(f, 0), maxSeconds)))
}

// statsView is the public form of a user's counters.
func statsView(st ledger.Stats) map[string]any {
	v := map[string]any{
		"xp":                       st.XP,
		"level":                    st.Level,
		"currentStreak":            st.CurrentStreak,
		"longestStreak":            st.LongestStreak,
		"totalChallengesCompleted": st.CompletedCount,
	}
	if !st.LastActivity.IsZero() {
		v["lastActivityDate"] = st.LastActivity.Format(ledger.DateLayout)
	}
	return v
}
