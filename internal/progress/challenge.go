package progress

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

// ChallengeInput is the answer to one sub-question of a challenge.
type ChallengeInput struct {
	UserID        string
	ChallengeID   string
	QuestionIndex int
	QuestionText  string // defaults to the stored sub-question
	ResponseText  string
	ThinkingTime  int
}

// ChallengeResult reports a sub-question submission and, when it finished
// the challenge, the award.
type ChallengeResult struct {
	ResponseID        string
	QuestionIndex     int
	IsLastQuestion    bool
	QuestionsAnswered int
	TotalQuestions    int
	QuestionXP        int

	// Retry is set when this sub-question had been answered before.
	Retry bool

	// Completed is set once the challenge has been finalized, by this call
	// or an earlier one. Applied is set only when this call awarded XP.
	Completed bool
	Applied   bool

	Breakdown ledger.Breakdown
	Stats     ledger.Stats
	LeveledUp bool
	Streak    ledger.StreakChange
	Warnings  []string
}

// SubmitChallenge stores one sub-question answer. Submitting the last
// sub-question, or answering all of them, finalizes the challenge: the
// answers are scored together and awarded once, gated by the history
// record of (user, challenge).
func (s *Service) SubmitChallenge(ctx context.Context, in ChallengeInput) (*ChallengeResult, error) {
	log := s.logger.With(zap.String("userId", in.UserID), zap.String("challengeId", in.ChallengeID))
	eff := apperr.NewCollector(log)

	ch, err := s.loadChallenge(ctx, "challenge", in.ChallengeID)
	if err != nil {
		return nil, err
	}
	required := len(ch.Questions)
	slots := max(required, 1)
	if in.QuestionIndex < 0 || in.QuestionIndex >= slots {
		return nil, apperr.Validation("questionIndex %d is out of range for a challenge with %d questions", in.QuestionIndex, slots)
	}
	user, err := s.loadUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	answered, err := s.answeredSingly(ctx, in.UserID, in.ChallengeID)
	if err != nil {
		return nil, err
	}
	if answered {
		return nil, apperr.Conflict(fmt.Sprintf("%s was already answered with a single response", in.ChallengeID), nil)
	}

	text := in.QuestionText
	if text == "" && in.QuestionIndex < required {
		text = ch.Questions[in.QuestionIndex]
	}
	unit := ledger.Unit{Kind: ledger.KindText, Answer: in.ResponseText, ThinkingSeconds: in.ThinkingTime}
	questionXP := s.cfg.Policy.Score(ledger.Activity{Units: []ledger.Unit{unit}}).Total()

	now := s.now()
	idx := in.QuestionIndex
	key := model.SubQuestionKey(in.UserID, in.ChallengeID, idx)
	created, err := s.saveResponse(ctx, key, &model.Response{
		UserID:        in.UserID,
		ChallengeID:   in.ChallengeID,
		QuestionIndex: &idx,
		QuestionText:  text,
		TopicID:       ch.TopicID,
		ResponseText:  in.ResponseText,
		ThinkingTime:  in.ThinkingTime,
		XPEarned:      questionXP,
		SubmittedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	answers, err := store.FetchAll[model.Response](ctx, s.docs, model.Responses, store.Query{
		Filters: []store.Filter{
			store.Eq("userId", in.UserID),
			store.Eq("challengeId", in.ChallengeID),
			store.Gte("questionIndex", 0),
		},
		OrderBy: "questionIndex",
	})
	if err != nil {
		return nil, apperr.Upstream("list challenge answers", err)
	}

	res := &ChallengeResult{
		ResponseID:        key,
		QuestionIndex:     idx,
		IsLastQuestion:    idx >= slots-1,
		QuestionsAnswered: len(answers),
		TotalQuestions:    required,
		QuestionXP:        questionXP,
		Retry:             !created,
		Stats:             user.Stats(),
	}
	if !res.IsLastQuestion && len(answers) < slots {
		return res, nil
	}

	historyKey := store.IdempotencyKey(in.UserID, in.ChallengeID)
	claimed, state, err := s.claimHistory(ctx, in.UserID, in.ChallengeID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		res.Completed = state == model.LedgerApplied
		if state == model.LedgerApplying {
			eff.Warn("this challenge is still being scored")
		}
		res.Warnings = eff.Warnings()
		return res, nil
	}

	activity := ledger.Activity{RequiredUnits: required}
	thinking := 0
	for _, a := range answers {
		activity.Units = append(activity.Units, ledger.Unit{Kind: ledger.KindText, Answer: a.ResponseText, ThinkingSeconds: a.ThinkingTime})
		thinking += max(a.ThinkingTime, 0)
	}
	breakdown := s.cfg.Policy.Score(activity)

	outcome, err := s.updateStats(ctx, in.UserID, func(st ledger.Stats) ledger.Outcome {
		return s.cfg.Policy.Apply(st, breakdown, now, true)
	})
	applied, err := s.settle(ctx, eff, model.History, historyKey, in.UserID, err)
	if err != nil {
		return nil, err
	}
	if applied {
		eff.Check("complete challenge history", s.commit(ctx, model.History, historyKey, map[string]any{
			"status":         model.HistoryCompleted,
			"completedAt":    now,
			"xpEarned":       outcome.XPEarned,
			"completionTime": thinking,
			"responseId":     key,
		}))
		s.notify(ctx, eff, in.UserID, outcome)

		res.Completed = true
		res.Applied = true
		res.Breakdown = breakdown
		res.Stats = outcome.After
		res.LeveledUp = outcome.LeveledUp
		res.Streak = outcome.Streak
		log.Info("challenge completed", zap.Int("xp", outcome.XPEarned), zap.Int("answered", len(answers)))
	}
	res.Warnings = eff.Warnings()
	return res, nil
}
