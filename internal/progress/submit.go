package progress

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

// ResponseInput is a single-prompt answer to a challenge.
type ResponseInput struct {
	UserID       string
	ChallengeID  string
	ResponseText string
	Answer       string // multiple-choice selection; defaults to ResponseText
	ThinkingTime int
}

// StepInput is an answer to one question.
type StepInput struct {
	UserID     string
	QuestionID string
	Answer     string
	TimeTaken  int

	// HistoryID names the history record to complete. Empty selects the
	// record keyed by user and question.
	HistoryID string
}

// SubmitResult reports what a single submission did.
type SubmitResult struct {
	ResponseID string

	// Retry is set when the idempotency key already existed. The stored
	// content was overwritten and no XP was applied twice.
	Retry bool

	// Applied is set when this call awarded XP.
	Applied bool

	IsCorrect *bool
	XPEarned  int
	Breakdown ledger.Breakdown
	Stats     ledger.Stats
	LeveledUp bool
	Streak    ledger.StreakChange
	Warnings  []string
}

// single is the common shape of SubmitResponse and SubmitStep.
type single struct {
	userID     string
	activityID string
	historyID  string
	response   model.Response
	unit       ledger.Unit
}

// SubmitResponse records an answer to a challenge and awards its XP once
// per (user, challenge).
func (s *Service) SubmitResponse(ctx context.Context, in ResponseInput) (*SubmitResult, error) {
	ch, err := s.loadChallenge(ctx, "challenge", in.ChallengeID)
	if err != nil {
		return nil, err
	}
	answer := in.Answer
	if answer == "" {
		answer = in.ResponseText
	}
	sub := single{
		userID:     in.UserID,
		activityID: in.ChallengeID,
		response: model.Response{
			UserID:       in.UserID,
			ChallengeID:  in.ChallengeID,
			QuestionText: ch.Prompt(),
			TopicID:      ch.TopicID,
			ResponseText: in.ResponseText,
			Answer:       in.Answer,
			ThinkingTime: in.ThinkingTime,
		},
		unit: ledger.Unit{
			Kind:            ch.UnitKind(),
			Answer:          answer,
			ThinkingSeconds: in.ThinkingTime,
			CorrectAnswer:   ch.CorrectAnswer,
		},
	}
	if ch.UnitKind() != ledger.KindChoice {
		sub.unit.Answer = in.ResponseText
	}
	return s.submitSingle(ctx, sub)
}

// SubmitStep records an answer to one question, scoring multiple-choice
// correctness, and completes the matching history record.
func (s *Service) SubmitStep(ctx context.Context, in StepInput) (*SubmitResult, error) {
	q, err := s.loadChallenge(ctx, "question", in.QuestionID)
	if err != nil {
		return nil, err
	}
	sub := single{
		userID:     in.UserID,
		activityID: in.QuestionID,
		historyID:  in.HistoryID,
		response: model.Response{
			UserID:       in.UserID,
			QuestionID:   in.QuestionID,
			QuestionText: q.Prompt(),
			TopicID:      q.TopicID,
			Answer:       in.Answer,
			ThinkingTime: in.TimeTaken,
		},
		unit: ledger.Unit{
			Kind:            q.UnitKind(),
			Answer:          in.Answer,
			ThinkingSeconds: in.TimeTaken,
			CorrectAnswer:   q.CorrectAnswer,
		},
	}
	if q.UnitKind() == ledger.KindChoice {
		correct := sub.unit.Correct()
		sub.response.IsCorrect = &correct
	}
	return s.submitSingle(ctx, sub)
}

func (s *Service) submitSingle(ctx context.Context, sub single) (*SubmitResult, error) {
	log := s.logger.With(zap.String("userId", sub.userID), zap.String("activityId", sub.activityID))
	eff := apperr.NewCollector(log)

	user, err := s.loadUser(ctx, sub.userID)
	if err != nil {
		return nil, err
	}
	parts, err := s.answeredInParts(ctx, sub.userID, sub.activityID)
	if err != nil {
		return nil, err
	}
	if parts {
		return nil, apperr.Conflict(fmt.Sprintf("%s was already answered question by question; use submit-challenge", sub.activityID), nil)
	}

	now := s.now()
	key := store.IdempotencyKey(sub.userID, sub.activityID)
	breakdown := s.cfg.Policy.Score(ledger.Activity{Units: []ledger.Unit{sub.unit}})

	sub.response.SubmittedAt = now
	sub.response.LedgerState = model.LedgerPending
	sub.response.XPEarned = breakdown.Total()
	created, err := s.saveResponse(ctx, key, &sub.response)
	if err != nil {
		return nil, err
	}

	res := &SubmitResult{
		ResponseID: key,
		Retry:      !created,
		IsCorrect:  sub.response.IsCorrect,
		Stats:      user.Stats(),
	}

	claimed, state, err := s.claim(ctx, model.Responses, key)
	if err != nil {
		return nil, err
	}
	if !claimed {
		log.Info("submission already awarded", zap.String("ledgerState", string(state)))
		if state == model.LedgerApplying {
			eff.Warn("an earlier submission of this activity is still being scored")
		}
		res.Warnings = eff.Warnings()
		return res, nil
	}

	gated, gate, err := s.claimHistory(ctx, sub.userID, sub.activityID, now)
	if err != nil {
		eff.Check("release ledger claim", s.release(ctx, model.Responses, key))
		return nil, err
	}
	if !gated {
		log.Info("challenge already awarded", zap.String("historyState", string(gate)))
		if gate == model.LedgerApplying {
			eff.Check("release ledger claim", s.release(ctx, model.Responses, key))
			eff.Warn("this challenge is still being scored")
		} else {
			eff.Check("commit ledger state", s.commit(ctx, model.Responses, key, map[string]any{"xpEarned": 0}))
			eff.Warn("this challenge was already completed; no XP awarded")
		}
		res.Warnings = eff.Warnings()
		return res, nil
	}

	outcome, err := s.updateStats(ctx, sub.userID, func(st ledger.Stats) ledger.Outcome {
		return s.cfg.Policy.Apply(st, breakdown, now, true)
	})
	applied, err := s.settle(ctx, eff, model.Responses, key, sub.userID, err)
	if !applied {
		eff.Check("release history claim", s.release(ctx, model.History, key))
	}
	if err != nil {
		return nil, err
	}
	if applied {
		eff.Check("commit ledger state", s.commit(ctx, model.Responses, key, map[string]any{"xpEarned": breakdown.Total()}))
		eff.Check("commit history state", s.commit(ctx, model.History, key, map[string]any{"xpEarned": outcome.XPEarned}))
		s.notify(ctx, eff, sub.userID, outcome)

		res.Applied = true
		res.XPEarned = outcome.XPEarned
		res.Breakdown = breakdown
		res.Stats = outcome.After
		res.LeveledUp = outcome.LeveledUp
		res.Streak = outcome.Streak
		log.Info("submission awarded", zap.Int("xp", outcome.XPEarned), zap.Int("streak", outcome.After.CurrentStreak))
	}

	historyKey := sub.historyID
	if historyKey == "" {
		historyKey = key
	}
	eff.Check("update challenge history", s.completeHistory(ctx, eff, historyKey, sub, key, res.XPEarned, now))

	res.Warnings = eff.Warnings()
	return res, nil
}

// saveResponse creates the response under key, or overwrites the content of
// the existing one and counts the retry. It reports whether it created.
func (s *Service) saveResponse(ctx context.Context, key string, r *model.Response) (bool, error) {
	doc, created, err := store.Claim(ctx, s.docs, model.Responses, key, r)
	if err != nil {
		return false, apperr.Upstream("save response", err)
	}
	if created {
		return true, nil
	}

	var prev model.Response
	if err := doc.Decode(&prev); err != nil {
		return false, apperr.Upstream("load response", err)
	}
	patch := map[string]any{
		"responseText": r.ResponseText,
		"answer":       r.Answer,
		"thinkingTime": r.ThinkingTime,
		"submittedAt":  r.SubmittedAt,
		"retries":      prev.Retries + 1,
	}
	if r.IsCorrect != nil {
		patch["isCorrect"] = *r.IsCorrect
	}
	if r.QuestionText != "" {
		patch["questionText"] = r.QuestionText
	}
	if _, err := s.docs.Update(ctx, model.Responses, key, patch); err != nil {
		return false, apperr.Upstream("update response", err)
	}
	return false, nil
}

// completeHistory marks the history record as completed, creating it when
// the activity was never recorded as shown. Records of other users are left
// untouched.
func (s *Service) completeHistory(ctx context.Context, eff *apperr.Collector, id string, sub single, responseID string, xp int, now time.Time) error {
	doc, _, err := store.Claim(ctx, s.docs, model.History, id, model.NewHistory(sub.userID, sub.activityID, now))
	if err != nil {
		return err
	}
	var rec model.HistoryRecord
	if err := doc.Decode(&rec); err != nil {
		return err
	}
	if rec.UserID != sub.userID {
		eff.Warn("history record %s belongs to another user; left unchanged", id)
		return nil
	}
	patch := map[string]any{
		"status":         model.HistoryCompleted,
		"completedAt":    now,
		"responseId":     responseID,
		"completionTime": sub.unit.ThinkingSeconds,
	}
	if xp > 0 {
		patch["xpEarned"] = xp
	}
	_, err = s.docs.Update(ctx, model.History, id, patch)
	return err
}
