package functions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abhisek/synapse/internal/progress"
)

type submitResponseRequest struct {
	UserID       string  `json:"userId" validate:"required"`
	ChallengeID  string  `json:"challengeId" validate:"required_without=QuestionID"`
	QuestionID   string  `json:"questionId"`
	ResponseText string  `json:"responseText" validate:"required"`
	Answer       string  `json:"answer"`
	ThinkingTime float64 `json:"thinkingTime" validate:"gte=0,lte=86400"`
}

func (s *service) submitResponse(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req submitResponseRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	challengeID := req.ChallengeID
	if challengeID == "" {
		challengeID = req.QuestionID
	}

	res, err := s.Progress.SubmitResponse(ctx, progress.ResponseInput{
		UserID:       req.UserID,
		ChallengeID:  challengeID,
		ResponseText: req.ResponseText,
		Answer:       req.Answer,
		ThinkingTime: seconds(req.ThinkingTime),
	})
	if err != nil {
		return nil, err
	}
	return &Result{Data: singleView(res), Warnings: res.Warnings}, nil
}

type stepRequest struct {
	UserID     string  `json:"userId" validate:"required"`
	QuestionID string  `json:"questionId" validate:"required"`
	Answer     string  `json:"answer" validate:"required"`
	TimeTaken  float64 `json:"timeTaken" validate:"gte=0,lte=86400"`
	HistoryID  string  `json:"historyId"`
}

func (s *service) submitChallengeStep(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req stepRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	res, err := s.Progress.SubmitStep(ctx, progress.StepInput{
		UserID:     req.UserID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		TimeTaken:  seconds(req.TimeTaken),
		HistoryID:  req.HistoryID,
	})
	if err != nil {
		return nil, err
	}

	data := singleView(res)
	data["totalXp"] = res.Stats.XP
	if res.IsCorrect != nil && *res.IsCorrect {
		data["feedback"] = "Correct!"
	} else {
		data["feedback"] = "Keep thinking!"
	}
	return &Result{Data: data, Warnings: res.Warnings}, nil
}

func singleView(res *progress.SubmitResult) map[string]any {
	data := statsView(res.Stats)
	data["responseId"] = res.ResponseID
	data["retry"] = res.Retry
	data["applied"] = res.Applied
	data["xpEarned"] = res.XPEarned
	data["leveledUp"] = res.LeveledUp
	if res.IsCorrect != nil {
		data["isCorrect"] = *res.IsCorrect
	}
	if res.Applied {
		data["breakdown"] = res.Breakdown
		data["streakExtended"] = res.Streak.Extended()
	}
	return data
}

type submitChallengeRequest struct {
	UserID        string  `json:"userId" validate:"required"`
	ChallengeID   string  `json:"challengeId" validate:"required"`
	QuestionIndex *int    `json:"questionIndex" validate:"required,gte=0"`
	QuestionText  string  `json:"questionText"`
	ResponseText  string  `json:"responseText" validate:"required"`
	ThinkingTime  float64 `json:"thinkingTime" validate:"gte=0,lte=86400"`
}

func (s *service) submitChallenge(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req submitChallengeRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	res, err := s.Progress.SubmitChallenge(ctx, progress.ChallengeInput{
		UserID:        req.UserID,
		ChallengeID:   req.ChallengeID,
		QuestionIndex: *req.QuestionIndex,
		QuestionText:  req.QuestionText,
		ResponseText:  req.ResponseText,
		ThinkingTime:  seconds(req.ThinkingTime),
	})
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"responseId":           res.ResponseID,
		"questionIndex":        res.QuestionIndex,
		"isLastQuestion":       res.IsLastQuestion,
		"questionsAnswered":    res.QuestionsAnswered,
		"totalQuestions":       res.TotalQuestions,
		"xpEarnedThisQuestion": res.QuestionXP,
		"retry":                res.Retry,
		"completed":            res.Completed,
		"applied":              res.Applied,
	}
	switch {
	case res.Applied:
		total := res.Breakdown.Total()
		data["totalXpEarned"] = total
		data["completionBonus"] = res.Breakdown.Completion
		data["breakdown"] = res.Breakdown
		data["level"] = res.Stats.Level
		data["xp"] = res.Stats.XP
		data["leveledUp"] = res.LeveledUp
		data["streak"] = res.Stats.CurrentStreak
		data["message"] = fmt.Sprintf("Challenge complete! You earned %d XP!", total)
	case res.Completed:
		data["message"] = "Challenge already completed. Your answer was updated."
	default:
		left := max(res.TotalQuestions-res.QuestionsAnswered, 0)
		data["message"] = fmt.Sprintf("Question %d saved! %d more to go!", res.QuestionIndex+1, left)
	}
	return &Result{Data: data, Warnings: res.Warnings}, nil
}

type gamificationRequest struct {
	UserID  string `json:"userId" validate:"required"`
	XPToAdd int    `json:"xpToAdd" validate:"gte=0,lte=100000"`
}

func (s *service) updateUserGamification(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req gamificationRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	res, err := s.Progress.Adjust(ctx, req.UserID, req.XPToAdd)
	if err != nil {
		return nil, err
	}
	o := res.Outcome
	data := statsView(o.After)
	data["leveledUp"] = o.LeveledUp
	data["streakBonusXp"] = o.StreakBonus
	data["xpEarned"] = o.XPEarned
	return &Result{Data: data, Warnings: res.Warnings}, nil
}
