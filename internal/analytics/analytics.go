// Package analytics summarizes a user's recent responses.
package analytics

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

const (
	// SampleSize is how many of the most recent responses are summarized.
	SampleSize   = 100
	CalendarDays = 30
	TrendDays    = 7
)

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// TopicStats counts answers within one topic.
type TopicStats struct {
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
}

// Summary is the analytics payload for one user.
type Summary struct {
	XP              int `json:"xp"`
	Level           int `json:"level"`
	CurrentStreak   int `json:"currentStreak"`
	LongestStreak   int `json:"longestStreak"`
	TotalChallenges int `json:"totalChallenges"`

	TotalResponses    int     `json:"totalResponses"`
	Accuracy          float64 `json:"accuracy"`
	AverageTime       float64 `json:"averageTime"`
	TotalThinkingTime int     `json:"totalThinkingTime"`

	TopicProgress    map[string]TopicStats `json:"topicProgress"`
	ActivityCalendar map[string]int        `json:"activityCalendar"`

	Trend            Trend `json:"trend"`
	RecentActivity   int   `json:"recentActivity"`
	PreviousActivity int   `json:"previousActivity"`
}

// Summarize computes a Summary from a user and their recent responses.
// topicOf resolves the topic of a response that does not carry one; it may
// be nil. total is the user's response count across all time.
func Summarize(u *model.User, responses []*model.Response, total int, topicOf func(*model.Response) string, now time.Time) Summary {
	s := Summary{
		XP:               u.XP,
		Level:            max(u.Level, 1),
		CurrentStreak:    u.CurrentStreak,
		LongestStreak:    u.LongestStreak,
		TotalChallenges:  u.TotalChallengesCompleted,
		TotalResponses:   max(total, len(responses)),
		TopicProgress:    map[string]TopicStats{},
		ActivityCalendar: map[string]int{},
		Trend:            TrendStable,
	}

	today := ledger.Day(now)
	calendarFrom := today.AddDate(0, 0, -(CalendarDays - 1))
	recentFrom := today.AddDate(0, 0, -TrendDays)
	previousFrom := today.AddDate(0, 0, -2*TrendDays)

	var graded, correct, timed int
	for _, r := range responses {
		if r.IsCorrect != nil {
			graded++
			if *r.IsCorrect {
				correct++
			}
		}
		if r.ThinkingTime > 0 {
			timed++
			s.TotalThinkingTime += r.ThinkingTime
		}

		topic := r.TopicID
		if topic == "" && topicOf != nil {
			topic = topicOf(r)
		}
		if topic != "" {
			ts := s.TopicProgress[topic]
			ts.Answered++
			if r.IsCorrect != nil && *r.IsCorrect {
				ts.Correct++
			}
			s.TopicProgress[topic] = ts
		}

		day := ledger.Day(activityTime(r))
		if !day.Before(calendarFrom) && !day.After(today) {
			s.ActivityCalendar[day.Format(ledger.DateLayout)]++
		}
		switch {
		case !day.Before(recentFrom):
			s.RecentActivity++
		case !day.Before(previousFrom):
			s.PreviousActivity++
		}
	}

	if graded > 0 {
		s.Accuracy = round1(float64(correct) / float64(graded) * 100)
	}
	if timed > 0 {
		s.AverageTime = round1(float64(s.TotalThinkingTime) / float64(timed))
	}
	switch {
	case s.RecentActivity > s.PreviousActivity:
		s.Trend = TrendUp
	case s.RecentActivity < s.PreviousActivity:
		s.Trend = TrendDown
	}
	return s
}

func activityTime(r *model.Response) time.Time {
	if !r.SubmittedAt.IsZero() {
		return r.SubmittedAt
	}
	return r.CreatedAt
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// Service loads the data behind a Summary.
type Service struct {
	docs   store.Documents
	now    func() time.Time
	logger *zap.Logger
}

func New(docs store.Documents, now func() time.Time, logger *zap.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, now: now, logger: logger}
}

// ForUser summarizes the user's most recent responses.
func (s *Service) ForUser(ctx context.Context, userID string) (*Summary, error) {
	var u model.User
	if err := store.Fetch(ctx, s.docs, model.Users, userID, &u); err != nil {
		if store.IsNotFound(err) {
			return nil, apperr.NotFound("user", userID)
		}
		return nil, apperr.Upstream("load user", err)
	}

	byUser := store.Eq("userId", userID)
	responses, err := store.FetchAll[model.Response](ctx, s.docs, model.Responses, store.Query{
		Filters: []store.Filter{byUser},
		OrderBy: store.FieldCreatedAt,
		Desc:    true,
		Limit:   SampleSize,
	})
	if err != nil {
		return nil, apperr.Upstream("list responses", err)
	}
	total, err := s.docs.Count(ctx, model.Responses, byUser)
	if err != nil {
		return nil, apperr.Upstream("count responses", err)
	}

	sum := Summarize(&u, responses, total, s.topicLookup(ctx), s.now())
	return &sum, nil
}

// topicLookup resolves topics of older responses from their challenge,
// loading each challenge at most once. Missing challenges are skipped.
func (s *Service) topicLookup(ctx context.Context) func(*model.Response) string {
	topics := map[string]string{}
	return func(r *model.Response) string {
		id := r.ActivityID()
		if id == "" {
			return ""
		}
		if t, ok := topics[id]; ok {
			return t
		}
		var c model.Challenge
		if err := store.Fetch(ctx, s.docs, model.Challenges, id, &c); err != nil {
			s.logger.Debug("topic lookup failed", zap.String("challengeId", id), zap.Error(err))
		}
		topics[id] = c.TopicID
		return c.TopicID
	}
}
