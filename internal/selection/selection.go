// Package selection picks the next challenge to show a user.
package selection

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

// Mode chooses which challenges are eligible.
type Mode string

const (
	// ModeRecommended draws from the user's selected topics.
	ModeRecommended Mode = "recommended"
	// ModeAll draws from every topic, or only TopicID when set.
	ModeAll Mode = "all"
)

// Request describes a selection.
type Request struct {
	UserID  string
	Mode    Mode
	TopicID string
}

// Result is the chosen challenge.
type Result struct {
	Challenge *model.Challenge
	PoolSize  int

	// HistoryID is the history record written for the pick, empty when
	// recording failed or was not requested.
	HistoryID string
	Warnings  []string
}

// Selector picks unseen challenges.
type Selector struct {
	docs   store.Documents
	intn   func(n int) int
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Selector)

// WithRand replaces the random index source. intn must return a value in
// [0, n).
func WithRand(intn func(n int) int) Option {
	return func(s *Selector) { s.intn = intn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

func New(docs store.Documents, opts ...Option) *Selector {
	s := &Selector{docs: docs, intn: rand.IntN, now: time.Now, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Serve picks a challenge and records it in the user's history so it is not
// served again. Recording is best effort.
func (s *Selector) Serve(ctx context.Context, req Request) (*Result, error) {
	res, err := s.Choose(ctx, req)
	if err != nil {
		return nil, err
	}
	eff := apperr.NewCollector(s.logger.With(zap.String("userId", req.UserID)))
	id, _, err := s.RecordView(ctx, req.UserID, res.Challenge.ID)
	if eff.Check("record challenge history", err) {
		res.HistoryID = id
	}
	res.Warnings = eff.Warnings()
	return res, nil
}

// Choose picks a challenge without writing anything.
func (s *Selector) Choose(ctx context.Context, req Request) (*Result, error) {
	pool, err := s.Pool(ctx, req)
	if err != nil {
		return nil, err
	}
	c := pool[s.intn(len(pool))]
	s.logger.Debug("challenge selected",
		zap.String("userId", req.UserID), zap.String("challengeId", c.ID), zap.Int("pool", len(pool)))
	return &Result{Challenge: c, PoolSize: len(pool)}, nil
}

// Pool returns the challenges eligible for req, ordered by id. An empty pool
// is reported as a NotSelectable error.
func (s *Selector) Pool(ctx context.Context, req Request) ([]*model.Challenge, error) {
	var user model.User
	if err := store.Fetch(ctx, s.docs, model.Users, req.UserID, &user); err != nil {
		if store.IsNotFound(err) {
			return nil, apperr.NotFound("user", req.UserID)
		}
		return nil, apperr.Upstream("load user", err)
	}

	q := store.Query{OrderBy: store.FieldID}
	switch {
	case req.TopicID != "":
		q.Filters = append(q.Filters, store.Eq("topicId", req.TopicID))
	case req.Mode == ModeAll:
	default:
		if len(user.SelectedTopics) == 0 {
			return nil, apperr.NotSelectable(apperr.CodeNoTopicsSelected,
				"No topics selected. Choose topics to get recommended challenges.")
		}
		q.Filters = append(q.Filters, store.In("topicId", user.SelectedTopics))
	}

	candidates, err := store.FetchAll[model.Challenge](ctx, s.docs, model.Challenges, q)
	if err != nil {
		return nil, apperr.Upstream("list challenges", err)
	}
	seen, err := s.seen(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	pool := candidates[:0]
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		// Generated challenges belong to the user they were made for.
		if c.CreatedFor != "" && c.CreatedFor != req.UserID {
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return nil, apperr.NotSelectable(apperr.CodeNoChallengesLeft, exhaustedMessage(req))
	}
	return pool, nil
}

func exhaustedMessage(req Request) string {
	switch {
	case req.TopicID != "":
		return "You have completed every challenge in this topic."
	case req.Mode == ModeAll:
		return "You have completed every available challenge."
	default:
		return "You have completed every challenge in your selected topics. Pick more topics to keep going."
	}
}

func (s *Selector) seen(ctx context.Context, userID string) (map[string]bool, error) {
	history, err := store.FetchAll[model.HistoryRecord](ctx, s.docs, model.History, store.Query{
		Filters: []store.Filter{store.Eq("userId", userID)},
	})
	if err != nil {
		return nil, apperr.Upstream("list challenge history", err)
	}
	seen := make(map[string]bool, len(history))
	for _, h := range history {
		if h.ChallengeID != "" {
			seen[h.ChallengeID] = true
		}
		if h.QuestionID != "" {
			seen[h.QuestionID] = true
		}
	}
	return seen, nil
}

// RecordView creates the in-progress history record for (user, challenge).
// Recording a view twice returns the existing record.
func (s *Selector) RecordView(ctx context.Context, userID, challengeID string) (id string, created bool, err error) {
	key := store.IdempotencyKey(userID, challengeID)
	doc, created, err := store.Claim(ctx, s.docs, model.History, key, model.NewHistory(userID, challengeID, s.now().UTC()))
	if err != nil {
		return "", false, err
	}
	return doc.ID, created, nil
}
