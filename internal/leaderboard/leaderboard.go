// Package leaderboard ranks users by XP, streak or level.
package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

// Type is the metric users are ranked by.
type Type string

const (
	TypeXP     Type = "xp"
	TypeStreak Type = "streak"
	TypeLevel  Type = "level"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ParseType validates a leaderboard type. Empty selects TypeXP.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case "":
		return TypeXP, nil
	case TypeXP, TypeStreak, TypeLevel:
		return t, nil
	default:
		return "", apperr.Validation("Invalid leaderboard type %q (want xp, streak or level)", s)
	}
}

func (t Type) field() string {
	switch t {
	case TypeStreak:
		return "currentStreak"
	case TypeLevel:
		return "level"
	default:
		return "xp"
	}
}

func (t Type) value(u *model.User) int {
	switch t {
	case TypeStreak:
		return u.CurrentStreak
	case TypeLevel:
		return u.Level
	default:
		return u.XP
	}
}

// Entry is one ranked user.
type Entry struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	XP              int    `json:"xp"`
	Level           int    `json:"level"`
	CurrentStreak   int    `json:"currentStreak"`
	TotalChallenges int    `json:"totalChallenges"`
}

// Request selects a leaderboard.
type Request struct {
	Type   Type
	Limit  int
	UserID string // optional; fills Board.UserRank
}

// Board is a ranked page plus the caller's rank.
type Board struct {
	Entries  []Entry  `json:"leaderboard"`
	UserRank *int     `json:"userRank"`
	Type     Type     `json:"type"`
	Total    int      `json:"total"`
	Warnings []string `json:"-"`
}

// Service builds leaderboards from user documents.
type Service struct {
	docs   store.Documents
	cache  Cache
	logger *zap.Logger
}

func New(docs store.Documents, cache Cache, logger *zap.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, cache: cache, logger: logger}
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// Get returns the top users for req.Type. A user outside the page is ranked
// as one more than the number of users with a strictly greater value, so
// tied users share a rank.
func (s *Service) Get(ctx context.Context, req Request) (*Board, error) {
	if req.Type == "" {
		req.Type = TypeXP
	}
	req.Limit = ClampLimit(req.Limit)
	eff := apperr.NewCollector(s.logger.With(zap.String("type", string(req.Type))))

	page, err := s.page(ctx, eff, req.Type, req.Limit)
	if err != nil {
		return nil, err
	}
	b := &Board{Entries: page.Entries, Type: req.Type, Total: page.Total}

	if req.UserID != "" {
		rank, err := s.rank(ctx, req.Type, req.UserID, page.Entries)
		if err != nil {
			return nil, err
		}
		b.UserRank = &rank
	}
	b.Warnings = eff.Warnings()
	return b, nil
}

func cacheKey(t Type, limit int) string {
	return fmt.Sprintf("%s:%d", t, limit)
}

func (s *Service) page(ctx context.Context, eff *apperr.Collector, t Type, limit int) (*Page, error) {
	key := cacheKey(t, limit)
	p, err := s.cache.Get(ctx, key)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		eff.Check("read leaderboard cache", err)
	}

	users, err := store.FetchAll[model.User](ctx, s.docs, model.Users, store.Query{
		OrderBy: t.field(),
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, apperr.Upstream("list users", err)
	}
	total, err := s.docs.Count(ctx, model.Users)
	if err != nil {
		return nil, apperr.Upstream("count users", err)
	}

	p = &Page{Entries: make([]Entry, 0, len(users)), Total: total}
	for i, u := range users {
		p.Entries = append(p.Entries, Entry{
			Rank:            i + 1,
			UserID:          u.ID,
			Username:        u.DisplayName(),
			XP:              u.XP,
			Level:           max(u.Level, 1),
			CurrentStreak:   u.CurrentStreak,
			TotalChallenges: u.TotalChallengesCompleted,
		})
	}
	eff.Check("write leaderboard cache", s.cache.Set(ctx, key, p))
	return p, nil
}

func (s *Service) rank(ctx context.Context, t Type, userID string, entries []Entry) (int, error) {
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank, nil
		}
	}
	var u model.User
	if err := store.Fetch(ctx, s.docs, model.Users, userID, &u); err != nil {
		if store.IsNotFound(err) {
			return 0, apperr.NotFound("user", userID)
		}
		return 0, apperr.Upstream("load user", err)
	}
	higher, err := s.docs.Count(ctx, model.Users, store.Gt(t.field(), t.value(&u)))
	if err != nil {
		return 0, apperr.Upstream("rank user", err)
	}
	return higher + 1, nil
}

// StatsChanged drops cached pages after a user's counters changed.
func (s *Service) StatsChanged(ctx context.Context, userID string, _ ledger.Outcome) error {
	return s.cache.Invalidate(ctx)
}
