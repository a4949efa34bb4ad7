// Package progress applies scored submissions to user progress.
//
// Every submission is stored under a deterministic idempotency key. The key
// document carries a ledger state (pending, applying, applied); moving it
// from pending to applying with a version check is the claim that lets
// exactly one request award XP. User counters are then updated with an
// optimistic compare-and-swap on the user document's version.
package progress

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

// Config tunes the service.
type Config struct {
	Policy ledger.Policy

	// MaxCASAttempts bounds optimistic retries on a contended document.
	MaxCASAttempts int
}

func DefaultConfig() Config {
	return Config{Policy: ledger.DefaultPolicy(), MaxCASAttempts: 5}
}

// StatsListener is told about every committed change to a user's counters.
type StatsListener interface {
	StatsChanged(ctx context.Context, userID string, o ledger.Outcome) error
}

// Service records submissions and applies their XP.
type Service struct {
	docs      store.Documents
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
	listeners []StatsListener
}

type Option func(*Service)

// WithClock overrides the time source used for streak dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithListener registers l for stats changes. Listener failures become
// warnings on the result.
func WithListener(l StatsListener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

func New(docs store.Documents, cfg Config, opts ...Option) *Service {
	if cfg.MaxCASAttempts < 1 {
		cfg.MaxCASAttempts = 1
	}
	s := &Service{docs: docs, cfg: cfg, now: time.Now, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Policy returns the XP policy in effect.
func (s *Service) Policy() ledger.Policy { return s.cfg.Policy }

func (s *Service) loadUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := store.Fetch(ctx, s.docs, model.Users, id, &u); err != nil {
		if store.IsNotFound(err) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, apperr.Upstream("load user", err)
	}
	return &u, nil
}

func (s *Service) loadChallenge(ctx context.Context, kind, id string) (*model.Challenge, error) {
	var c model.Challenge
	if err := store.Fetch(ctx, s.docs, model.Challenges, id, &c); err != nil {
		if store.IsNotFound(err) {
			return nil, apperr.NotFound(kind, id)
		}
		return nil, apperr.Upstream("load "+kind, err)
	}
	return &c, nil
}

func (s *Service) notify(ctx context.Context, eff *apperr.Collector, userID string, o ledger.Outcome) {
	for _, l := range s.listeners {
		eff.Check("stats listener", l.StatsChanged(ctx, userID, o))
	}
}
