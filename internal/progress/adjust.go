package progress

import (
	"context"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/ledger"
)

// MaxGrant is the largest XP a single Adjust call may grant.
const MaxGrant = 100000

// AdjustResult reports a direct XP grant.
type AdjustResult struct {
	Outcome  ledger.Outcome
	Warnings []string
}

// Adjust grants xpToAdd to the user and touches their streak. Unlike
// submissions it is not idempotent: every call grants again.
func (s *Service) Adjust(ctx context.Context, userID string, xpToAdd int) (*AdjustResult, error) {
	if xpToAdd < 0 || xpToAdd > MaxGrant {
		return nil, apperr.Validation("xpToAdd must be between 0 and %d", MaxGrant)
	}
	eff := apperr.NewCollector(s.logger.With(zap.String("userId", userID)))
	now := s.now()

	o, err := s.updateStats(ctx, userID, func(st ledger.Stats) ledger.Outcome {
		return s.cfg.Policy.Adjust(st, xpToAdd, now)
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, eff, userID, o)
	return &AdjustResult{Outcome: o, Warnings: eff.Warnings()}, nil
}
