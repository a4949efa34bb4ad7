package progress

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

// updateStats runs next against the user's current counters and writes the
// result if the user document has not changed in between. On a version
// conflict the read-compute-write cycle is repeated.
func (s *Service) updateStats(ctx context.Context, userID string, next func(ledger.Stats) ledger.Outcome) (ledger.Outcome, error) {
	for attempt := 1; attempt <= s.cfg.MaxCASAttempts; attempt++ {
		doc, err := s.docs.Get(ctx, model.Users, userID)
		if err != nil {
			if store.IsNotFound(err) {
				return ledger.Outcome{}, apperr.NotFound("user", userID)
			}
			return ledger.Outcome{}, apperr.Upstream("load user", err)
		}
		var u model.User
		if err := doc.Decode(&u); err != nil {
			return ledger.Outcome{}, apperr.Upstream("load user", err)
		}

		o := next(u.Stats())
		_, err = s.docs.Update(ctx, model.Users, userID, model.StatsPatch(o.After), store.IfVersion(doc.Version))
		switch {
		case err == nil:
			return o, nil
		case errors.Is(err, store.ErrVersionConflict):
			s.logger.Debug("user stats changed concurrently",
				zap.String("userId", userID), zap.Int("attempt", attempt))
		case store.IsNotFound(err):
			return ledger.Outcome{}, apperr.NotFound("user", userID)
		default:
			return ledger.Outcome{}, apperr.Upstream("update user stats", err)
		}
	}
	return ledger.Outcome{}, apperr.Conflict(
		fmt.Sprintf("user %s is being updated concurrently, try again", userID), store.ErrVersionConflict)
}
