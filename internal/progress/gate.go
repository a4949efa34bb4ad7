package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

type gateState struct {
	LedgerState model.LedgerState `json:"ledgerState"`
}

// claim moves the ledger state of collection/id from pending to applying.
// It returns the state found when the claim is refused: applying means
// another request is awarding right now, applied that the award is done.
// Documents without a state count as pending.
func (s *Service) claim(ctx context.Context, collection, id string) (bool, model.LedgerState, error) {
	for range s.cfg.MaxCASAttempts {
		doc, err := s.docs.Get(ctx, collection, id)
		if err != nil {
			return false, "", apperr.Upstream("load ledger state", err)
		}
		var g gateState
		if err := doc.Decode(&g); err != nil {
			return false, "", apperr.Upstream("load ledger state", err)
		}
		if g.LedgerState != "" && g.LedgerState != model.LedgerPending {
			return false, g.LedgerState, nil
		}

		_, err = s.docs.Update(ctx, collection, id,
			map[string]any{"ledgerState": model.LedgerApplying}, store.IfVersion(doc.Version))
		if err == nil {
			return true, model.LedgerApplying, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return false, "", apperr.Upstream("claim ledger state", err)
		}
	}
	return false, "", apperr.Conflict(fmt.Sprintf("%s %s is being updated concurrently, try again", collection, id), store.ErrVersionConflict)
}

// release hands a claim back so a later retry can resume the award.
func (s *Service) release(ctx context.Context, collection, id string) error {
	_, err := s.docs.Update(ctx, collection, id, map[string]any{"ledgerState": model.LedgerPending})
	return err
}

// commit marks the award done, merging extra fields into the document.
func (s *Service) commit(ctx context.Context, collection, id string, extra map[string]any) error {
	patch := map[string]any{"ledgerState": model.LedgerApplied}
	for k, v := range extra {
		patch[k] = v
	}
	_, err := s.docs.Update(ctx, collection, id, patch)
	return err
}

// settle finishes a claimed award: on failure the claim is released and
// the error classified; a user deleted mid-flight is only a warning.
// It reports whether the award was applied.
func (s *Service) settle(ctx context.Context, eff *apperr.Collector, collection, id, userID string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	eff.Check("release ledger claim", s.release(ctx, collection, id))
	if apperr.IsKind(err, apperr.KindNotFound) {
		eff.Warn("user %s no longer exists; submission saved without XP", userID)
		return false, nil
	}
	return false, err
}

// claimHistory claims the history gate of (userID, challengeID), creating the
// record when the challenge was never shown. Every submit path awards through
// this gate, so a challenge pays out once however it is answered.
func (s *Service) claimHistory(ctx context.Context, userID, challengeID string, now time.Time) (bool, model.LedgerState, error) {
	key := store.IdempotencyKey(userID, challengeID)
	if _, _, err := store.Claim(ctx, s.docs, model.History, key, model.NewHistory(userID, challengeID, now)); err != nil {
		return false, "", apperr.Upstream("record challenge history", err)
	}
	return s.claim(ctx, model.History, key)
}

// answeredSingly reports whether the challenge has a single-prompt response.
func (s *Service) answeredSingly(ctx context.Context, userID, challengeID string) (bool, error) {
	_, err := s.docs.Get(ctx, model.Responses, store.IdempotencyKey(userID, challengeID))
	switch {
	case err == nil:
		return true, nil
	case store.IsNotFound(err):
		return false, nil
	default:
		return false, apperr.Upstream("load response", err)
	}
}

// answeredInParts reports whether the challenge has sub-question responses.
func (s *Service) answeredInParts(ctx context.Context, userID, challengeID string) (bool, error) {
	list, err := s.docs.List(ctx, model.Responses, store.Query{
		Filters: []store.Filter{
			store.Eq("userId", userID),
			store.Eq("challengeId", challengeID),
			store.Gte("questionIndex", 0),
		},
		Limit: 1,
	})
	if err != nil {
		return false, apperr.Upstream("list challenge answers", err)
	}
	return len(list) > 0, nil
}
