package functions

import (
	"context"
	"encoding/json"

	"github.com/abhisek/synapse/internal/leaderboard"
)

type leaderboardRequest struct {
	Type   string `json:"type"`
	Limit  int    `json:"limit" validate:"gte=0"`
	UserID string `json:"userId"`
}

func (s *service) getLeaderboard(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req leaderboardRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	typ, err := leaderboard.ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	b, err := s.Leaderboard.Get(ctx, leaderboard.Request{Type: typ, Limit: req.Limit, UserID: req.UserID})
	if err != nil {
		return nil, err
	}
	return &Result{Data: b, Warnings: b.Warnings}, nil
}

type analyticsRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (s *service) getUserAnalytics(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req analyticsRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	sum, err := s.Analytics.ForUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &Result{Data: sum}, nil
}
