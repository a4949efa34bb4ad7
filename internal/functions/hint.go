package functions

import (
	"context"
	"encoding/json"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/hints"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

type hintRequest struct {
	QuestionID   string `json:"questionId"`
	ChallengeID  string `json:"challengeId"`
	QuestionText string `json:"questionText"`
	UserQuery    string `json:"userQuery" validate:"max=1000"`
}

func (s *service) getAIHint(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req hintRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	id := req.QuestionID
	if id == "" {
		id = req.ChallengeID
	}
	if id == "" && req.QuestionText == "" {
		return nil, apperr.Validation("Missing required fields: questionId or questionText")
	}
	gen, err := s.hintsOrErr()
	if err != nil {
		return nil, err
	}

	in := hints.HintInput{Text: req.QuestionText, UserQuery: req.UserQuery}
	if id != "" {
		var c model.Challenge
		if err := store.Fetch(ctx, s.Docs, model.Challenges, id, &c); err != nil {
			if store.IsNotFound(err) {
				return nil, apperr.NotFound("challenge", id)
			}
			return nil, apperr.Upstream("load challenge", err)
		}
		in.Title = c.Title
		in.Text = c.Prompt()
	}

	hint, err := gen.Hint(ctx, in)
	if err != nil {
		return nil, generationError("generate hint", err)
	}
	data := map[string]any{"hint": hint}
	if id != "" {
		data["questionId"] = id
	}
	return &Result{Data: data}, nil
}
