package functions

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/hints"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/selection"
	"github.com/abhisek/synapse/internal/store"
)

type selectRequest struct {
	UserID  string `json:"userId" validate:"required"`
	Mode    string `json:"mode" validate:"omitempty,oneof=recommended all"`
	TopicID string `json:"topicId"`
}

func (s *service) getChallengeForUser(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req selectRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	res, err := s.Selector.Serve(ctx, selection.Request{
		UserID:  req.UserID,
		Mode:    selection.Mode(req.Mode),
		TopicID: req.TopicID,
	})
	if err != nil {
		return nil, err
	}
	data := res.Challenge.Public()
	data["poolSize"] = res.PoolSize
	if res.HistoryID != "" {
		data["historyId"] = res.HistoryID
	}
	return &Result{Data: data, Warnings: res.Warnings}, nil
}

type questionRequest struct {
	UserID  string `json:"userId" validate:"required"`
	TopicID string `json:"topicId"`
}

func (s *service) getQuestion(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req questionRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	res, err := s.Selector.Choose(ctx, selection.Request{
		UserID:  req.UserID,
		Mode:    selection.ModeRecommended,
		TopicID: req.TopicID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Data: map[string]any{"question": res.Challenge.Public()}}, nil
}

type viewRequest struct {
	UserID      string `json:"userId" validate:"required"`
	QuestionID  string `json:"questionId" validate:"required_without=ChallengeID"`
	ChallengeID string `json:"challengeId"`
}

func (s *service) recordQuestionView(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req viewRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	id := req.QuestionID
	if id == "" {
		id = req.ChallengeID
	}
	historyID, created, err := s.Selector.RecordView(ctx, req.UserID, id)
	if err != nil {
		return nil, apperr.Upstream("record question view", err)
	}
	return &Result{Data: map[string]any{"historyId": historyID, "created": created}}, nil
}

type generateRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (s *service) generateUniqueChallenge(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req generateRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	gen, err := s.hintsOrErr()
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := store.Fetch(ctx, s.Docs, model.Users, req.UserID, &user); err != nil {
		if store.IsNotFound(err) {
			return nil, apperr.NotFound("user", req.UserID)
		}
		return nil, apperr.Upstream("load user", err)
	}
	if len(user.SelectedTopics) == 0 {
		return nil, apperr.NotSelectable(apperr.CodeNoTopicsSelected, "User has no selected topics")
	}

	eff := apperr.NewCollector(s.Logger.With(zap.String("function", GenerateUniqueChallenge), zap.String("userId", req.UserID)))
	prior, err := store.FetchAll[model.Challenge](ctx, s.Docs, model.Challenges, store.Query{
		Filters: []store.Filter{store.Eq("createdFor", req.UserID)},
		OrderBy: store.FieldCreatedAt,
		Desc:    true,
		Limit:   s.HintsConfig.MaxPriorQuestions,
	})
	eff.Check("load earlier generated challenges", err)
	var priorQuestions []string
	for i := len(prior) - 1; i >= 0; i-- {
		priorQuestions = append(priorQuestions, prior[i].Prompt())
	}

	out, err := gen.Challenge(ctx, hints.ChallengeInput{
		Topics:         s.topicNames(ctx, user.SelectedTopics),
		PriorQuestions: priorQuestions,
	})
	if err != nil {
		return nil, generationError("generate challenge", err)
	}

	c := model.Challenge{
		Title:           out.Title,
		CoreProvocation: out.Question,
		TopicID:         user.SelectedTopics[0],
		Type:            model.TypeText,
		Difficulty:      out.Difficulty,
		Status:          model.StatusUnused,
		Source:          model.SourceAIGenerated,
		CreatedFor:      req.UserID,
	}
	doc, err := s.Docs.Create(ctx, model.Challenges, "", c)
	if err != nil {
		return nil, apperr.Upstream("save generated challenge", err)
	}
	c.ID = doc.ID

	data := c.Public()
	data["source"] = c.Source
	return &Result{Data: data, Warnings: eff.Warnings()}, nil
}

// topicNames resolves topic ids to names, keeping the id when a topic is
// missing.
func (s *service) topicNames(ctx context.Context, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		var t model.Topic
		if err := store.Fetch(ctx, s.Docs, model.Topics, id, &t); err != nil || t.Name == "" {
			names = append(names, id)
			continue
		}
		names = append(names, t.Name)
	}
	return names
}
