package functions

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
	"github.com/abhisek/synapse/internal/model"
	"github.com/abhisek/synapse/internal/store"
)

type topicRequest struct {
	Action      string  `json:"action"`
	TopicID     string  `json:"topicId"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    *string `json:"category"`
}

func (s *service) manageTopics(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req topicRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}

	switch req.Action {
	case "create":
		if req.Name == "" || req.Description == "" {
			return nil, apperr.Validation("Missing required fields: name, description")
		}
		t := model.Topic{Name: req.Name, Description: req.Description}
		if req.Category != nil {
			t.Category = *req.Category
		}
		doc, err := s.Docs.Create(ctx, model.Topics, req.TopicID, t)
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return nil, apperr.Conflict("topic "+req.TopicID+" already exists", err)
			}
			return nil, apperr.Upstream("create topic", err)
		}
		return topicResult(doc)

	case "update":
		if req.TopicID == "" {
			return nil, apperr.Validation("Missing required fields: topicId")
		}
		patch := map[string]any{}
		if req.Name != "" {
			patch["name"] = req.Name
		}
		if req.Description != "" {
			patch["description"] = req.Description
		}
		if req.Category != nil {
			patch["category"] = *req.Category
		}
		doc, err := s.Docs.Update(ctx, model.Topics, req.TopicID, patch)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, apperr.NotFound("topic", req.TopicID)
			}
			return nil, apperr.Upstream("update topic", err)
		}
		return topicResult(doc)

	case "delete":
		if req.TopicID == "" {
			return nil, apperr.Validation("Missing required fields: topicId")
		}
		if err := s.Docs.Delete(ctx, model.Topics, req.TopicID); err != nil {
			if store.IsNotFound(err) {
				return nil, apperr.NotFound("topic", req.TopicID)
			}
			return nil, apperr.Upstream("delete topic", err)
		}
		return &Result{Data: map[string]any{"message": "Topic deleted", "topicId": req.TopicID}}, nil

	case "list":
		docs, err := s.Docs.List(ctx, model.Topics, store.Query{OrderBy: "name"})
		if err != nil {
			return nil, apperr.Upstream("list topics", err)
		}
		topics := make([]map[string]any, 0, len(docs))
		for _, d := range docs {
			f, err := d.Fields()
			if err != nil {
				return nil, apperr.Upstream("list topics", err)
			}
			topics = append(topics, f)
		}
		return &Result{Data: map[string]any{"topics": topics}}, nil

	default:
		return nil, apperr.Validation("Invalid action. Use: create, update, delete, list")
	}
}

func topicResult(doc *store.Document) (*Result, error) {
	f, err := doc.Fields()
	if err != nil {
		return nil, apperr.Upstream("decode topic", err)
	}
	return &Result{Data: map[string]any{"topic": f}}, nil
}

type feedbackRequest struct {
	UserID       string `json:"userId" validate:"required"`
	FeedbackText string `json:"feedbackText" validate:"required,max=5000"`
}

func (s *service) submitFeedback(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req feedbackRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	doc, err := s.Docs.Create(ctx, model.Feedback, "", model.FeedbackEntry{
		UserID:       req.UserID,
		FeedbackText: req.FeedbackText,
		Status:       "new",
	})
	if err != nil {
		return nil, apperr.Upstream("save feedback", err)
	}
	return &Result{Data: map[string]any{"feedbackId": doc.ID}}, nil
}

// identityUser is the account payload sent by the identity provider.
type identityUser struct {
	ID    string `json:"$id" validate:"required"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *service) onUserCreate(ctx context.Context, body json.RawMessage) (*Result, error) {
	var req identityUser
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	_, created, err := store.Claim(ctx, s.Docs, model.Users, req.ID, model.NewUser(req.ID, req.Email, req.Name))
	if err != nil {
		return nil, apperr.Upstream("create user profile", err)
	}
	msg := "User profile created"
	if created {
		s.Logger.Info("user profile created", zap.String("userId", req.ID))
	} else {
		msg = "User profile already exists"
	}
	return &Result{Data: map[string]any{"userId": req.ID, "created": created, "message": msg}}, nil
}
