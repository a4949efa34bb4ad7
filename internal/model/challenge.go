package model

import (
	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/store"
)

type ChallengeType string

const (
	TypeText ChallengeType = "text"
	TypeMCQ  ChallengeType = "mcq"
)

const (
	StatusUnused = "unused"
	StatusUsed   = "used"

	SourceCurated     = "curated"
	SourceAIGenerated = "ai_generated"
)

// Challenge is a thinking prompt, optionally split into sub-questions. A
// multiple-choice question is a challenge of TypeMCQ with Options.
type Challenge struct {
	store.Meta
	Title           string        `json:"title,omitempty" yaml:"title"`
	CoreProvocation string        `json:"coreProvocation,omitempty" yaml:"coreProvocation"`
	Question        string        `json:"question,omitempty" yaml:"question"`
	TopicID         string        `json:"topicId" yaml:"topicId"`
	Type            ChallengeType `json:"type" yaml:"type"`
	Questions       []string      `json:"questions,omitempty" yaml:"questions"`
	Options         []string      `json:"options,omitempty" yaml:"options"`
	CorrectAnswer   string        `json:"correctAnswer,omitempty" yaml:"correctAnswer"`
	Hints           []string      `json:"hints,omitempty" yaml:"hints"`
	Difficulty      string        `json:"difficulty,omitempty" yaml:"difficulty"`
	Status          string        `json:"status,omitempty" yaml:"status"`
	Source          string        `json:"source,omitempty" yaml:"source"`
	CreatedFor      string        `json:"createdFor,omitempty" yaml:"-"`
}

// Prompt is the text shown to the learner.
func (c *Challenge) Prompt() string {
	switch {
	case c.CoreProvocation != "":
		return c.CoreProvocation
	case c.Question != "":
		return c.Question
	default:
		return c.Title
	}
}

// UnitKind maps the challenge type onto the ledger's scoring kind.
func (c *Challenge) UnitKind() ledger.UnitKind {
	if c.Type == TypeMCQ {
		return ledger.KindChoice
	}
	return ledger.KindText
}

// Public is the challenge as served to a learner, without the answer key.
func (c *Challenge) Public() map[string]any {
	typ := c.Type
	if typ == "" {
		typ = TypeText
	}
	out := map[string]any{
		"id":              c.ID,
		"title":           c.Title,
		"question":        c.Prompt(),
		"coreProvocation": c.CoreProvocation,
		"topicId":         c.TopicID,
		"type":            typ,
		"options":         nonNil(c.Options),
		"hints":           nonNil(c.Hints),
		"questions":       nonNil(c.Questions),
	}
	if c.Difficulty != "" {
		out["difficulty"] = c.Difficulty
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Topic groups challenges by subject.
type Topic struct {
	store.Meta
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category,omitempty" yaml:"category"`
}

// FeedbackEntry is free-form product feedback from a user.
type FeedbackEntry struct {
	store.Meta
	UserID       string `json:"userId"`
	FeedbackText string `json:"feedbackText"`
	Status       string `json:"status"`
}
