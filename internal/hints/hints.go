// Package hints generates Socratic hints and new thinking challenges with
// a language model.
package hints

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abhisek/synapse/internal/llm"
)

// HintInput is the challenge a hint is asked for.
type HintInput struct {
	Title     string
	Text      string
	UserQuery string
}

// ChallengeInput seeds a generated challenge.
type ChallengeInput struct {
	Topics         []string
	PriorQuestions []string
}

// Generated is a model-written challenge.
type Generated struct {
	Title      string `json:"title"`
	Question   string `json:"question"`
	Difficulty string `json:"difficulty"`
}

// RejectedError is a generated challenge that failed a quality check.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "generated challenge rejected: " + e.Reason
}

// Generator talks to the configured provider.
type Generator struct {
	provider llm.Provider
	cfg      Config
}

func New(provider llm.Provider, cfg Config) *Generator {
	return &Generator{provider: provider, cfg: cfg}
}

// Hint returns a short Socratic nudge for the challenge.
func (g *Generator) Hint(ctx context.Context, in HintInput) (string, error) {
	ctx = llm.WithPurpose(ctx, "hint")

	req := llm.Ask(hintSystemPrompt, buildHintMessage(in), g.cfg.MaxTokens)
	req.Temperature = g.cfg.Temperature
	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate hint: %w", err)
	}
	return resp.Text(), nil
}

// Challenge writes a new open question connecting the topics.
func (g *Generator) Challenge(ctx context.Context, in ChallengeInput) (*Generated, error) {
	ctx = llm.WithPurpose(ctx, "challenge-gen")

	req := llm.Ask(fmt.Sprintf(challengeSystemPrompt, g.cfg.MaxQuestionLen), buildChallengeMessage(in, g.cfg), g.cfg.ChallengeMaxTokens)
	req.Schema = challengeSchema(g.cfg.MaxQuestionLen)
	req.Temperature = g.cfg.Temperature

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	var out Generated
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Question = strings.TrimSpace(out.Question)
	if err := g.check(&out, in.PriorQuestions); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Generator) check(c *Generated, prior []string) error {
	if c.Question == "" {
		return &RejectedError{Reason: "empty question"}
	}
	if n := utf8.RuneCountInString(c.Question); g.cfg.MaxQuestionLen > 0 && n > g.cfg.MaxQuestionLen {
		return &RejectedError{Reason: fmt.Sprintf("question is %d characters, limit %d", n, g.cfg.MaxQuestionLen)}
	}
	for _, p := range prior {
		if strings.EqualFold(strings.TrimSpace(p), c.Question) {
			return &RejectedError{Reason: "question repeats an earlier one"}
		}
	}
	return nil
}
