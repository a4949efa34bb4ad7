package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider generates completions from a language model.
type Provider interface {
	// Generate sends the request and returns the model output. When
	// req.Schema is set the Content is a JSON object matching it; otherwise
	// Content holds the raw reply text.
	Generate(ctx context.Context, req Request) (*Response, error)

	ModelID() string
}

// Request is a single-turn or multi-turn prompt.
type Request struct {
	System    string
	Messages  []Message
	Schema    *Schema // nil requests free text
	MaxTokens int

	// Temperature in [0, 1]. Zero means deterministic.
	Temperature float64
}

// Ask builds a one-message request.
func Ask(system, user string, maxTokens int) Request {
	return Request{
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: user}},
		MaxTokens: maxTokens,
	}
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a JSON Schema the reply must satisfy. Name is kebab-case and is
// used as the tool or schema name by providers that need one.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string // "end", "max_tokens" or "error"
}

// Text returns the reply as plain text. A JSON string payload is unquoted;
// anything else is returned verbatim.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Content, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(r.Content))
}

// Decode unmarshals a structured reply into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Content, v); err != nil {
		return &ErrInvalidResponse{Content: r.Content, Err: err}
	}
	return nil
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
