package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
)

// Normalized stop reasons.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
	StopError     = "error"
)

var errEmptyReply = errors.New("empty reply")

// finish turns a vendor reply into a Response, enforcing the request schema.
// A structured reply cut off by the token limit is never valid JSON, so it is
// reported as ErrMaxTokensExceeded rather than retried as invalid.
func finish(req Request, content json.RawMessage, usage Usage, model, stop string) (*Response, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return nil, &ErrInvalidResponse{Err: errEmptyReply}
	}
	if req.Schema != nil {
		if stop == StopMaxTokens {
			return nil, &ErrMaxTokensExceeded{Content: content}
		}
		if err := validateResponse(req.Schema, content); err != nil {
			return nil, err
		}
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	return &Response{Content: content, Usage: usage, Model: model, StopReason: stop}, nil
}

// classifyStatus maps an HTTP status from a vendor SDK error onto the
// error types the retry policy understands.
func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &ErrRateLimit{Err: err}
	case status >= 400 && status < 500 && status != http.StatusRequestTimeout:
		return &ErrRejected{Status: status, Err: err}
	default:
		return &ErrProviderUnavailable{Err: err}
	}
}

// resolveModel maps a short alias to a vendor model ID. Unknown names pass
// through so full IDs work too.
func resolveModel(name string, aliases map[string]string) string {
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}
