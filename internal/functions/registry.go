// Package functions implements the named request handlers. Each function
// takes a JSON body and returns an Envelope; the HTTP server and the CLI
// both invoke them through a Registry.
package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/apperr"
)

// Envelope is the JSON shape of every function response.
type Envelope struct {
	Success  bool     `json:"success"`
	Data     any      `json:"data,omitempty"`
	Error    string   `json:"error,omitempty"`
	Code     string   `json:"code,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Result is a successful handler outcome.
type Result struct {
	Data     any
	Warnings []string
}

// Handler runs one function against a raw JSON body.
type Handler func(ctx context.Context, body json.RawMessage) (*Result, error)

// Observer is told about every invocation, e.g. to record metrics.
type Observer interface {
	ObserveInvocation(function string, status int, elapsed time.Duration)
}

// Registry maps function names to handlers.
type Registry struct {
	handlers  map[string]Handler
	logger    *zap.Logger
	observers []Observer
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{handlers: map[string]Handler{}, logger: logger}
}

// Register adds h under name, replacing any earlier handler.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

func (r *Registry) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// Names returns the registered function names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Invoke runs the named function and returns the HTTP status and envelope.
func (r *Registry) Invoke(ctx context.Context, name string, body []byte) (int, Envelope) {
	start := time.Now()
	log := r.logger.With(zap.String("function", name))

	status, env := r.invoke(ctx, log, name, body)

	elapsed := time.Since(start)
	for _, o := range r.observers {
		o.ObserveInvocation(name, status, elapsed)
	}
	log.Debug("function invoked", zap.Int("status", status), zap.Duration("elapsed", elapsed))
	return status, env
}

func (r *Registry) invoke(ctx context.Context, log *zap.Logger, name string, body []byte) (int, Envelope) {
	h, ok := r.handlers[name]
	if !ok {
		return failure(log, apperr.NotFound("function", name))
	}
	res, err := h(ctx, body)
	if err != nil {
		return failure(log, err)
	}
	if res == nil {
		res = &Result{}
	}
	return http.StatusOK, Envelope{Success: true, Data: res.Data, Warnings: res.Warnings}
}

func failure(log *zap.Logger, err error) (int, Envelope) {
	e := apperr.As(err)
	status := e.Status()
	if status >= http.StatusInternalServerError {
		log.Error("function failed", zap.String("code", e.Code), zap.Error(err))
	} else {
		log.Info("function rejected request", zap.String("code", e.Code), zap.String("error", e.Message))
	}
	return status, Envelope{Success: false, Error: e.Message, Code: e.Code}
}
