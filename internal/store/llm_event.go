package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// eventRepo implements EventRepo over the llm_events collection.
type eventRepo struct {
	docs Documents
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	if _, err := r.docs.Create(ctx, CollectionLLMEvents, "", data); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error) {
	q := Query{OrderBy: FieldCreatedAt, Desc: true, Limit: opts.Limit}
	if opts.Purpose != "" {
		q.Filters = append(q.Filters, Eq("purpose", opts.Purpose))
	}
	if !opts.From.IsZero() {
		q.Filters = append(q.Filters, Gte(FieldCreatedAt, opts.From))
	}
	if !opts.To.IsZero() {
		q.Filters = append(q.Filters, Lte(FieldCreatedAt, opts.To))
	}

	events, err := FetchAll[LLMEvent](ctx, r.docs, CollectionLLMEvents, q)
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	out := make([]LLMEvent, len(events))
	for i, e := range events {
		out[i] = *e
	}
	return out, nil
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id string) (*LLMEvent, error) {
	var e LLMEvent
	if err := Fetch(ctx, r.docs, CollectionLLMEvents, id, &e); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get LLM event: %w", err)
	}
	return &e, nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]LLMPurposeUsage, error) {
	events, err := r.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		return nil, err
	}
	byPurpose := map[string]*LLMPurposeUsage{}
	latency := map[string]int64{}
	for _, e := range events {
		u, ok := byPurpose[e.Purpose]
		if !ok {
			u = &LLMPurposeUsage{Purpose: e.Purpose}
			byPurpose[e.Purpose] = u
		}
		u.Calls++
		u.InputTokens += e.InputTokens
		u.OutputTokens += e.OutputTokens
		latency[e.Purpose] += e.LatencyMs
	}

	out := make([]LLMPurposeUsage, 0, len(byPurpose))
	for p, u := range byPurpose {
		u.AvgLatencyMs = latency[p] / int64(u.Calls)
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Purpose < out[j].Purpose })
	return out, nil
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error) {
	events, err := r.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		return nil, err
	}
	byModel := map[string]*LLMModelUsage{}
	for _, e := range events {
		u, ok := byModel[e.Model]
		if !ok {
			u = &LLMModelUsage{Model: e.Model}
			byModel[e.Model] = u
		}
		u.Calls++
		u.InputTokens += e.InputTokens
		u.OutputTokens += e.OutputTokens
	}

	out := make([]LLMModelUsage, 0, len(byModel))
	for _, u := range byModel {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}
