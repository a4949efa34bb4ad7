// Package metrics exposes Prometheus collectors for function invocations
// and progress events.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/store"
)

const namespace = "synapse"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	xpAwarded   prometheus.Counter
	levelUps    prometheus.Counter
	streaks     *prometheus.CounterVec
	llmCalls    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_invocations_total",
			Help:      "Function invocations by name and HTTP status.",
		}, []string{"function", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "function_duration_seconds",
			Help:      "Function latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_awarded_total",
			Help:      "XP added to user totals.",
		}),
		levelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Level increases.",
		}),
		streaks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streak_changes_total",
			Help:      "Stats updates by streak transition.",
		}, []string{"gap"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM calls by purpose and result.",
		}, []string{"purpose", "result"}),
	}
	m.registry.MustRegister(
		m.invocations, m.duration, m.xpAwarded, m.levelUps, m.streaks, m.llmCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveInvocation records one function call.
func (m *Metrics) ObserveInvocation(function string, status int, elapsed time.Duration) {
	m.invocations.WithLabelValues(function, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(function).Observe(elapsed.Seconds())
}

// StatsChanged records XP and level movement from a committed update.
func (m *Metrics) StatsChanged(_ context.Context, _ string, o ledger.Outcome) error {
	if o.XPEarned > 0 {
		m.xpAwarded.Add(float64(o.XPEarned))
	}
	if o.LeveledUp {
		m.levelUps.Inc()
	}
	m.streaks.WithLabelValues(o.Streak.Gap.String()).Inc()
	return nil
}

// ObserveLLM records the outcome of one model call.
func (m *Metrics) ObserveLLM(purpose string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	if purpose == "" {
		purpose = "unknown"
	}
	m.llmCalls.WithLabelValues(purpose, result).Inc()
}

// WrapEvents counts every LLM event before it is stored by events. A nil
// events only counts.
func (m *Metrics) WrapEvents(events store.EventRepo) store.EventRepo {
	return &countingEvents{EventRepo: events, m: m}
}

type countingEvents struct {
	store.EventRepo
	m *Metrics
}

func (c *countingEvents) AppendLLMRequest(ctx context.Context, data store.LLMRequestEventData) error {
	c.m.ObserveLLM(data.Purpose, data.Success)
	if c.EventRepo == nil {
		return nil
	}
	return c.EventRepo.AppendLLMRequest(ctx, data)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
