// Package metrics holds the prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "briefcast"

var (
	Registry = prometheus.NewRegistry()

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall time of each pipeline stage.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage", "outcome"})

	BranchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "branch_failures_total",
		Help:      "Fan-out branches replaced by an empty result.",
	}, []string{"group"})

	DebateRounds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "debate_rounds",
		Help:      "Rounds run per ticker debate.",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	DebateOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "debate_outcomes_total",
		Help:      "Debate conclusions by action and whether consensus was reached.",
	}, []string{"action", "consensus"})

	LLMCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "Chat model calls by profile and outcome.",
	}, []string{"profile", "outcome"})

	ToolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool and outcome.",
	}, []string{"tool", "outcome"})

	TurnsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_dropped_total",
		Help:      "Script turns removed by normalization.",
	})
)

func init() {
	Registry.MustRegister(
		StageDuration,
		BranchFailures,
		DebateRounds,
		DebateOutcomes,
		LLMCalls,
		ToolCalls,
		TurnsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
