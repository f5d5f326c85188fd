// Package metrics exposes Prometheus instrumentation for the agent.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var ToolCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "relay_agent_tool_calls_total",
		Help: "Tool invocations dispatched, by source (local, remote, missing) and outcome (ok, error).",
	},
	[]string{"source", "outcome"},
)

var ToolPanics = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "relay_agent_tool_panics_total",
		Help: "Tool handlers that panicked and were recovered into an error result.",
	},
)

var ConnectAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "relay_agent_connect_attempts_total",
		Help: "Tool-provider handshake attempts by outcome.",
	},
	[]string{"outcome"},
)

var PlaceholderResults = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "relay_agent_placeholder_results_total",
		Help: "Tool results synthesized during history reconstruction.",
	},
)

var OrphanResults = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "relay_agent_orphan_result_rows_total",
		Help: "Stored result rows skipped because no preceding invocation claimed them.",
	},
)

var EvictedTurns = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "relay_agent_evicted_turns_total",
		Help: "Turns dropped from the oldest end to fit the token budget.",
	},
)

var LoopIterations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "relay_agent_loop_iterations",
		Help:    "Tool-executing iterations per completed loop.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	},
)

var ForcedFinals = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "relay_agent_forced_final_total",
		Help: "Loops that hit the iteration cap and issued a tools-disabled final call.",
	},
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ToolCalls,
		ToolPanics,
		ConnectAttempts,
		PlaceholderResults,
		OrphanResults,
		EvictedTurns,
		LoopIterations,
		ForcedFinals,
	}
}

// Register adds every collector to reg. Collectors already registered with
// reg are skipped so Register may be called more than once.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
