package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/relay-agent/internal/metrics"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	require.NoError(t, metrics.Register(reg))

	metrics.ForcedFinals.Inc()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["relay_agent_forced_final_total"])
	assert.True(t, names["relay_agent_loop_iterations"])
}

func TestToolCalls_Labels(t *testing.T) {
	before := testutil.ToFloat64(metrics.ToolCalls.WithLabelValues("local", "ok"))
	metrics.ToolCalls.WithLabelValues("local", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ToolCalls.WithLabelValues("local", "ok")))
}
