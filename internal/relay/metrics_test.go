package relay

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"relay_connected_clients",
		"relay_connections_total",
		"relay_messages_published_total",
		"relay_messages_delivered_total",
		"relay_messages_dropped_total",
		"relay_accept_errors_total",
	} {
		assert.True(t, names[want], "metric %s not registered", want)
	}
}
