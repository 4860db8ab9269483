package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, "", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10, cfg.QueueCapacity)
	assert.Equal(t, 65536, cfg.MaxLineLength)
	assert.Equal(t, 10, cfg.AcceptRetryLimit)
	assert.Equal(t, time.Second, cfg.AcceptBackoffMax)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("RELAY_ADDR", "0.0.0.0:9000")
	t.Setenv("METRICS_ADDR", ":9090")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("QUEUE_CAPACITY", "64")
	t.Setenv("MAX_LINE_LENGTH", "1024")
	t.Setenv("ACCEPT_BACKOFF_MAX", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 64, cfg.QueueCapacity)
	assert.Equal(t, 1024, cfg.MaxLineLength)
	assert.Equal(t, 250*time.Millisecond, cfg.AcceptBackoffMax)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero queue capacity", "QUEUE_CAPACITY", "0", "QUEUE_CAPACITY must be at least 1, got 0"},
		{"tiny line length", "MAX_LINE_LENGTH", "8", "MAX_LINE_LENGTH must be at least 16, got 8"},
		{"zero retry limit", "ACCEPT_RETRY_LIMIT", "0", "ACCEPT_RETRY_LIMIT must be at least 1, got 0"},
		{"unknown log format", "LOG_FORMAT", "xml", `LOG_FORMAT must be text or json, got "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_UnparsableNumber(t *testing.T) {
	t.Setenv("QUEUE_CAPACITY", "lots")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load environment variables")
}

func TestValidate_EmptyAddr(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Addr = ""
	assert.EqualError(t, cfg.Validate(), "RELAY_ADDR is required")
}
