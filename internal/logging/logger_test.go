package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "info", "json")).Info("client connected", "remote_addr", "127.0.0.1:5000")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "client connected", entry["msg"])
	assert.Equal(t, "127.0.0.1:5000", entry["remote_addr"])
}

func TestNewHandler_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		warnSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewHandler(&buf, tt.level, "text"))

			logger.Debug("debug line")
			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug line")))

			logger.Warn("warn line")
			assert.Equal(t, tt.warnSeen, bytes.Contains(buf.Bytes(), []byte("warn line")))
		})
	}
}
