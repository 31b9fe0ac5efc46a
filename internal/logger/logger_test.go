package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/creator-coin-ledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLevel(tc.in))
		})
	}
}

func TestNewLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{
		Application: config.ApplicationConfig{Name: "coins", Env: "test"},
		Logging:     config.LoggingConfig{Level: "warn"},
	}

	log := NewLoggerWithWriter(cfg, &buf)

	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))

	log.Warn("wallet frozen", "owner_id", "u1")
	out := buf.String()
	assert.Contains(t, out, `"msg":"wallet frozen"`)
	assert.Contains(t, out, `"app":"coins"`)
	assert.Contains(t, out, `"env":"test"`)
	assert.Contains(t, out, `"owner_id":"u1"`)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
