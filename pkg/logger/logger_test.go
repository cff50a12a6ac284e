package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_TagsService(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("promotion-service", "info", &buf)

	l.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "promotion-service", entry["service"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("promotion-service", "warn", &buf)

	l.Info("suppressed")
	assert.Zero(t, buf.Len())

	l.Warn("emitted")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-123")

	assert.Equal(t, "corr-123", CorrelationIDFromContext(ctx))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("promotion-service", "info", &buf)

	ctx := NewContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))

	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithContext_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("promotion-service", "info", &buf)

	ctx := WithCorrelationID(context.Background(), "corr-123")
	WithContext(ctx, l).Info("tagged")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-123", entry["correlation_id"])
}
