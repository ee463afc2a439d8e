package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"未知", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestValidationLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewValidationLoggerFrom(zerolog.New(&buf).Level(zerolog.DebugLevel))

	l.ValidationComplete(12*time.Millisecond, 2, 1, false)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "validator", entry["component"])
	assert.Equal(t, float64(2), entry["hard"])
	assert.Equal(t, false, entry["valid"])
}

func TestValidationLogger_EvaluatorFailed(t *testing.T) {
	var buf bytes.Buffer
	l := NewValidationLoggerFrom(zerolog.New(&buf))

	l.EvaluatorFailed("MIN_STAFFING", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "MIN_STAFFING", entry["evaluator"])
	assert.Equal(t, "boom", entry["error"])
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	prev := logger
	logger = zerolog.New(&buf).Level(zerolog.InfoLevel)
	defer func() { logger = prev }()

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithOrgID(ctx, "org-9")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))

	WithContext(ctx).Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "org-9", entry["org_id"])
}
