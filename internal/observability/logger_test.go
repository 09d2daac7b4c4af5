package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with json config", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		}
		logger := NewLogger(cfg)

		// Logger should be valid (non-zero)
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with debug level", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "stdout",
		}
		logger := NewLogger(cfg)

		// Debug level should be enabled
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		}
		logger := NewLogger(cfg)

		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with pretty format", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "info",
			Format: "pretty",
			Output: "stderr",
		}
		logger := NewLogger(cfg)

		assert.NotEqual(t, zerolog.Logger{}, logger)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"TRACE", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"FATAL", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"PANIC", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	return logEntry
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	logger := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path})
	logger.Info().Msg("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"editorial-workflow-service"`)
	assert.Contains(t, string(data), "to file")
}

func TestWithSubmissionContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSubmissionContext(zerolog.New(&buf), 3, 1001)
	logger.Info().Msg("decision recorded")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, float64(3), logEntry["context_id"])
	assert.Equal(t, float64(1001), logEntry["submission_id"])
}

func TestWithRoundAndFileContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRoundContext(zerolog.New(&buf), 55, 3, 2)
	logger = WithFileContext(logger, 900, "review-revision")
	logger.Info().Msg("file moved")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, float64(55), logEntry["review_round_id"])
	assert.Equal(t, float64(3), logEntry["stage_id"])
	assert.Equal(t, float64(2), logEntry["round"])
	assert.Equal(t, float64(900), logEntry["submission_file_id"])
	assert.Equal(t, "review-revision", logEntry["file_stage"])
}

func TestWithJobContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithJobContext(zerolog.New(&buf), "round_status_refresh", "run-1")
	logger.Info().Msg("job done")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, "round_status_refresh", logEntry["job"])
	assert.Equal(t, "run-1", logEntry["job_run_id"])
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithRequestContextFull(context.Background(), RequestContext{
		RequestID: "req-9",
		UserID:    7,
		ContextID: 2,
	})

	logger := FromContext(ctx, zerolog.New(&buf))
	logger.Info().Msg("chained context")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, "req-9", logEntry["request_id"])
	assert.Equal(t, float64(7), logEntry["user_id"])
	assert.Equal(t, float64(2), logEntry["context_id"])
}
