package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log entry.
const ServiceName = "editorial-workflow-service"

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is the output destination (stdout, stderr, or a file path).
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			output = os.Stderr
			break
		}
		output = f
	}

	// Configure time format
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	// Use console writer for pretty output in development
	if strings.ToLower(cfg.Format) == "console" || strings.ToLower(cfg.Format) == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	logger := zerolog.New(output).With().Timestamp().Str("service", ServiceName)

	// Add caller information if configured
	if cfg.AddSource {
		logger = logger.Caller()
	}

	// Build the final logger
	log := logger.Logger()

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	log = log.Level(level)

	return log
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithSubmissionContext adds submission fields to a logger.
func WithSubmissionContext(logger zerolog.Logger, contextID, submissionID int64) zerolog.Logger {
	return logger.With().
		Int64("context_id", contextID).
		Int64("submission_id", submissionID).
		Logger()
}

// WithRoundContext adds review round fields to a logger.
func WithRoundContext(logger zerolog.Logger, roundID int64, stageID, round int) zerolog.Logger {
	return logger.With().
		Int64("review_round_id", roundID).
		Int("stage_id", stageID).
		Int("round", round).
		Logger()
}

// WithFileContext adds submission file fields to a logger.
func WithFileContext(logger zerolog.Logger, submissionFileID int64, fileStage string) zerolog.Logger {
	return logger.With().
		Int64("submission_file_id", submissionFileID).
		Str("file_stage", fileStage).
		Logger()
}

// WithJobContext adds scheduled job fields to a logger.
func WithJobContext(logger zerolog.Logger, job string, run string) zerolog.Logger {
	return logger.With().
		Str("job", job).
		Str("job_run_id", run).
		Logger()
}

// FromContext returns logger enriched with whatever request data ctx carries.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	rc := RequestContextFrom(ctx)
	lc := logger.With()
	if rc.RequestID != "" {
		lc = lc.Str("request_id", rc.RequestID)
	}
	if rc.UserID != 0 {
		lc = lc.Int64("user_id", rc.UserID)
	}
	if rc.ContextID != 0 {
		lc = lc.Int64("context_id", rc.ContextID)
	}
	return lc.Logger()
}
