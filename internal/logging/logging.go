package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"lava-submitter/internal/config"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger writing to stderr. stdout belongs to the job
// log read by the CI host.
// Supports "trace" | "debug" | "info" | "warn" | "error" levels
// and "json" | "console" formats.
func New(cfg config.LogConfig) *zerolog.Logger {
	return NewWriter(cfg, os.Stderr)
}

func NewWriter(cfg config.LogConfig, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &logger
}

// WithRun attaches the run id to every entry.
func WithRun(base *zerolog.Logger, runID string) *zerolog.Logger {
	l := base.With().Str("run_id", runID).Logger()
	return &l
}
