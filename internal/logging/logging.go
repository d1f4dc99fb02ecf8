package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// New returns a slog.Logger with the provided level string (info, debug, warn, error).
// format may be "json" or "text".
func New(level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogRunStart logs the beginning of an assembly run.
func LogRunStart(logger *slog.Logger, runID, imagesDir, cubePath string, channels int) {
	logger.Info("assembly started",
		"run", runID,
		"images", imagesDir,
		"cube", cubePath,
		"channels", channels,
	)
}

// LogRunComplete logs successful assembly completion.
func LogRunComplete(logger *slog.Logger, runID string, duration time.Duration, flagged int) {
	logger.Info("assembly completed",
		"run", runID,
		"duration_ms", duration.Milliseconds(),
		"duration_human", duration.String(),
		"flagged_channels", flagged,
	)
}

// LogRunError logs a fatal assembly failure.
func LogRunError(logger *slog.Logger, runID string, duration time.Duration, err error) {
	logger.Error("assembly aborted",
		"run", runID,
		"duration_ms", duration.Milliseconds(),
		"error", err.Error(),
	)
}

// LogChannel logs one channel's quality decision.
func LogChannel(logger *slog.Logger, channel int, source, decision string, rmsV float64) {
	logger.Info("channel processed",
		"channel", channel,
		"source", source,
		"decision", decision,
		"rms_v", rmsV,
	)
}
