package internal

import (
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
)

var (
	quietMode   atomic.Bool // Indicates whether quiet mode is enabled.
	debugMode   atomic.Bool // Indicates whether debug logging is enabled.
	verboseMode atomic.Bool // Indicates whether verbose logging is enabled.

	logLevel = new(slog.LevelVar) // Level shared by every logger from [NewLogger].
)

// Parses the linker flags into usable runtime variables.
//
// The rawQuiet, rawDebug, and rawVerbose variables should be set via ldflags
// during the build process. If not set, they default to "false".
func init() {
	if v, err := strconv.ParseBool(rawQuiet); err == nil {
		quietMode.Store(v)
	}
	if v, err := strconv.ParseBool(rawDebug); err == nil {
		debugMode.Store(v)
	}
	if v, err := strconv.ParseBool(rawVerbose); err == nil {
		verboseMode.Store(v)
	}
}

// Enables or disables quiet mode.
func SetQuiet(enabled bool) {
	quietMode.Store(enabled)
}

// Returns true if quiet mode is enabled.
func IsQuiet() bool {
	return quietMode.Load()
}

// Enables or disables debug mode.
func SetDebug(enabled bool) {
	debugMode.Store(enabled)
}

// Returns true if debug mode is enabled.
func IsDebug() bool {
	return debugMode.Load()
}

// Enables or disables verbose logging.
func SetVerbose(enabled bool) {
	verboseMode.Store(enabled)
}

// Returns true if verbose logging is enabled.
func IsVerbose() bool {
	return verboseMode.Load()
}

// Returns the log level derived from the current modes. Debug wins over
// quiet.
func LogLevel() slog.Level {
	if IsDebug() {
		return slog.LevelDebug
	}
	if IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Creates a text logger writing to w.
//
// All loggers share one level, updated to [LogLevel] on every call. Verbose
// mode adds source locations.
func NewLogger(w io.Writer) *slog.Logger {
	logLevel.Set(LogLevel())
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: IsVerbose(),
	})
	return slog.New(handler)
}
