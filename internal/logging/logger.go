package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar overrides the configured log level when set.
const LevelEnvVar = "NOTEPPT_LOG_LEVEL"

// Init initializes the global logger.
// NOTEPPT_LOG_LEVEL takes precedence over configLevel: debug, info, warn, error (default: info)
func Init(configLevel string) {
	InitWriter(os.Stderr, configLevel)
}

// InitWriter is Init with an explicit console destination.
func InitWriter(w io.Writer, configLevel string) {
	zerolog.SetGlobalLevel(ParseLevel(EnvOrDefault(LevelEnvVar, configLevel)))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}
