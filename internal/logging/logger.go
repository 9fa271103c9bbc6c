package logging

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var Logger *log.Logger

// LogLevel represents available log levels
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// InitLogger initializes the global logger with configuration from environment variables
func InitLogger() {
	Logger = log.New(os.Stderr)

	logLevel := ParseLevel(os.Getenv("LOG_LEVEL"))
	SetLevel(Logger, logLevel)

	Logger.SetReportTimestamp(true)
	Logger.SetReportCaller(true)

	Logger.Debug("Logger initialized successfully", "level", logLevel)
}

// Configure re-initializes the global logger from explicit settings.
// An unknown level falls back to info; "text" or "pretty" formats, or
// Structured=false, switch to the human readable formatter.
func Configure(level, format string, structured bool) *log.Logger {
	Logger = log.New(os.Stderr)
	SetLevel(Logger, ParseLevelOr(level, InfoLevel))

	switch {
	case format == "json" && structured:
		Logger.SetFormatter(log.JSONFormatter)
	case format == "logfmt" && structured:
		Logger.SetFormatter(log.LogfmtFormatter)
	default:
		Logger.SetReportCaller(true)
	}
	Logger.SetReportTimestamp(true)
	Logger.SetPrefix("worldstream")

	return Logger
}

// ParseLevel maps a LOG_LEVEL string to a level. Unknown or empty values
// default to debug for maximum visibility.
func ParseLevel(value string) LogLevel {
	return ParseLevelOr(value, DebugLevel)
}

func ParseLevelOr(value string, fallback LogLevel) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return fallback
	}
}

// SetLevel configures the logger with the specified level
func SetLevel(logger *log.Logger, level LogLevel) {
	switch level {
	case DebugLevel:
		logger.SetLevel(log.DebugLevel)
	case InfoLevel:
		logger.SetLevel(log.InfoLevel)
	case WarnLevel:
		logger.SetLevel(log.WarnLevel)
	case ErrorLevel:
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.DebugLevel)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *log.Logger {
	if Logger == nil {
		InitLogger()
	}
	return Logger
}

// WithFields creates a logger with contextual fields
func WithFields(fields ...interface{}) *log.Logger {
	return GetLogger().With(fields...)
}

// WithComponent tags every line with the emitting component
func WithComponent(component string) *log.Logger {
	return WithFields("component", component)
}

// WithChunkCoords creates a logger with chunk coordinate context
func WithChunkCoords(chunkX, chunkZ int32) *log.Logger {
	return WithFields("chunk_x", chunkX, "chunk_z", chunkZ)
}

// WithWorldCoords creates a logger with world-space coordinate context
func WithWorldCoords(x, z float64) *log.Logger {
	return WithFields("x", x, "z", z)
}

// WithDuration creates a logger with duration context (for performance logging)
func WithDuration(operation string, duration interface{}) *log.Logger {
	return WithFields("operation", operation, "duration", duration)
}
