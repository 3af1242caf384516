// Package log is the structured logging layer shared by the loaders,
// cleaners, trainers and pipelines.
//
// Entries are a message plus alternating key/value pairs, using the key
// constants in this package so every stage names the same thing the same
// way. zerolog does the writing.
//
//	logger := log.GetLoggerWithName("preprocessing").With(
//	    log.OperationKey, log.OperationClean,
//	)
//	logger.Info("columns coerced", log.ColumnKey, "Air Temp", log.CoercedKey, 3)
//	logger.Warn("column skipped", err, log.ColumnKey, "Humidity")
package log

import "context"

// Logger is implemented by ZeroLogger and, in tests, TestLogger. Warn and
// Error accept a lone error as their first field and log it under "error"
// with its stack trace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	With(fields ...any) Logger
	Enabled(ctx context.Context, level Level) bool
}

// Level orders severities. The numeric values are those of slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// LoggerProvider hands out loggers that share one sink and level. The CLI
// configures the process-wide ZeroProvider; tests use TestLoggerProvider to
// capture output.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}

var (
	_ LoggerProvider = (*ZeroProvider)(nil)
	_ LoggerProvider = (*TestLoggerProvider)(nil)
	_ Logger         = (*ZeroLogger)(nil)
)
