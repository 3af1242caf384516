package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	mlerrors "github.com/YuminosukeSato/mlprep/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ZeroLogger is the zerolog-backed Logger.
type ZeroLogger struct {
	zl zerolog.Logger
}

// NewLogger returns a Logger writing to w. format is "json" or "console".
func NewLogger(w io.Writer, level Level, format string) *ZeroLogger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZeroLogger{zl: zl}
}

// Zerolog exposes the underlying zerolog logger.
func (l *ZeroLogger) Zerolog() *zerolog.Logger {
	return &l.zl
}

func (l *ZeroLogger) Debug(msg string, fields ...any) {
	addFields(l.zl.Debug(), fields).Msg(msg)
}

func (l *ZeroLogger) Info(msg string, fields ...any) {
	addFields(l.zl.Info(), fields).Msg(msg)
}

func (l *ZeroLogger) Warn(msg string, fields ...any) {
	addFields(l.zl.Warn(), fields).Msg(msg)
}

func (l *ZeroLogger) Error(msg string, fields ...any) {
	addFields(l.zl.Error(), fields).Msg(msg)
}

func (l *ZeroLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	fields = normalizeFields(fields)
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.AnErr(key, err)
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &ZeroLogger{zl: ctx.Logger()}
}

func (l *ZeroLogger) Enabled(_ context.Context, level Level) bool {
	zlLevel := toZerologLevel(level)
	return zlLevel >= l.zl.GetLevel() && zlLevel >= zerolog.GlobalLevel()
}

// normalizeFields turns a leading lone error into an "error" pair.
func normalizeFields(fields []any) []any {
	if len(fields)%2 == 1 {
		if _, ok := fields[0].(error); ok {
			return append([]any{ErrAttrKey}, fields...)
		}
		return append(fields[:len(fields):len(fields)], "!BADVALUE")
	}
	return fields
}

func addFields(ev *zerolog.Event, fields []any) *zerolog.Event {
	if ev == nil {
		return ev
	}
	fields = normalizeFields(fields)
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
			var obj zerolog.LogObjectMarshaler
			if errors.As(v, &obj) {
				ev = ev.Object(key+"_detail", obj)
			}
			if st := extractStacktrace(v); st != "" {
				ev = ev.Str(StacktraceAttrKey, st)
			}
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ParseLevel converts "debug", "info", "warn" or "error".
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, mlerrors.NewValidationError("log-level", "must be one of debug, info, warn, error", level)
	}
}

var (
	defaultMu       sync.RWMutex
	defaultProvider = &ZeroProvider{out: os.Stderr, level: LevelInfo, format: "json"}
)

// ZeroProvider is the LoggerProvider for ZeroLogger.
type ZeroProvider struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	format string
}

// NewProvider creates a provider writing to w.
func NewProvider(w io.Writer, level Level, format string) *ZeroProvider {
	return &ZeroProvider{out: w, level: level, format: format}
}

func (p *ZeroProvider) GetLogger() Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return NewLogger(p.out, p.level, p.format)
}

func (p *ZeroProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

func (p *ZeroProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

// SetupLogger configures the process-wide provider and routes library
// warnings into it.
func SetupLogger(level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if format != "json" && format != "console" {
		return mlerrors.NewValidationError("log-format", "must be json or console", format)
	}
	SetProvider(NewProvider(os.Stderr, lvl, format))
	return nil
}

// SetProvider replaces the process-wide provider.
func SetProvider(p *ZeroProvider) {
	defaultMu.Lock()
	defaultProvider = p
	defaultMu.Unlock()
	RouteWarnings(p.GetLoggerWithName("warnings"))
}

// GetLogger returns a logger from the process-wide provider.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns a component logger from the process-wide
// provider.
func GetLoggerWithName(name string) Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultProvider.GetLoggerWithName(name)
}

// RouteWarnings sends errors.Warn output to l. Structured warnings are
// embedded as objects when l is zerolog-backed.
func RouteWarnings(l Logger) {
	mlerrors.SetZerologWarnFunc(func(w error) {
		if zb, ok := l.(interface{ Zerolog() *zerolog.Logger }); ok {
			ev := zb.Zerolog().Warn()
			if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
				ev = ev.EmbedObject(obj)
			}
			ev.Msg(w.Error())
			return
		}
		l.Warn(w.Error())
	})
}
