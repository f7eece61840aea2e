package core

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var loggerInstance = NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger *Logger) {
	if logger != nil {
		loggerInstance = logger
	}
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return loggerInstance
}

// Logger wraps a zap logger with a map of persistent attributes and accepts
// both printf-style and slog-style key/value arguments.
type Logger struct {
	base  *zap.Logger
	attrs map[string]interface{}
}

func NewLogger(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{
		base:  base,
		attrs: make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a new development logger with pretty console output
func NewDevelopmentLogger() *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	base, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build development logger: %v\n", err)
		base = zap.NewNop()
	}
	return NewLogger(base)
}

// NewProductionLogger creates a JSON logger suitable for log aggregation.
func NewProductionLogger() *Logger {
	base, err := zap.NewProduction(zap.AddCallerSkip(2))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build production logger: %v\n", err)
		base = zap.NewNop()
	}
	return NewLogger(base)
}

// NewLoggerFromEnv picks the production logger when LOG_FORMAT=json.
func NewLoggerFromEnv() *Logger {
	if os.Getenv("LOG_FORMAT") == "json" {
		return NewProductionLogger()
	}
	return NewDevelopmentLogger()
}

func (l *Logger) log(level zapcore.Level, msg string, args ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	attrs := l.attrs
	if len(args) > 0 {
		// Detect slog-style key-value pairs: even number of args where
		// odd-positioned args (keys) are strings.
		if isKeyValuePairs(args) {
			attrs = make(map[string]interface{}, len(l.attrs)+len(args)/2)
			for k, v := range l.attrs {
				attrs[k] = v
			}
			for i := 0; i < len(args)-1; i += 2 {
				key, _ := args[i].(string)
				attrs[key] = args[i+1]
			}
		} else {
			msg = fmt.Sprintf(msg, args...)
		}
	}

	fields := toFields(attrs)
	switch level {
	case zapcore.DebugLevel:
		l.base.Debug(msg, fields...)
	case zapcore.InfoLevel:
		l.base.Info(msg, fields...)
	case zapcore.WarnLevel:
		l.base.Warn(msg, fields...)
	case zapcore.ErrorLevel:
		l.base.Error(msg, fields...)
	}
}

func toFields(attrs map[string]interface{}) []zap.Field {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := attrs[k].(error); ok {
			fields = append(fields, zap.NamedError(k, err))
			continue
		}
		fields = append(fields, zap.Any(k, attrs[k]))
	}
	return fields
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(zapcore.DebugLevel, msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(zapcore.InfoLevel, msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(zapcore.WarnLevel, msg, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(zapcore.WarnLevel, format, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(zapcore.ErrorLevel, msg, args...)
}

func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combinedAttrs := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		base:  l.base,
		attrs: combinedAttrs,
	}
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}

type sessionLoggerKey struct{}

// ContextWithSessionLogger attaches a per-session logger to ctx.
func ContextWithSessionLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, sessionLoggerKey{}, logger)
}

// SessionLoggerFromContext returns the session logger stored in ctx, or the
// global logger when none is set.
func SessionLoggerFromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(sessionLoggerKey{}).(*Logger); ok && logger != nil {
			return logger
		}
	}
	return GetLogger()
}
