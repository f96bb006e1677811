package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

var (
	baseMu     sync.RWMutex
	baseLogger = newZapLogger(os.Stderr, LogLevelInfo, "json")
)

// SetLogOutput rebuilds the base logger to write to w.
func SetLogOutput(w io.Writer) {
	ConfigureLogging(w, LogLevelInfo, "json")
}

// ConfigureLogging rebuilds the base logger used by every logger created
// afterwards. format is "json" or "console".
func ConfigureLogging(w io.Writer, level LogLevel, format string) {
	SetBaseLogger(newZapLogger(w, level, format))
}

// SetBaseLogger installs an existing zap logger, such as one built on a
// zaptest observer core.
func SetBaseLogger(l *zap.Logger) {
	baseMu.Lock()
	defer baseMu.Unlock()
	baseLogger = l
}

func currentBase() *zap.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return baseLogger
}

func newZapLogger(w io.Writer, level LogLevel, format string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.LevelKey = "severity"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(format, "console") {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapLevel(level))
	return zap.New(core)
}

func zapLevel(level LogLevel) zapcore.Level {
	switch LogLevel(strings.ToUpper(string(level))) {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// StructuredLogger provides structured logging with trace correlation
type StructuredLogger struct {
	logger    *zap.Logger
	component string
}

// NewStructuredLogger creates a logger tagged with a component name
func NewStructuredLogger(component string) *StructuredLogger {
	return &StructuredLogger{
		logger:    currentBase().With(zap.String("component", component)),
		component: component,
	}
}

func traceFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	}
}

func (l *StructuredLogger) fields(ctx context.Context, attrs []map[string]interface{}) []zap.Field {
	fields := traceFields(ctx)
	if len(attrs) > 0 && len(attrs[0]) > 0 {
		fields = append(fields, zap.Any("attributes", attrs[0]))
	}
	return fields
}

// Debug logs a debug message
func (l *StructuredLogger) Debug(ctx context.Context, message string, attrs ...map[string]interface{}) {
	l.logger.Debug(message, l.fields(ctx, attrs)...)
}

// Info logs an info message
func (l *StructuredLogger) Info(ctx context.Context, message string, attrs ...map[string]interface{}) {
	l.logger.Info(message, l.fields(ctx, attrs)...)
}

// Warn logs a warning message
func (l *StructuredLogger) Warn(ctx context.Context, message string, attrs ...map[string]interface{}) {
	l.logger.Warn(message, l.fields(ctx, attrs)...)
}

// Error logs an error message
func (l *StructuredLogger) Error(ctx context.Context, message string, err error, attrs ...map[string]interface{}) {
	fields := l.fields(ctx, attrs)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.logger.Error(message, fields...)
}

// WithComponent creates a new logger with a different component name
func (l *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return NewStructuredLogger(component)
}

// Sync flushes buffered log entries
func (l *StructuredLogger) Sync() error {
	return l.logger.Sync()
}

// Logger interface for dependency injection
type Logger interface {
	Debug(ctx context.Context, message string, attrs ...map[string]interface{})
	Info(ctx context.Context, message string, attrs ...map[string]interface{})
	Warn(ctx context.Context, message string, attrs ...map[string]interface{})
	Error(ctx context.Context, message string, err error, attrs ...map[string]interface{})
}
