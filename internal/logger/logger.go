package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crypto-llm-analyst/internal/trace"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	DetailedLogging bool   // Enable debug logs and caller source
	File            string // Optional JSON log file, empty disables it
}

// Logger writes structured records to stdout and, optionally, to a JSON file.
// Trace and span ids from the context are attached to every record.
// Instances are cheap to derive with With and are passed to components
// explicitly; a pass creates its own child carrying the run id.
type Logger struct {
	base     *slog.Logger
	file     *zap.Logger
	detailed bool
}

var defaultLogger = Nop()

// LoadConfigFromEnv loads logging configuration from environment variables
func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		Format:          getEnvOrDefault("LOG_FORMAT", "json"),
		DetailedLogging: getEnvOrDefault("LOG_DETAILED", "false") == "true",
		File:            os.Getenv("LOG_FILE"),
	}
}

// Init builds a logger from the environment and installs it as the default.
func Init() (*Logger, error) {
	l, err := New(LoadConfigFromEnv())
	if err != nil {
		return nil, err
	}
	defaultLogger = l
	slog.SetDefault(l.base)
	return l, nil
}

// Default returns the logger installed by Init, or a discarding logger.
func Default() *Logger {
	return defaultLogger
}

// New creates a logger writing to stdout and, when cfg.File is set, to a
// JSON log file.
func New(cfg LogConfig) (*Logger, error) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with the console records sent to w.
func NewWithWriter(cfg LogConfig, w io.Writer) (*Logger, error) {
	return newLogger(cfg, w)
}

func newLogger(cfg LogConfig, w io.Writer) (*Logger, error) {
	level := parseLogLevel(cfg.Level)
	if cfg.DetailedLogging {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := &Logger{base: slog.New(handler), detailed: cfg.DetailedLogging}

	if cfg.File != "" {
		zl, err := newFileSink(cfg.File, level)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		l.file = zl
	}
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{base: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newFileSink(path string, level slog.Level) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapLevel(level))
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build(zap.WithCaller(false))
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// zapFields converts slog-style key/value pairs into zap fields.
func zapFields(args []any) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args); i++ {
		if attr, ok := args[i].(slog.Attr); ok {
			fields = append(fields, zap.Any(attr.Key, attr.Value.Any()))
			continue
		}
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			fields = append(fields, zap.Any("!BADKEY", args[i]))
			continue
		}
		switch v := args[i+1].(type) {
		case error:
			fields = append(fields, zap.NamedError(key, v))
		case slog.Value:
			fields = append(fields, zap.Any(key, v.Any()))
		default:
			fields = append(fields, zap.Any(key, v))
		}
		i++
	}
	return fields
}

// With returns a child logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	child := &Logger{base: l.base.With(args...), detailed: l.detailed}
	if l.file != nil {
		child.file = l.file.With(zapFields(args)...)
	}
	return child
}

// Sync flushes the file sink, if any.
func (l *Logger) Sync() error {
	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

// Debug logs a debug message. Only emitted when detailed logging is on.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	if !l.detailed {
		return
	}
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

// ErrorWithErr logs err and records it on the active span.
func (l *Logger) ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	if trace.Enabled() && err != nil {
		span := oteltrace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	l.log(ctx, slog.LevelError, msg, append([]any{"error", err}, args...)...)
}

// IsDebugEnabled reports whether debug records are emitted.
func (l *Logger) IsDebugEnabled() bool {
	return l.detailed
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if traceID, spanID, ok := trace.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}

	if l.detailed {
		// log -> Info/Warn/... -> caller
		if pc, file, line, ok := runtime.Caller(2); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				args = append(args, "source", slog.GroupValue(
					slog.String("function", fn.Name()),
					slog.String("file", file),
					slog.Int("line", line),
				))
			}
		}
	}

	l.base.Log(ctx, level, msg, args...)

	if l.file != nil {
		if ce := l.file.Check(zapLevel(level), msg); ce != nil {
			ce.Write(zapFields(args)...)
		}
	}
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// OperationTimer measures an operation and wraps it in a span.
type OperationTimer struct {
	log    *Logger
	ctx    context.Context
	span   oteltrace.Span
	start  time.Time
	fields []any
}

// StartOperation starts timing an operation with a span named after it.
func (l *Logger) StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := trace.StartSpan(ctx, operation)
	if trace.Enabled() {
		span.SetAttributes(spanAttrs(fields)...)
	}

	l.Debug(ctx, "Operation started", append([]any{"operation", operation}, fields...)...)

	return &OperationTimer{
		log:    l,
		ctx:    ctx,
		span:   span,
		start:  time.Now(),
		fields: append([]any{"operation", operation}, fields...),
	}
}

// Context returns the context carrying the operation span.
func (ot *OperationTimer) Context() context.Context {
	return ot.ctx
}

// End completes the operation and logs its duration.
func (ot *OperationTimer) End(additionalFields ...any) {
	duration := time.Since(ot.start)

	if trace.Enabled() {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.SetAttributes(spanAttrs(additionalFields)...)
		ot.span.SetStatus(codes.Ok, "completed")
		ot.span.End()
	}

	fields := append(append([]any{}, ot.fields...), "duration_ms", duration.Milliseconds())
	fields = append(fields, additionalFields...)
	ot.log.Info(ot.ctx, "Operation completed", fields...)
}

// EndWithError completes the operation with an error.
func (ot *OperationTimer) EndWithError(err error, additionalFields ...any) {
	duration := time.Since(ot.start)

	if trace.Enabled() {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.End()
	}

	fields := append(append([]any{}, ot.fields...), "duration_ms", duration.Milliseconds())
	fields = append(fields, additionalFields...)
	ot.log.ErrorWithErr(ot.ctx, "Operation failed", err, fields...)
}

func spanAttrs(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		}
	}
	return attrs
}
