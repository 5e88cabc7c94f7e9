// Package logger provides structured zap logging that picks up request,
// tenant and background-job correlation from the context.
package logger

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "invoicenum/internal/core/context"
)

// Logger wraps zap.SugaredLogger with context-aware logging.
type Logger struct {
	*zap.SugaredLogger
}

type loggerKey struct{}

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoder with colours
	OutputPaths []string

	// Service and Env are attached to every entry when set.
	Service string
	Env     string
}

// New creates a Logger from configuration. An unknown level falls back to info.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	var fields []zap.Field
	if cfg.Service != "" {
		fields = append(fields, zap.String("service", cfg.Service))
	}
	if cfg.Env != "" {
		fields = append(fields, zap.String("env", cfg.Env))
	}

	z, err := zc.Build(zap.AddCallerSkip(1), zap.Fields(fields...))
	if err != nil {
		return nil, err
	}
	return &Logger{z.Sugar()}, nil
}

// NewFromZap wraps an existing zap logger (e.g. zaptest/observer in tests).
func NewFromZap(z *zap.Logger) *Logger {
	return &Logger{z.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide fallback logger used when ctx carries none.
func Default() *Logger {
	defaultOnce.Do(func() {
		zc := zap.NewProductionConfig()
		zc.OutputPaths = []string{"stdout"}
		z, err := zc.Build(zap.AddCallerSkip(1))
		if err != nil {
			z = zap.NewNop()
		}
		defaultLogger = &Logger{z.Sugar()}
	})
	return defaultLogger
}

// WithContext adds correlation fields from ctx: request or job identity,
// idempotency key, user and tenant. When ctx has no trace context but carries
// an OpenTelemetry span, the span ids are used.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var kv []any

	if tc := appctx.GetTrace(ctx); tc != nil {
		kv = appendNonEmpty(kv,
			"trace_id", tc.TraceID,
			"span_id", tc.SpanID,
			"request_id", tc.RequestID,
			"origin", string(tc.Origin),
			"job", tc.Job,
			"idempotency_key", tc.IdempotencyKey,
		)
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		kv = append(kv, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}

	if user := appctx.GetUser(ctx); user != nil {
		kv = appendNonEmpty(kv, "user_id", user.UserID, "tenant_id", user.TenantID)
	}

	if len(kv) == 0 {
		return l
	}
	return &Logger{l.SugaredLogger.With(kv...)}
}

// appendNonEmpty appends key/value string pairs whose value is not empty.
func appendNonEmpty(kv []any, pairs ...string) []any {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			kv = append(kv, pairs[i], pairs[i+1])
		}
	}
	return kv
}

// With adds key-value pairs to logger.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{l.SugaredLogger.With(keysAndValues...)}
}

// WithComponent adds component name to logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.SugaredLogger.With("component", name)}
}

// WithLogger adds Logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the Logger carried by ctx, or Default, enriched with
// the correlation fields of ctx.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l.WithContext(ctx)
	}
	return Default().WithContext(ctx)
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}

// Fatal logs at fatal level and exits.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Fatalw(msg, keysAndValues...)
	os.Exit(1)
}
