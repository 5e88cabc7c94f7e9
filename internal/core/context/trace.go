package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Origin names what started a unit of work.
type Origin string

const (
	OriginHTTP   Origin = "http"
	OriginWorker Origin = "worker"
	OriginCLI    Origin = "cli"
)

// TraceContext correlates the log lines of one request or background run.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
	Origin    Origin

	// Job is set for background runs, e.g. "reconcile".
	Job string

	// IdempotencyKey is the client key of a replay-protected request.
	IdempotencyKey string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// TraceFromSpan builds the trace context of an HTTP request from the span
// carried by ctx. Without a valid span, fallbackTraceID is used, then requestID.
func TraceFromSpan(ctx context.Context, requestID, fallbackTraceID string) *TraceContext {
	tc := &TraceContext{RequestID: requestID, TraceID: fallbackTraceID, Origin: OriginHTTP}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		tc.TraceID = sc.TraceID().String()
		tc.SpanID = sc.SpanID().String()
	}
	if tc.TraceID == "" {
		tc.TraceID = requestID
	}
	return tc
}

// NewJobTrace starts correlation for one background run. The run id is used
// as both trace and request id.
func NewJobTrace(origin Origin, job string) *TraceContext {
	runID := uuid.NewString()
	return &TraceContext{TraceID: runID, RequestID: runID, Origin: origin, Job: job}
}

// WithIdempotencyKey records the client key on the trace context of ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	t := GetTrace(ctx)
	if t == nil {
		return WithTrace(ctx, &TraceContext{IdempotencyKey: key})
	}
	cp := *t
	cp.IdempotencyKey = key
	return WithTrace(ctx, &cp)
}
