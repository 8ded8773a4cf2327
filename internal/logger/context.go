package logger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped logging context.
type LogContext struct {
	TraceID    string    // OpenTelemetry trace ID
	SpanID     string    // OpenTelemetry span ID
	RequestID  string    // Per-request correlation id
	Operation  string    // write_region, read_region, flush, ...
	TransferID uint64    // Transfer request id, 0 when synchronous
	ObjectID   uint64    // Object the request targets
	ServerRank int       // Owning server rank, -1 when unknown
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for one operation with a fresh request id.
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		RequestID:  uuid.NewString(),
		Operation:  operation,
		ServerRank: -1,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithObject returns a copy bound to an object id.
func (lc *LogContext) WithObject(objectID uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ObjectID = objectID
	}
	return clone
}

// WithTransfer returns a copy bound to a transfer request id.
func (lc *LogContext) WithTransfer(transferID uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TransferID = transferID
	}
	return clone
}

// WithRank returns a copy with the server rank set.
func (lc *LogContext) WithRank(rank int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ServerRank = rank
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
