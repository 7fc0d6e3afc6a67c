package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds per-connection logging context (spec §6.1 "every log
// line carries a connection correlation ID").
type LogContext struct {
	TraceID   string    // correlation ID for distributed tracing
	SpanID    string    // span ID for a single RPC within the connection
	Procedure string    // RPC procedure name (INIT, OPEN, START, etc.)
	ConnID    string    // per-connection correlation ID
	ClientIP  string    // peer address of the control connection
	Username  string    // username presented to AUTHORIZE, if any
	Resource  string    // resource string under authorization, if any
	StartTime time.Time // for duration calculation
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

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Procedure: lc.Procedure,
		ConnID:    lc.ConnID,
		ClientIP:  lc.ClientIP,
		Username:  lc.Username,
		Resource:  lc.Resource,
		StartTime: lc.StartTime,
	}
}

// WithProcedure returns a copy with the procedure set
func (lc *LogContext) WithProcedure(procedure string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Procedure = procedure
	}
	return clone
}

// WithConnID returns a copy with the connection correlation ID set
func (lc *LogContext) WithConnID(connID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ConnID = connID
	}
	return clone
}

// WithAuth returns a copy with the authorization username and resource set,
// as established by an AUTHORIZE round trip (spec §3.2).
func (lc *LogContext) WithAuth(username, resource string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Username = username
		clone.Resource = resource
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
