package tracing

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/id"
)

// Header carries the trace id on requests and responses
const Header = "X-Trace-ID"

type contextKey int

const traceIDKey contextKey = iota

var generator = id.NewGenerator()

// NewTraceID returns a fresh trace id
func NewTraceID() id.TraceID {
	return generator.NewTraceID()
}

// WithTraceID returns a context carrying traceID
func WithTraceID(ctx context.Context, traceID id.TraceID) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// FromContext returns the trace id carried by ctx, or ""
func FromContext(ctx context.Context) id.TraceID {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(traceIDKey).(id.TraceID)
	return traceID
}
