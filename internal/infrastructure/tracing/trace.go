// Package tracing provides lightweight request tracing for the backend.
//
// Trace context propagates via the X-Trace-ID and X-Span-ID headers so the
// shell can correlate a lifecycle request with the log lines and stream
// notifications it produced. Spans are collected asynchronously and emitted
// through the structured logger.
package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
)

// TraceID correlates every span of one request flow.
type TraceID string

// SpanID identifies a single operation within a trace.
type SpanID string

// Span records one traced operation.
type Span struct {
	TraceID   TraceID
	SpanID    SpanID
	ParentID  SpanID
	Name      string
	StartTime time.Time
	Duration  time.Duration
	Tags      map[string]string
	Status    int
	Err       error
}

// Tracer collects spans and logs them as they complete.
type Tracer struct {
	service string
	log     *zap.Logger
	spans   chan *Span
}

// New creates a tracer and starts its collector.
func New(service string, log *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		log:     log,
		spans:   make(chan *Span, 1000),
	}
	go t.collect()
	return t
}

// StartSpan opens a span under whatever trace context ctx carries, minting a
// fresh trace when there is none.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}
	parentID, _ := ctx.Value(spanIDKey).(SpanID)

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.NewRequestID()),
		ParentID:  parentID,
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// SetTag annotates the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records a failure on the span.
func (s *Span) SetError(err error) {
	s.Err = err
}

// Finish closes the span and hands it to the collector. A full buffer drops
// the span rather than blocking the request path.
func (t *Tracer) Finish(s *Span) {
	s.Duration = time.Since(s.StartTime)
	select {
	case t.spans <- s:
	default:
		t.log.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(s.TraceID)))
	}
}

func (t *Tracer) collect() {
	for span := range t.spans {
		fields := []zap.Field{
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
			zap.String("operation", span.Name),
			zap.String("service", t.service),
			zap.Duration("duration", span.Duration),
		}
		if span.ParentID != "" {
			fields = append(fields, zap.String("parent_id", string(span.ParentID)))
		}
		if span.Status != 0 {
			fields = append(fields, zap.Int("status", span.Status))
		}
		if span.Err != nil {
			fields = append(fields, zap.Error(span.Err))
			t.log.Warn("span completed with error", fields...)
			continue
		}
		t.log.Debug("span completed", fields...)
	}
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID retrieves the trace ID from context.
func GetTraceID(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}

// WithRemoteContext attaches trace context received from a peer.
func WithRemoteContext(ctx context.Context, traceID, spanID string) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, TraceID(traceID))
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, SpanID(spanID))
	}
	return ctx
}
