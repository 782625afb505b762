package observability

import (
	"time"

	"github.com/google/uuid"
)

// TraceContext carries the trace id for one request. The gateway may
// supply one from an upstream header; otherwise a fresh id is minted.
type TraceContext struct {
	TraceID string
}

func NewTraceContext(traceID string) TraceContext {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return TraceContext{TraceID: traceID}
}

// Span measures one phase of a request. End logs the duration and
// whether the phase succeeded.
type Span struct {
	name      string
	requestID string
	traceID   string
	start     time.Time
	logger    *Logger
}

func (l *Logger) StartSpan(name, requestID, traceID string) *Span {
	return &Span{
		name:      name,
		requestID: requestID,
		traceID:   traceID,
		start:     time.Now(),
		logger:    l,
	}
}

func (s *Span) End(err error) {
	fields := map[string]any{
		"span":        s.name,
		"trace_id":    s.traceID,
		"duration_ms": time.Since(s.start).Milliseconds(),
		"success":     err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.logger.Log(Event{
		Type:      EventTypeSpan,
		RequestID: s.requestID,
		Phase:     s.name,
		Data:      fields,
	})
}
