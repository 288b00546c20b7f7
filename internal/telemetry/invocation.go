package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"activity-sync/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// InvocationEmitter publishes one envelope per trigger invocation.
type InvocationEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
}

type InvocationEnvelope struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	OccurredAt    string            `json:"occurred_at"`
	Service       string            `json:"service"`
	Environment   string            `json:"environment"`
	RequestID     string            `json:"request_id"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       InvocationPayload `json:"payload"`
}

type InvocationPayload struct {
	EventID    string `json:"event_id"`
	EventKind  string `json:"event_kind"`
	Path       string `json:"path"`
	Handler    string `json:"handler"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	Applied    int    `json:"applied"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func NewInvocationEmitter(publisher Publisher, routingKey, service, environment string, log *zap.Logger) *InvocationEmitter {
	return &InvocationEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

// Emit never fails the caller; publish errors are only logged.
func (e *InvocationEmitter) Emit(ctx context.Context, payload InvocationPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := InvocationEnvelope{
		SchemaVersion: 1,
		EventType:     "sync_invocation",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     observability.RequestIDFromContext(ctx),
		TraceID:       observability.TraceIDFromContext(ctx),
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.log.Warn("invocation publish failed",
			zap.String("event_id", payload.EventID),
			zap.String("handler", payload.Handler),
			zap.Error(err))
	}
}
