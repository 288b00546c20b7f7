package triggers

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"activity-sync/internal/events"
	"activity-sync/internal/observability"
	"activity-sync/internal/telemetry"
)

const DefaultTimeout = 60 * time.Second

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, ev events.Event) (Report, error)

type route struct {
	kind   events.Kind
	target events.Target
}

// Router dispatches each event to exactly one handler.
type Router struct {
	routes  map[route]namedHandler
	timeout time.Duration
	emitter *telemetry.InvocationEmitter
	tracer  trace.Tracer
	log     *zap.Logger
}

type namedHandler struct {
	name string
	fn   HandlerFunc
}

// NewRouter wires the handler matrix. A nil emitter disables invocation events.
func NewRouter(h *Handlers, timeout time.Duration, emitter *telemetry.InvocationEmitter, log *zap.Logger) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Router{
		routes:  map[route]namedHandler{},
		timeout: timeout,
		emitter: emitter,
		tracer:  otel.Tracer("activity-sync/triggers"),
		log:     log,
	}
	r.handle(events.KindCreated, events.TargetActivity, "activity_created", h.ActivityCreated)
	r.handle(events.KindUpdated, events.TargetActivity, "activity_updated", h.ActivityUpdated)
	r.handle(events.KindDeleted, events.TargetActivity, "activity_deleted", h.ActivityDeleted)
	r.handle(events.KindCreated, events.TargetParticipant, "participant_added", h.ParticipantAdded)
	r.handle(events.KindDeleted, events.TargetParticipant, "participant_removed", h.ParticipantRemoved)
	r.handle(events.KindCreated, events.TargetProfile, "profile_written", h.ProfileWritten)
	r.handle(events.KindUpdated, events.TargetProfile, "profile_written", h.ProfileWritten)
	r.handle(events.KindUpdated, events.TargetFriendRequest, "friend_request_updated", h.FriendRequestUpdated)
	r.handle(events.KindValueCreated, events.TargetChatMessage, "chat_message_created", h.ChatMessageCreated)
	return r
}

func (r *Router) handle(kind events.Kind, target events.Target, name string, fn HandlerFunc) {
	r.routes[route{kind: kind, target: target}] = namedHandler{name: name, fn: fn}
}

// Dispatch runs the handler for ev under the configured timeout. Events with
// no matching handler are acknowledged as skipped.
func (r *Router) Dispatch(ctx context.Context, ev events.Event) (Report, error) {
	log := r.log.With(zap.String("event_id", ev.ID), zap.String("kind", string(ev.Kind)), zap.String("path", ev.Path))

	h, ok := r.routes[route{kind: ev.Kind, target: ev.Ref().Target}]
	if !ok {
		log.Info("no handler for event")
		observability.ObserveHandler("unrouted", OutcomeSkipped, 0)
		return Report{Handler: "unrouted", Outcome: OutcomeSkipped, Reason: "no_handler"}, nil
	}

	ctx, cancel := context.WithTimeout(observability.WithRequestID(ctx, ev.ID), r.timeout)
	defer cancel()
	ctx, span := r.tracer.Start(ctx, "trigger."+h.name, trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.kind", string(ev.Kind)),
		attribute.String("event.path", ev.Path),
	))
	defer span.End()

	start := time.Now()
	rep, err := h.fn(ctx, ev)
	elapsed := time.Since(start)
	rep.Handler = h.name
	if err != nil {
		rep.Outcome = OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			rep.Reason = "timeout"
		}
	}
	span.SetAttributes(attribute.String("sync.outcome", rep.Outcome))
	observability.ObserveHandler(h.name, rep.Outcome, elapsed)

	fields := []zap.Field{
		zap.String("handler", h.name),
		zap.String("outcome", rep.Outcome),
		zap.Int("applied", rep.Applied),
		zap.Int("failed", rep.Failed),
		zap.Duration("duration", elapsed),
	}
	if rep.Reason != "" {
		fields = append(fields, zap.String("reason", rep.Reason))
	}
	if err != nil {
		log.Error("handler failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("handler completed", fields...)
	}

	payload := telemetry.InvocationPayload{
		EventID:    ev.ID,
		EventKind:  string(ev.Kind),
		Path:       ev.Path,
		Handler:    h.name,
		Outcome:    rep.Outcome,
		Reason:     rep.Reason,
		Applied:    rep.Applied,
		Failed:     rep.Failed,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		payload.Error = err.Error()
	}
	r.emitter.Emit(context.WithoutCancel(ctx), payload)
	return rep, err
}
