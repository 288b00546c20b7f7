// Package triggers maps store change events to the handlers that keep the
// chat tree, derived indexes and push notifications in sync.
package triggers

import (
	"time"

	"go.uber.org/zap"

	"activity-sync/internal/events"
	"activity-sync/internal/index"
	"activity-sync/internal/membership"
	"activity-sync/internal/notify"
	"activity-sync/internal/repositories"
	"activity-sync/internal/writes"
)

const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Deps are the store handles and collaborators shared by all handlers.
type Deps struct {
	Activities repositories.ActivityRepository
	Profiles   repositories.ProfileRepository
	Tree       repositories.ChatTreeRepository
	Sender     notify.Sender
	Log        *zap.Logger
	// Now is used when an event carries no occurred_at. Defaults to time.Now.
	Now func() time.Time
}

// Report describes what one handler invocation did.
type Report struct {
	Handler string
	Outcome string
	Reason  string
	Applied int
	Failed  int
}

func skipped(reason string) Report {
	return Report{Outcome: OutcomeSkipped, Reason: reason}
}

func (r *Report) addWrites(res writes.Result) {
	r.Applied += res.Applied
	r.Failed += res.Failed
}

func (r *Report) addFailure() {
	r.Failed++
}

// finish settles the outcome from the counters unless already skipped.
func (r Report) finish() Report {
	if r.Outcome == OutcomeSkipped {
		return r
	}
	if r.Failed > 0 {
		r.Outcome = OutcomePartial
	} else {
		r.Outcome = OutcomeOK
	}
	return r
}

// Handlers holds one method per trigger.
type Handlers struct {
	deps    Deps
	log     *zap.Logger
	members *membership.Synchronizer
	index   *index.Maintainer
	fanout  *notify.FanOut
}

func NewHandlers(deps Deps) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Handlers{
		deps:    deps,
		log:     deps.Log,
		members: membership.NewSynchronizer(deps.Profiles, deps.Log),
		index:   index.NewMaintainer(deps.Activities, deps.Profiles, deps.Log),
		fanout:  notify.NewFanOut(deps.Activities, deps.Profiles, deps.Sender, deps.Log),
	}
}

// eventTime is the timestamp written into joinedAt and system messages, so
// that redelivered events produce identical values.
func (h *Handlers) eventTime(ev events.Event) time.Time {
	if !ev.OccurredAt.IsZero() {
		return ev.OccurredAt.UTC()
	}
	return h.deps.Now().UTC()
}

func (h *Handlers) eventLog(ev events.Event) *zap.Logger {
	return h.log.With(zap.String("event_id", ev.ID), zap.String("path", ev.Path))
}
