package triggers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"activity-sync/internal/events"
	"activity-sync/internal/membership"
	"activity-sync/internal/models"
	"activity-sync/internal/sysmsg"
	"activity-sync/internal/writes"
)

// ActivityCreated indexes the title, initializes the archived flag, adds
// every participant to the chat and posts the creation message. Failed
// chat writes are returned so the delivery is retried.
func (h *Handlers) ActivityCreated(ctx context.Context, ev events.Event) (Report, error) {
	log := h.eventLog(ev)
	activity, ok, err := decodeActivity(ev, ev.DecodeAfter)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		log.Warn("activity created event without snapshot")
		return skipped("no_snapshot"), nil
	}

	var rep Report
	h.syncTitle(ctx, log, &rep, activity)
	if _, err := h.index.InitArchived(ctx, activity); err != nil {
		rep.addFailure()
		log.Error("archived init failed", zap.Error(err))
	}

	at := h.eventTime(ev)
	ch := membership.Diff(nil, activity.Participants)
	names := h.members.ResolveNames(ctx, activity.ID, ch.Added)

	ws := membership.Plan(activity.ID, ch, names.Names, at)
	ws = append(ws, sysmsg.Created(activity.ID, activity.Title, at))
	res := writes.Apply(ctx, h.deps.Tree, ws)
	rep.addWrites(res)

	if err := res.Err(); err != nil {
		return rep.finish(), fmt.Errorf("activity %s created: %w", activity.ID, err)
	}
	log.Info("activity chat created",
		zap.String("activity_id", activity.ID),
		zap.Int("members", len(ch.Added)),
		zap.Int("name_lookup_failures", names.Failed))
	return rep.finish(), nil
}

// ActivityUpdated reindexes the title and reconciles membership with the new
// participant set, posting one join or leave message per changed user.
func (h *Handlers) ActivityUpdated(ctx context.Context, ev events.Event) (Report, error) {
	log := h.eventLog(ev)
	after, ok, err := decodeActivity(ev, ev.DecodeAfter)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		log.Warn("activity updated event without after snapshot")
		return skipped("no_snapshot"), nil
	}
	before, hasBefore, err := decodeActivity(ev, ev.DecodeBefore)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	h.syncTitle(ctx, log, &rep, after)

	// Without the prior participant set there is nothing to diff against.
	if !hasBefore {
		log.Warn("activity updated event without before snapshot, membership left as is")
		if rep.Applied == 0 && rep.Failed == 0 {
			return skipped("no_before_snapshot"), nil
		}
		rep.Reason = "no_before_snapshot"
		return rep.finish(), nil
	}

	ch := membership.Diff(before.Participants, after.Participants)
	if ch.Empty() {
		return rep.finish(), nil
	}

	at := h.eventTime(ev)
	names := h.members.ResolveNames(ctx, after.ID, append(append([]string{}, ch.Added...), ch.Removed...))
	ws := membership.Plan(after.ID, ch, names.Names, at)
	ws = append(ws, sysmsg.ForChange(after.ID, ch.Added, ch.Removed, names.Names, at)...)
	h.apply(ctx, log, &rep, ws)

	log.Info("activity membership reconciled",
		zap.String("activity_id", after.ID),
		zap.Int("added", len(ch.Added)),
		zap.Int("removed", len(ch.Removed)))
	return rep.finish(), nil
}

// ActivityDeleted removes every former participant from the chat. Messages
// stay until the cleanup sweep deletes them.
func (h *Handlers) ActivityDeleted(ctx context.Context, ev events.Event) (Report, error) {
	log := h.eventLog(ev)
	before, ok, err := decodeActivity(ev, ev.DecodeBefore)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		log.Warn("activity deleted event without before snapshot")
		return skipped("no_snapshot"), nil
	}

	ch := membership.Diff(before.Participants, nil)
	if ch.Empty() {
		return skipped("no_participants"), nil
	}

	var rep Report
	h.apply(ctx, log, &rep, membership.Plan(before.ID, ch, nil, h.eventTime(ev)))
	log.Info("activity membership removed",
		zap.String("activity_id", before.ID),
		zap.Int("removed", len(ch.Removed)))
	return rep.finish(), nil
}

// ParticipantAdded adds one user to the chat and posts a join message.
func (h *Handlers) ParticipantAdded(ctx context.Context, ev events.Event) (Report, error) {
	return h.participantChanged(ctx, ev, true)
}

// ParticipantRemoved removes one user from the chat and posts a leave message.
func (h *Handlers) ParticipantRemoved(ctx context.Context, ev events.Event) (Report, error) {
	return h.participantChanged(ctx, ev, false)
}

func (h *Handlers) participantChanged(ctx context.Context, ev events.Event, added bool) (Report, error) {
	log := h.eventLog(ev)
	ref := ev.Ref()

	var snap models.Participant
	decode := ev.DecodeBefore
	if added {
		decode = ev.DecodeAfter
	}
	if _, err := decode(&snap); err != nil {
		return Report{}, err
	}

	names := h.members.ResolveNames(ctx, ref.ActivityID, []string{ref.UserID})
	if names.Names[ref.UserID] == nil && snap.DisplayName != "" {
		name := snap.DisplayName
		names.Names[ref.UserID] = &name
	}

	at := h.eventTime(ev)
	var ch membership.Change
	var ws []writes.Write
	if added {
		ch.Added = []string{ref.UserID}
		ws = append(membership.Plan(ref.ActivityID, ch, names.Names, at),
			sysmsg.Joined(ref.ActivityID, ref.UserID, names.Names[ref.UserID], at))
	} else {
		ch.Removed = []string{ref.UserID}
		ws = append(membership.Plan(ref.ActivityID, ch, names.Names, at),
			sysmsg.Left(ref.ActivityID, ref.UserID, names.Names[ref.UserID], at))
	}

	var rep Report
	h.apply(ctx, log, &rep, ws)
	log.Info("participant membership changed",
		zap.String("activity_id", ref.ActivityID),
		zap.String("user_id", ref.UserID),
		zap.Bool("added", added))
	return rep.finish(), nil
}

func (h *Handlers) syncTitle(ctx context.Context, log *zap.Logger, rep *Report, activity models.Activity) {
	wrote, err := h.index.SyncTitle(ctx, activity)
	if err != nil {
		rep.addFailure()
		log.Error("title index update failed", zap.Error(err))
		return
	}
	if wrote {
		rep.Applied++
	}
}

func (h *Handlers) apply(ctx context.Context, log *zap.Logger, rep *Report, ws []writes.Write) {
	res := writes.Apply(ctx, h.deps.Tree, ws)
	rep.addWrites(res)
	if err := res.Err(); err != nil {
		log.Error("chat tree writes failed", zap.Int("failed", res.Failed), zap.Error(err))
	}
}

// decodeActivity reads one snapshot, filling the id from the path when the
// document body omits it.
func decodeActivity(ev events.Event, decode func(any) (bool, error)) (models.Activity, bool, error) {
	var activity models.Activity
	ok, err := decode(&activity)
	if err != nil || !ok {
		return models.Activity{}, ok, err
	}
	if activity.ID == "" {
		activity.ID = ev.Ref().ActivityID
	}
	return activity, true, nil
}
