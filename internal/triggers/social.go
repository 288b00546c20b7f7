package triggers

import (
	"context"

	"go.uber.org/zap"

	"activity-sync/internal/events"
	"activity-sync/internal/models"
)

// ProfileWritten keeps displayName_lowercase in step with displayName.
func (h *Handlers) ProfileWritten(ctx context.Context, ev events.Event) (Report, error) {
	log := h.eventLog(ev)
	var profile models.UserProfile
	ok, err := ev.DecodeAfter(&profile)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return skipped("no_snapshot"), nil
	}
	if profile.ID == "" {
		profile.ID = ev.Ref().UserID
	}

	var rep Report
	wrote, err := h.index.SyncDisplayName(ctx, profile)
	switch {
	case err != nil:
		rep.addFailure()
		log.Error("display name index update failed", zap.String("user_id", profile.ID), zap.Error(err))
	case !wrote:
		return skipped("unchanged"), nil
	default:
		rep.Applied++
	}
	return rep.finish(), nil
}

// FriendRequestUpdated befriends both parties when a request flips from
// pending to accepted.
func (h *Handlers) FriendRequestUpdated(ctx context.Context, ev events.Event) (Report, error) {
	log := h.eventLog(ev)
	var before, after models.FriendRequest
	if _, err := ev.DecodeBefore(&before); err != nil {
		return Report{}, err
	}
	ok, err := ev.DecodeAfter(&after)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return skipped("no_snapshot"), nil
	}
	if after.ID == "" {
		after.ID = ev.Ref().RequestID
	}

	var rep Report
	applied, err := h.index.ApplyFriendRequest(ctx, before, after)
	switch {
	case err != nil:
		rep.addFailure()
		log.Error("friendship update failed", zap.String("request_id", after.ID), zap.Error(err))
	case !applied:
		return skipped("not_accepted"), nil
	default:
		rep.Applied++
	}
	return rep.finish(), nil
}
