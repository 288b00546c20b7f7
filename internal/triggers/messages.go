package triggers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"activity-sync/internal/events"
	"activity-sync/internal/models"
	"activity-sync/internal/repositories"
)

// ChatMessageCreated pushes a new message to the other participants and
// advances the activity's lastMessageTimestamp.
func (h *Handlers) ChatMessageCreated(ctx context.Context, ev events.Event) (Report, error) {
	log := h.eventLog(ev)
	ref := ev.Ref()

	var msg models.ChatMessage
	ok, err := ev.DecodeAfter(&msg)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return skipped("no_snapshot"), nil
	}
	msg.ID = ref.MessageID
	msg.ActivityID = ref.ActivityID

	var rep Report
	h.touchLastMessage(ctx, log, &rep, msg)

	res, err := h.fanout.Notify(ctx, msg)
	if err != nil {
		rep.addFailure()
		log.Error("notification fan-out failed", zap.Error(err))
		return rep.finish(), nil
	}
	if res.Skipped != "" && rep.Applied == 0 {
		return skipped(res.Skipped), nil
	}
	rep.Applied += res.Success
	rep.Failed += res.Failure + res.LookupFailures
	return rep.finish(), nil
}

func (h *Handlers) touchLastMessage(ctx context.Context, log *zap.Logger, rep *Report, msg models.ChatMessage) {
	if msg.Timestamp <= 0 {
		return
	}
	err := h.deps.Activities.SetLastMessageTimestamp(ctx, msg.ActivityID, models.FromMillis(msg.Timestamp))
	switch {
	case err == nil:
		rep.Applied++
	case errors.Is(err, repositories.ErrActivityNotFound):
	default:
		rep.addFailure()
		log.Warn("last message timestamp update failed", zap.Error(err))
	}
}
