// Package notify turns new chat messages into push notifications for the
// other participants of the activity.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"activity-sync/internal/models"
	"activity-sync/internal/observability"
	"activity-sync/internal/repositories"
)

// Skip reasons reported in Result.Skipped.
const (
	SkipSystemMessage  = "system_message"
	SkipNoActivity     = "activity_not_found"
	SkipNoParticipants = "no_participants"
	SkipNoRecipients   = "no_recipients"
	SkipNoTokens       = "no_tokens"
)

const defaultLookupConcurrency = 16

// Result summarizes one fan-out.
type Result struct {
	Recipients     int
	Tokens         []string
	LookupFailures int
	Success        int
	Failure        int
	Skipped        string
}

// FanOut resolves recipient tokens and dispatches one batched push per message.
type FanOut struct {
	activities  repositories.ActivityRepository
	profiles    repositories.ProfileRepository
	sender      Sender
	log         *zap.Logger
	concurrency int
}

// NewFanOut constructs a FanOut.
func NewFanOut(activities repositories.ActivityRepository, profiles repositories.ProfileRepository, sender Sender, log *zap.Logger) *FanOut {
	return &FanOut{
		activities:  activities,
		profiles:    profiles,
		sender:      sender,
		log:         log,
		concurrency: defaultLookupConcurrency,
	}
}

// Notify pushes msg to every participant except its sender. Missing
// preconditions and per-recipient failures are logged and reported in the
// Result; only an unexpected activity lookup error is returned.
func (f *FanOut) Notify(ctx context.Context, msg models.ChatMessage) (Result, error) {
	log := f.log.With(zap.String("activity_id", msg.ActivityID), zap.String("message_id", msg.ID))

	if msg.IsSystem() {
		return Result{Skipped: SkipSystemMessage}, nil
	}

	activity, err := f.activities.GetActivity(ctx, msg.ActivityID)
	if errors.Is(err, repositories.ErrActivityNotFound) {
		log.Info("activity not found, skipping notification")
		return Result{Skipped: SkipNoActivity}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("load activity %s: %w", msg.ActivityID, err)
	}
	if len(activity.Participants) == 0 {
		log.Info("activity has no participants, skipping notification")
		return Result{Skipped: SkipNoParticipants}, nil
	}

	recipients := Recipients(activity.Participants, msg.SenderID)
	res := Result{Recipients: len(recipients)}
	if len(recipients) == 0 {
		res.Skipped = SkipNoRecipients
		return res, nil
	}

	res.Tokens, res.LookupFailures = f.resolveTokens(ctx, log, recipients)
	if len(res.Tokens) == 0 {
		log.Info("no device tokens for recipients", zap.Int("recipients", len(recipients)))
		res.Skipped = SkipNoTokens
		return res, nil
	}

	resp, err := f.sender.SendMulticast(ctx, res.Tokens, BuildPayload(msg))
	res.Success, res.Failure = resp.SuccessCount, resp.FailureCount
	if err != nil {
		if res.Success == 0 && res.Failure == 0 {
			res.Failure = len(res.Tokens)
		}
		log.Error("push dispatch failed", zap.Int("tokens", len(res.Tokens)), zap.Error(err))
	} else {
		log.Info("push dispatched",
			zap.Int("success", res.Success),
			zap.Int("failure", res.Failure))
	}
	observability.AddPushTokens("success", res.Success)
	observability.AddPushTokens("failure", res.Failure)
	return res, nil
}

// Recipients returns participants without the sender, deduplicated, in order.
func Recipients(participants []string, senderID string) []string {
	seen := make(map[string]struct{}, len(participants))
	out := make([]string, 0, len(participants))
	for _, id := range participants {
		if id == "" || id == senderID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolveTokens fetches every recipient's profile in one concurrent batch and
// returns the non-empty tokens in recipient order.
func (f *FanOut) resolveTokens(ctx context.Context, log *zap.Logger, recipients []string) ([]string, int) {
	tokens := make([]string, len(recipients))
	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, userID := range recipients {
		g.Go(func() error {
			profile, err := f.profiles.GetProfile(gctx, userID)
			if err != nil {
				if !errors.Is(err, repositories.ErrProfileNotFound) {
					mu.Lock()
					failed++
					mu.Unlock()
					observability.IncProfileLookupError()
					log.Warn("token lookup failed", zap.String("user_id", userID), zap.Error(err))
				}
				return nil
			}
			tokens[i] = profile.FCMToken
			return nil
		})
	}
	_ = g.Wait()

	out := tokens[:0]
	for _, tok := range tokens {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out, failed
}
