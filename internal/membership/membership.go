// Package membership reconciles an activity's participant set with the chat
// member tree and the per-user chat index.
package membership

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"activity-sync/internal/models"
	"activity-sync/internal/observability"
	"activity-sync/internal/repositories"
	"activity-sync/internal/writes"
)

// Change is the difference between two participant sets.
type Change struct {
	Added   []string
	Removed []string
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Diff returns after\before as Added and before\after as Removed, in input
// order, skipping empty and duplicate ids.
func Diff(before, after []string) Change {
	prev := toSet(before)
	next := toSet(after)

	var ch Change
	for _, id := range unique(after) {
		if _, ok := prev[id]; !ok {
			ch.Added = append(ch.Added, id)
		}
	}
	for _, id := range unique(before) {
		if _, ok := next[id]; !ok {
			ch.Removed = append(ch.Removed, id)
		}
	}
	return ch
}

// Plan returns the writes that bring the tree in line with ch. Members are
// overwritten rather than appended, so replaying a plan is harmless.
func Plan(activityID string, ch Change, names Names, joinedAt time.Time) []writes.Write {
	ws := make([]writes.Write, 0, 2*(len(ch.Added)+len(ch.Removed)))
	for _, userID := range ch.Added {
		ws = append(ws,
			writes.Write{
				Op:         writes.OpSetMember,
				ActivityID: activityID,
				UserID:     userID,
				Member:     models.ChatMember{JoinedAt: models.Millis(joinedAt), Name: names[userID]},
			},
			writes.Write{Op: writes.OpSetUserChat, ActivityID: activityID, UserID: userID},
		)
	}
	for _, userID := range ch.Removed {
		ws = append(ws,
			writes.Write{Op: writes.OpRemoveMember, ActivityID: activityID, UserID: userID},
			writes.Write{Op: writes.OpRemoveUserChat, ActivityID: activityID, UserID: userID},
		)
	}
	return ws
}

// Names maps user ids to display names. A nil value means the name is unknown.
type Names map[string]*string

// Resolution is the outcome of a ResolveNames call.
type Resolution struct {
	Names  Names
	Failed int
}

const defaultLookupConcurrency = 8

// Synchronizer resolves participant display names from profiles.
type Synchronizer struct {
	profiles    repositories.ProfileRepository
	log         *zap.Logger
	concurrency int
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(profiles repositories.ProfileRepository, log *zap.Logger) *Synchronizer {
	return &Synchronizer{profiles: profiles, log: log, concurrency: defaultLookupConcurrency}
}

// ResolveNames looks up every user concurrently. Missing profiles and failed
// lookups both resolve to a nil name; failures are logged and counted and
// never abort the other lookups.
func (s *Synchronizer) ResolveNames(ctx context.Context, activityID string, userIDs []string) Resolution {
	res := Resolution{Names: make(Names, len(userIDs))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			profile, err := s.profiles.GetProfile(gctx, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				name := profile.DisplayName
				if name == "" {
					res.Names[userID] = nil
				} else {
					res.Names[userID] = &name
				}
			case errors.Is(err, repositories.ErrProfileNotFound):
				res.Names[userID] = nil
			default:
				res.Names[userID] = nil
				res.Failed++
				observability.IncProfileLookupError()
				s.log.Warn("profile lookup failed",
					zap.String("activity_id", activityID),
					zap.String("user_id", userID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
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
