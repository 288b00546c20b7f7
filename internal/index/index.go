// Package index maintains derived search projections and friend graph edges.
package index

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"activity-sync/internal/models"
	"activity-sync/internal/repositories"
)

// Lowercase is the search projection of a display string.
func Lowercase(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Projection returns the projection of source and whether it differs from current.
func Projection(source, current string) (string, bool) {
	lower := Lowercase(source)
	return lower, lower != current
}

// FriendshipAccepted reports whether a request flipped from pending to accepted.
// A redelivered accepted→accepted update does not count.
func FriendshipAccepted(before, after models.FriendRequest) bool {
	return before.Status == models.FriendRequestPending && after.Status == models.FriendRequestAccepted
}

// Maintainer applies projection and friend graph updates.
type Maintainer struct {
	activities repositories.ActivityRepository
	profiles   repositories.ProfileRepository
	log        *zap.Logger
}

// NewMaintainer constructs a Maintainer.
func NewMaintainer(activities repositories.ActivityRepository, profiles repositories.ProfileRepository, log *zap.Logger) *Maintainer {
	return &Maintainer{activities: activities, profiles: profiles, log: log}
}

// SyncTitle persists title_lowercase when it is stale. It reports whether it wrote.
func (m *Maintainer) SyncTitle(ctx context.Context, activity models.Activity) (bool, error) {
	lower, stale := Projection(activity.Title, activity.TitleLowercase)
	if !stale {
		return false, nil
	}
	if err := m.activities.SetTitleLowercase(ctx, activity.ID, lower); err != nil {
		return false, fmt.Errorf("set title_lowercase on %s: %w", activity.ID, err)
	}
	return true, nil
}

// InitArchived sets archived=false on a freshly created activity. An activity
// whose flag is already present, including one archived since, is left alone.
func (m *Maintainer) InitArchived(ctx context.Context, activity models.Activity) (bool, error) {
	if activity.Archived != nil {
		return false, nil
	}
	wrote, err := m.activities.InitArchived(ctx, activity.ID)
	if err != nil {
		return false, fmt.Errorf("init archived on %s: %w", activity.ID, err)
	}
	return wrote, nil
}

// SyncDisplayName persists displayName_lowercase when it is stale.
func (m *Maintainer) SyncDisplayName(ctx context.Context, profile models.UserProfile) (bool, error) {
	lower, stale := Projection(profile.DisplayName, profile.DisplayNameLowercase)
	if !stale {
		return false, nil
	}
	if err := m.profiles.SetDisplayNameLowercase(ctx, profile.ID, lower); err != nil {
		return false, fmt.Errorf("set displayName_lowercase on %s: %w", profile.ID, err)
	}
	return true, nil
}

// ApplyFriendRequest links sender and receiver when the request was just accepted.
func (m *Maintainer) ApplyFriendRequest(ctx context.Context, before, after models.FriendRequest) (bool, error) {
	if !FriendshipAccepted(before, after) {
		return false, nil
	}
	if after.SenderID == "" || after.ReceiverID == "" || after.SenderID == after.ReceiverID {
		m.log.Warn("accepted friend request has invalid parties",
			zap.String("request_id", after.ID),
			zap.String("sender_id", after.SenderID),
			zap.String("receiver_id", after.ReceiverID))
		return false, nil
	}
	if err := m.profiles.AddFriendPair(ctx, after.SenderID, after.ReceiverID); err != nil {
		return false, fmt.Errorf("add friends %s<->%s: %w", after.SenderID, after.ReceiverID, err)
	}
	m.log.Info("friendship created",
		zap.String("request_id", after.ID),
		zap.String("sender_id", after.SenderID),
		zap.String("receiver_id", after.ReceiverID))
	return true, nil
}
