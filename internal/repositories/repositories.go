package repositories

import (
	"context"
	"errors"
	"time"

	"activity-sync/internal/models"
)

var (
	ErrActivityNotFound      = errors.New("activity not found")
	ErrProfileNotFound       = errors.New("profile not found")
	ErrFriendRequestNotFound = errors.New("friend request not found")
)

// ActivityRepository abstracts activity documents.
type ActivityRepository interface {
	GetActivity(ctx context.Context, activityID string) (models.Activity, error)
	SetTitleLowercase(ctx context.Context, activityID, titleLowercase string) error
	// InitArchived sets archived=false only when the field is unset. It reports
	// whether a write happened.
	InitArchived(ctx context.Context, activityID string) (bool, error)
	// SetLastMessageTimestamp only moves the projection forward.
	SetLastMessageTimestamp(ctx context.Context, activityID string, ts time.Time) error
	ListArchivable(ctx context.Context, now time.Time) ([]string, error)
	MarkArchived(ctx context.Context, activityIDs []string) (int64, error)
}

// ProfileRepository abstracts user profile documents.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (models.UserProfile, error)
	SetDisplayNameLowercase(ctx context.Context, userID, displayNameLowercase string) error
	// AddFriendPair adds a to b's friends and b to a's friends with set semantics.
	AddFriendPair(ctx context.Context, a, b string) error
}

// FriendRequestRepository abstracts friend request documents.
type FriendRequestRepository interface {
	GetFriendRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
}

// ChatTreeRepository abstracts the hierarchical chat store.
type ChatTreeRepository interface {
	SetMember(ctx context.Context, activityID, userID string, member models.ChatMember) error
	RemoveMember(ctx context.Context, activityID, userID string) error
	ListMembers(ctx context.Context, activityID string) (map[string]models.ChatMember, error)

	SetUserChat(ctx context.Context, userID, activityID string) error
	RemoveUserChat(ctx context.Context, userID, activityID string) error
	ListUserChats(ctx context.Context, userID string) ([]string, error)

	// UpsertMessage writes msg under msg.ID, overwriting any previous value.
	UpsertMessage(ctx context.Context, msg models.ChatMessage) error
	ListMessages(ctx context.Context, activityID string) ([]models.ChatMessage, error)

	// ListChatIDs returns every activity id that has messages or members.
	ListChatIDs(ctx context.Context) ([]string, error)
	// DeleteChat removes all messages and the member subtree of an activity.
	DeleteChat(ctx context.Context, activityID string) error
}
