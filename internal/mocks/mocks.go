package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"activity-sync/internal/models"
	"activity-sync/internal/notify"
	"activity-sync/internal/repositories"
	"activity-sync/internal/sweeps"
)

type ActivityRepositoryMock struct {
	mock.Mock
}

func (m *ActivityRepositoryMock) GetActivity(ctx context.Context, activityID string) (models.Activity, error) {
	args := m.Called(ctx, activityID)
	var activity models.Activity
	if val := args.Get(0); val != nil {
		activity = val.(models.Activity)
	}
	return activity, args.Error(1)
}

func (m *ActivityRepositoryMock) SetTitleLowercase(ctx context.Context, activityID, titleLowercase string) error {
	args := m.Called(ctx, activityID, titleLowercase)
	return args.Error(0)
}

func (m *ActivityRepositoryMock) InitArchived(ctx context.Context, activityID string) (bool, error) {
	args := m.Called(ctx, activityID)
	return args.Bool(0), args.Error(1)
}

func (m *ActivityRepositoryMock) SetLastMessageTimestamp(ctx context.Context, activityID string, ts time.Time) error {
	args := m.Called(ctx, activityID, ts)
	return args.Error(0)
}

func (m *ActivityRepositoryMock) ListArchivable(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *ActivityRepositoryMock) MarkArchived(ctx context.Context, activityIDs []string) (int64, error) {
	args := m.Called(ctx, activityIDs)
	return args.Get(0).(int64), args.Error(1)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) GetProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	args := m.Called(ctx, userID)
	var profile models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(models.UserProfile)
	}
	return profile, args.Error(1)
}

func (m *ProfileRepositoryMock) SetDisplayNameLowercase(ctx context.Context, userID, displayNameLowercase string) error {
	args := m.Called(ctx, userID, displayNameLowercase)
	return args.Error(0)
}

func (m *ProfileRepositoryMock) AddFriendPair(ctx context.Context, a, b string) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

type ChatTreeRepositoryMock struct {
	mock.Mock
}

func (m *ChatTreeRepositoryMock) SetMember(ctx context.Context, activityID, userID string, member models.ChatMember) error {
	args := m.Called(ctx, activityID, userID, member)
	return args.Error(0)
}

func (m *ChatTreeRepositoryMock) RemoveMember(ctx context.Context, activityID, userID string) error {
	args := m.Called(ctx, activityID, userID)
	return args.Error(0)
}

func (m *ChatTreeRepositoryMock) ListMembers(ctx context.Context, activityID string) (map[string]models.ChatMember, error) {
	args := m.Called(ctx, activityID)
	var members map[string]models.ChatMember
	if val := args.Get(0); val != nil {
		members = val.(map[string]models.ChatMember)
	}
	return members, args.Error(1)
}

func (m *ChatTreeRepositoryMock) SetUserChat(ctx context.Context, userID, activityID string) error {
	args := m.Called(ctx, userID, activityID)
	return args.Error(0)
}

func (m *ChatTreeRepositoryMock) RemoveUserChat(ctx context.Context, userID, activityID string) error {
	args := m.Called(ctx, userID, activityID)
	return args.Error(0)
}

func (m *ChatTreeRepositoryMock) ListUserChats(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *ChatTreeRepositoryMock) UpsertMessage(ctx context.Context, msg models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *ChatTreeRepositoryMock) ListMessages(ctx context.Context, activityID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, activityID)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *ChatTreeRepositoryMock) ListChatIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *ChatTreeRepositoryMock) DeleteChat(ctx context.Context, activityID string) error {
	args := m.Called(ctx, activityID)
	return args.Error(0)
}

type SenderMock struct {
	mock.Mock
}

func (m *SenderMock) SendMulticast(ctx context.Context, tokens []string, payload notify.Payload) (notify.BatchResponse, error) {
	args := m.Called(ctx, tokens, payload)
	var resp notify.BatchResponse
	if val := args.Get(0); val != nil {
		resp = val.(notify.BatchResponse)
	}
	return resp, args.Error(1)
}

type ArchiveRunnerMock struct {
	mock.Mock
}

func (m *ArchiveRunnerMock) Run(ctx context.Context) (sweeps.ArchiveResult, error) {
	args := m.Called(ctx)
	var res sweeps.ArchiveResult
	if val := args.Get(0); val != nil {
		res = val.(sweeps.ArchiveResult)
	}
	return res, args.Error(1)
}

type CleanupRunnerMock struct {
	mock.Mock
}

func (m *CleanupRunnerMock) Run(ctx context.Context) (sweeps.CleanupResult, error) {
	args := m.Called(ctx)
	var res sweeps.CleanupResult
	if val := args.Get(0); val != nil {
		res = val.(sweeps.CleanupResult)
	}
	return res, args.Error(1)
}

var _ repositories.ActivityRepository = (*ActivityRepositoryMock)(nil)
var _ repositories.ProfileRepository = (*ProfileRepositoryMock)(nil)
var _ repositories.ChatTreeRepository = (*ChatTreeRepositoryMock)(nil)
var _ notify.Sender = (*SenderMock)(nil)
var _ interface {
	Run(context.Context) (sweeps.ArchiveResult, error)
} = (*ArchiveRunnerMock)(nil)
var _ interface {
	Run(context.Context) (sweeps.CleanupResult, error)
} = (*CleanupRunnerMock)(nil)
