package repositories

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-sync/internal/models"
)

func newTestTree(t *testing.T) (*ChatTreeRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewChatTreeRepo(rdb), mr
}

func TestChatTreeRepoMembersAndIndex(t *testing.T) {
	repo, mr := newTestTree(t)
	ctx := context.Background()
	name := "Ann"

	require.NoError(t, repo.SetMember(ctx, "a1", "u1", models.ChatMember{JoinedAt: 10, Name: &name}))
	require.NoError(t, repo.SetMember(ctx, "a1", "u2", models.ChatMember{JoinedAt: 10}))
	require.NoError(t, repo.SetUserChat(ctx, "u1", "a1"))

	assert.True(t, mr.Exists("activity-chats/a1/members"))
	assert.Equal(t, "true", mr.HGet("user-chats/u1", "a1"))
	assert.JSONEq(t, `{"joinedAt":10,"name":null}`, mr.HGet("activity-chats/a1/members", "u2"))

	members, err := repo.ListMembers(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, &name, members["u1"].Name)
	assert.Nil(t, members["u2"].Name)

	require.NoError(t, repo.RemoveMember(ctx, "a1", "u2"))
	require.NoError(t, repo.RemoveMember(ctx, "a1", "nobody"))
	members, err = repo.ListMembers(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	require.NoError(t, repo.RemoveUserChat(ctx, "u1", "a1"))
	chats, err := repo.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestChatTreeRepoMessagesUpsert(t *testing.T) {
	repo, _ := newTestTree(t)
	ctx := context.Background()

	msg := models.ChatMessage{ID: "m2", ActivityID: "a1", SenderID: "system", Text: "v1", Timestamp: 5, Type: models.MessageTypeSystem}
	require.NoError(t, repo.UpsertMessage(ctx, msg))
	msg.Text = "v2"
	require.NoError(t, repo.UpsertMessage(ctx, msg))
	require.NoError(t, repo.UpsertMessage(ctx, models.ChatMessage{ID: "m1", ActivityID: "a1", Text: "first", Timestamp: 1}))
	assert.Error(t, repo.UpsertMessage(ctx, models.ChatMessage{ActivityID: "a1"}))

	msgs, err := repo.ListMessages(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "v2", msgs[1].Text)
	assert.Equal(t, "a1", msgs[1].ActivityID)
}

func TestChatTreeRepoListAndDeleteChats(t *testing.T) {
	repo, mr := newTestTree(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertMessage(ctx, models.ChatMessage{ID: "m1", ActivityID: "a1", Timestamp: 1}))
	require.NoError(t, repo.SetMember(ctx, "a1", "u1", models.ChatMember{}))
	require.NoError(t, repo.SetMember(ctx, "a2", "u1", models.ChatMember{}))
	require.NoError(t, repo.SetUserChat(ctx, "u1", "a1"))

	ids, err := repo.ListChatIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)

	require.NoError(t, repo.DeleteChat(ctx, "a1"))
	assert.False(t, mr.Exists("chat-messages/a1"))
	assert.False(t, mr.Exists("activity-chats/a1/members"))
	assert.True(t, mr.Exists("user-chats/u1"), "reverse index is cleared separately")

	ids, err = repo.ListChatIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, ids)
}

func TestSortMessages(t *testing.T) {
	msgs := []models.ChatMessage{{ID: "b", Timestamp: 2}, {ID: "c", Timestamp: 1}, {ID: "a", Timestamp: 2}}
	SortMessages(msgs)
	assert.Equal(t, []string{"c", "a", "b"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}
