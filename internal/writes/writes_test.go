package writes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"activity-sync/internal/mocks"
	"activity-sync/internal/models"
)

func TestApplyContinuesAfterFailure(t *testing.T) {
	tree := new(mocks.ChatTreeRepositoryMock)
	tree.On("SetMember", mock.Anything, "a1", "u1", mock.Anything).Return(assert.AnError).Once()
	tree.On("SetUserChat", mock.Anything, "u1", "a1").Return(nil).Once()
	tree.On("RemoveMember", mock.Anything, "a1", "u2").Return(nil).Once()

	res := Apply(context.Background(), tree, []Write{
		{Op: OpSetMember, ActivityID: "a1", UserID: "u1"},
		{Op: OpSetUserChat, ActivityID: "a1", UserID: "u1"},
		{Op: OpRemoveMember, ActivityID: "a1", UserID: "u2"},
	})

	require.Equal(t, 2, res.Applied)
	require.Equal(t, 1, res.Failed)
	require.ErrorIs(t, res.Err(), assert.AnError)
	require.Contains(t, res.Err().Error(), "activity-chats/a1/members/u1")
	tree.AssertExpectations(t)
}

func TestApplyUnknownOp(t *testing.T) {
	res := Apply(context.Background(), new(mocks.ChatTreeRepositoryMock), []Write{{Op: "bogus"}})
	require.Equal(t, 1, res.Failed)
}

func TestWritePath(t *testing.T) {
	assert.Equal(t, "user-chats/u1/a1", Write{Op: OpRemoveUserChat, ActivityID: "a1", UserID: "u1"}.Path())
	msg := models.ChatMessage{ID: "m1", ActivityID: "a1"}
	assert.Equal(t, "chat-messages/a1/m1", Write{Op: OpUpsertMessage, Message: msg}.Path())
}

func TestResultMerge(t *testing.T) {
	r := Result{Applied: 1}
	r.Merge(Result{Applied: 2, Failed: 1, Errors: []error{assert.AnError}})
	assert.Equal(t, 3, r.Applied)
	assert.Equal(t, 1, r.Failed)
	assert.Len(t, r.Errors, 1)
}
