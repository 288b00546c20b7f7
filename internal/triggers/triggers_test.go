package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"activity-sync/internal/events"
	"activity-sync/internal/memstore"
	"activity-sync/internal/mocks"
	"activity-sync/internal/models"
	"activity-sync/internal/notify"
	"activity-sync/internal/sysmsg"
	"activity-sync/internal/telemetry"
)

var occurredAt = time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	docs   *memstore.Docs
	tree   *memstore.ChatTree
	sender *mocks.SenderMock
	router *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:   memstore.NewDocs(),
		tree:   memstore.NewChatTree(),
		sender: new(mocks.SenderMock),
	}
	h := NewHandlers(Deps{
		Activities: f.docs,
		Profiles:   f.docs,
		Tree:       f.tree,
		Sender:     f.sender,
		Log:        zap.NewNop(),
	})
	f.router = NewRouter(h, time.Second, nil, zap.NewNop())
	return f
}

func snapshot(t *testing.T, v any) json.RawMessage {
	t.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func event(t *testing.T, id string, kind events.Kind, path string, before, after any) events.Event {
	return events.Event{
		ID:         id,
		Kind:       kind,
		Path:       path,
		Before:     snapshot(t, before),
		After:      snapshot(t, after),
		OccurredAt: occurredAt,
	}
}

func strPtr(s string) *string { return &s }

func (f *fixture) members(t *testing.T, activityID string) map[string]models.ChatMember {
	t.Helper()
	m, err := f.tree.ListMembers(context.Background(), activityID)
	require.NoError(t, err)
	return m
}

func (f *fixture) messages(t *testing.T, activityID string) []models.ChatMessage {
	t.Helper()
	msgs, err := f.tree.ListMessages(context.Background(), activityID)
	require.NoError(t, err)
	return msgs
}

func TestActivityCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := models.Activity{ID: "a1", Title: "Sunday Hike", Participants: []string{"u1", "u2"}}
	f.docs.PutActivity(activity)
	f.docs.PutProfile(models.UserProfile{ID: "u1", DisplayName: "Ann"})

	ev := event(t, "e1", events.KindCreated, "activities/a1", nil, activity)
	rep, err := f.router.Dispatch(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, "activity_created", rep.Handler)
	assert.Equal(t, OutcomeOK, rep.Outcome)

	joined := models.Millis(occurredAt)
	assert.Equal(t, map[string]models.ChatMember{
		"u1": {JoinedAt: joined, Name: strPtr("Ann")},
		"u2": {JoinedAt: joined, Name: nil},
	}, f.members(t, "a1"))

	for _, u := range []string{"u1", "u2"} {
		chats, err := f.tree.ListUserChats(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, chats)
	}

	msgs := f.messages(t, "a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, sysmsg.MessageID("a1", sysmsg.TransitionCreated, ""), msgs[0].ID)
	assert.Equal(t, "Chat created for Sunday Hike.", msgs[0].Text)
	assert.Equal(t, models.SystemSenderID, msgs[0].SenderID)
	assert.Equal(t, joined, msgs[0].Timestamp)

	stored, err := f.docs.GetActivity(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "sunday hike", stored.TitleLowercase)
	require.NotNil(t, stored.Archived)
	assert.False(t, *stored.Archived)

	// Redelivery converges on the same state.
	_, err = f.router.Dispatch(ctx, ev)
	require.NoError(t, err)
	assert.Len(t, f.messages(t, "a1"), 1)
	assert.Len(t, f.members(t, "a1"), 2)
}

func TestActivityCreatedRedeliveryAfterArchival(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := models.Activity{ID: "a1", Title: "Hike", Participants: []string{"u1"}}
	ev := event(t, "e1", events.KindCreated, "activities/a1", nil, activity)

	archived := true
	stored := activity
	stored.Archived = &archived
	f.docs.PutActivity(stored)

	_, err := f.router.Dispatch(ctx, ev)
	require.NoError(t, err)

	got, err := f.docs.GetActivity(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.IsArchived())
}

func TestActivityCreatedSurfacesChatWriteFailures(t *testing.T) {
	docs := memstore.NewDocs()
	tree := new(mocks.ChatTreeRepositoryMock)
	tree.On("SetMember", mock.Anything, "a1", "u1", mock.Anything).Return(errors.New("redis down"))
	tree.On("SetUserChat", mock.Anything, "u1", "a1").Return(nil)
	tree.On("UpsertMessage", mock.Anything, mock.Anything).Return(nil)

	h := NewHandlers(Deps{Activities: docs, Profiles: docs, Tree: tree, Sender: new(mocks.SenderMock), Log: zap.NewNop()})
	router := NewRouter(h, time.Second, nil, zap.NewNop())

	activity := models.Activity{ID: "a1", Title: "Hike", Participants: []string{"u1"}}
	docs.PutActivity(activity)
	rep, err := router.Dispatch(context.Background(), event(t, "e1", events.KindCreated, "activities/a1", nil, activity))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.Equal(t, 1, rep.Failed)
	tree.AssertExpectations(t)
}

func TestActivityUpdatedReconcilesMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.docs.PutProfile(models.UserProfile{ID: "u1", DisplayName: "Ann"})
	f.docs.PutProfile(models.UserProfile{ID: "u3", DisplayName: "Cleo"})

	before := models.Activity{ID: "a1", Title: "Hike", Participants: []string{"u1", "u2"}}
	after := models.Activity{ID: "a1", Title: "Hike", TitleLowercase: "hike", Participants: []string{"u2", "u3"}}
	f.docs.PutActivity(after)

	_, err := f.router.Dispatch(ctx, event(t, "e0", events.KindCreated, "activities/a1", nil, before))
	require.NoError(t, err)

	ev := event(t, "e1", events.KindUpdated, "activities/a1", before, after)
	rep, err := f.router.Dispatch(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, rep.Outcome)

	members := f.members(t, "a1")
	assert.ElementsMatch(t, []string{"u2", "u3"}, keys(members))
	assert.Equal(t, strPtr("Cleo"), members["u3"].Name)

	chats, err := f.tree.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, chats)

	texts := map[string]string{}
	for _, m := range f.messages(t, "a1") {
		texts[m.ID] = m.Text
	}
	assert.Equal(t, "Cleo has joined the chat.", texts[sysmsg.MessageID("a1", sysmsg.TransitionJoined, "u3")])
	assert.Equal(t, "Ann has left the chat.", texts[sysmsg.MessageID("a1", sysmsg.TransitionLeft, "u1")])
	assert.Len(t, texts, 3)

	_, err = f.router.Dispatch(ctx, ev)
	require.NoError(t, err)
	assert.Len(t, f.messages(t, "a1"), 3)
}

func TestActivityUpdatedWithoutParticipantChange(t *testing.T) {
	f := newFixture(t)
	before := models.Activity{ID: "a1", Title: "Hike", TitleLowercase: "hike", Participants: []string{"u1"}}
	after := before
	after.Title = "Long Hike"
	f.docs.PutActivity(after)

	rep, err := f.router.Dispatch(context.Background(), event(t, "e1", events.KindUpdated, "activities/a1", before, after))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Applied)
	assert.Empty(t, f.messages(t, "a1"))

	stored, err := f.docs.GetActivity(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "long hike", stored.TitleLowercase)
}

func TestActivityUpdatedWithoutBeforeLeavesMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := models.Activity{ID: "a1", Title: "Hike", Participants: []string{"u1", "u2"}}
	f.docs.PutActivity(activity)
	_, err := f.router.Dispatch(ctx, event(t, "e0", events.KindCreated, "activities/a1", nil, activity))
	require.NoError(t, err)
	joinedBefore := f.members(t, "a1")

	after := activity
	after.Title = "Night Hike"
	after.TitleLowercase = "hike"
	after.Participants = []string{"u1", "u2", "u3"}
	rep, err := f.router.Dispatch(ctx, event(t, "e1", events.KindUpdated, "activities/a1", nil, after))
	require.NoError(t, err)
	assert.Equal(t, "no_before_snapshot", rep.Reason)
	assert.Equal(t, 1, rep.Applied, "title index only")

	assert.Equal(t, joinedBefore, f.members(t, "a1"))
	assert.Len(t, f.messages(t, "a1"), 1, "only the creation message")

	after.TitleLowercase = "night hike"
	rep, err = f.router.Dispatch(ctx, event(t, "e2", events.KindUpdated, "activities/a1", nil, after))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, rep.Outcome)
	assert.Equal(t, "no_before_snapshot", rep.Reason)
}

func TestActivityDeletedRemovesMembershipOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := models.Activity{ID: "a1", Title: "Hike", Participants: []string{"u1", "u2"}}
	f.docs.PutActivity(activity)
	_, err := f.router.Dispatch(ctx, event(t, "e0", events.KindCreated, "activities/a1", nil, activity))
	require.NoError(t, err)
	f.docs.DeleteActivity("a1")

	rep, err := f.router.Dispatch(ctx, event(t, "e1", events.KindDeleted, "activities/a1", activity, nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, rep.Outcome)
	assert.Empty(t, f.members(t, "a1"))
	assert.Len(t, f.messages(t, "a1"), 1, "no leave messages on deletion")

	chats, err := f.tree.ListUserChats(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestParticipantAddedAndRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added := event(t, "e1", events.KindCreated, "activities/a1/participants/u9", nil,
		models.Participant{UserID: "u9", DisplayName: "Nina"})
	rep, err := f.router.Dispatch(ctx, added)
	require.NoError(t, err)
	assert.Equal(t, "participant_added", rep.Handler)
	assert.Equal(t, strPtr("Nina"), f.members(t, "a1")["u9"].Name)

	msgs := f.messages(t, "a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Nina has joined the chat.", msgs[0].Text)

	removed := event(t, "e2", events.KindDeleted, "activities/a1/participants/u9",
		models.Participant{UserID: "u9"}, nil)
	_, err = f.router.Dispatch(ctx, removed)
	require.NoError(t, err)
	assert.Empty(t, f.members(t, "a1"))

	msgs = f.messages(t, "a1")
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		if m.ID == sysmsg.MessageID("a1", sysmsg.TransitionLeft, "u9") {
			assert.Equal(t, "A participant has left the chat.", m.Text)
		}
	}
}

func TestProfileWritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := models.UserProfile{ID: "u1", DisplayName: "  Ann Lee "}
	f.docs.PutProfile(profile)

	rep, err := f.router.Dispatch(ctx, event(t, "e1", events.KindUpdated, "users/u1", nil, profile))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, rep.Outcome)

	stored, err := f.docs.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ann lee", stored.DisplayNameLowercase)

	rep, err = f.router.Dispatch(ctx, event(t, "e2", events.KindUpdated, "users/u1", nil, stored))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, rep.Outcome)
	assert.Equal(t, "unchanged", rep.Reason)
}

func TestFriendRequestAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.docs.PutProfile(models.UserProfile{ID: "s"})
	f.docs.PutProfile(models.UserProfile{ID: "r"})

	pending := models.FriendRequest{ID: "fr1", SenderID: "s", ReceiverID: "r", Status: models.FriendRequestPending}
	accepted := pending
	accepted.Status = models.FriendRequestAccepted

	rep, err := f.router.Dispatch(ctx, event(t, "e1", events.KindUpdated, "friendRequests/fr1", pending, accepted))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, rep.Outcome)

	rep, err = f.router.Dispatch(ctx, event(t, "e2", events.KindUpdated, "friendRequests/fr1", accepted, accepted))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, rep.Outcome)

	s, err := f.docs.GetProfile(ctx, "s")
	require.NoError(t, err)
	r, err := f.docs.GetProfile(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []string{"r"}, s.Friends)
	assert.Equal(t, []string{"s"}, r.Friends)
}

func TestChatMessageCreatedFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.docs.PutActivity(models.Activity{ID: "A", Participants: []string{"X", "Y", "Z"}})
	f.docs.PutProfile(models.UserProfile{ID: "X", FCMToken: "tok-X"})
	f.docs.PutProfile(models.UserProfile{ID: "Y", FCMToken: "tok-Y"})
	f.docs.PutProfile(models.UserProfile{ID: "Z"})

	msg := models.ChatMessage{SenderID: "X", SenderName: "Xena", Text: "see you there", Timestamp: models.Millis(occurredAt), Type: models.MessageTypeUser}
	want := msg
	want.ID, want.ActivityID = "m1", "A"
	f.sender.On("SendMulticast", mock.Anything, []string{"tok-Y"}, notify.BuildPayload(want)).
		Return(notify.BatchResponse{SuccessCount: 1}, nil).Once()

	rep, err := f.router.Dispatch(ctx, event(t, "e1", events.KindValueCreated, "chat-messages/A/m1", nil, msg))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, rep.Outcome)
	f.sender.AssertExpectations(t)

	stored, err := f.docs.GetActivity(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageTimestamp)
	assert.True(t, occurredAt.Equal(*stored.LastMessageTimestamp))
}

func TestChatMessageSystemIsNotPushed(t *testing.T) {
	f := newFixture(t)
	msg := models.ChatMessage{SenderID: models.SystemSenderID, Text: "x", Type: models.MessageTypeSystem}

	rep, err := f.router.Dispatch(context.Background(), event(t, "e1", events.KindValueCreated, "chat-messages/A/m1", nil, msg))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, rep.Outcome)
	assert.Equal(t, notify.SkipSystemMessage, rep.Reason)
	f.sender.AssertNotCalled(t, "SendMulticast", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnroutedEventIsSkipped(t *testing.T) {
	f := newFixture(t)
	for _, ev := range []events.Event{
		{ID: "e1", Kind: events.KindDeleted, Path: "users/u1"},
		{ID: "e2", Kind: events.KindCreated, Path: "groups/g1"},
		{ID: "e3", Kind: events.KindUpdated, Path: "activities/a1/participants/u1"},
	} {
		rep, err := f.router.Dispatch(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, rep.Outcome, ev.Path)
		assert.Equal(t, "no_handler", rep.Reason)
	}
}

func TestDispatchEmitsInvocation(t *testing.T) {
	f := newFixture(t)
	pub := new(mocks.PublisherMock)
	pub.On("Publish", mock.Anything, "sync.invocation", mock.Anything).Return(nil).Once()

	h := NewHandlers(Deps{Activities: f.docs, Profiles: f.docs, Tree: f.tree, Sender: f.sender, Log: zap.NewNop()})
	emitter := telemetry.NewInvocationEmitter(pub, "sync.invocation", "activity-sync", "test", zap.NewNop())
	router := NewRouter(h, time.Second, emitter, zap.NewNop())

	_, err := router.Dispatch(context.Background(), event(t, "e1", events.KindUpdated, "users/u1", nil, models.UserProfile{ID: "u1", DisplayName: "Ann"}))
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func keys(m map[string]models.ChatMember) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
