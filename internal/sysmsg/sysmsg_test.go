package sysmsg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-sync/internal/memstore"
	"activity-sync/internal/models"
	"activity-sync/internal/writes"
)

func TestText(t *testing.T) {
	bob := "Bob"
	assert.Equal(t, "Bob has joined the chat.", Text(TransitionJoined, &bob, ""))
	assert.Equal(t, "Bob has left the chat.", Text(TransitionLeft, &bob, ""))
	assert.Equal(t, "A participant has joined the chat.", Text(TransitionJoined, nil, ""))
	assert.Equal(t, "Chat created for Hike.", Text(TransitionCreated, nil, "Hike"))
	assert.Equal(t, "Chat created.", Text(TransitionCreated, nil, ""))
}

func TestMessageIDIsDeterministic(t *testing.T) {
	assert.Equal(t, MessageID("a1", TransitionJoined, "u1"), MessageID("a1", TransitionJoined, "u1"))
	assert.NotEqual(t, MessageID("a1", TransitionJoined, "u1"), MessageID("a1", TransitionLeft, "u1"))
	assert.NotEqual(t, MessageID("a1", TransitionJoined, "u1"), MessageID("a2", TransitionJoined, "u1"))
}

func TestJoinedMessageShape(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := Joined("a1", "u1", nil, at)

	require.Equal(t, writes.OpUpsertMessage, w.Op)
	assert.Equal(t, models.SystemSenderID, w.Message.SenderID)
	assert.Equal(t, models.MessageTypeSystem, w.Message.Type)
	assert.Equal(t, at.UnixMilli(), w.Message.Timestamp)
	assert.Equal(t, "a1", w.Message.ActivityID)
}

func TestRedeliveryDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	tree := memstore.NewChatTree()
	at := time.Now()
	alice := "Alice"

	ws := ForChange("a1", []string{"u1"}, []string{"u2"}, map[string]*string{"u1": &alice}, at)
	require.Len(t, ws, 2)

	writes.Apply(ctx, tree, ws)
	writes.Apply(ctx, tree, ws)

	msgs, err := tree.ListMessages(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
