package membership

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"activity-sync/internal/memstore"
	"activity-sync/internal/models"
	"activity-sync/internal/writes"
)

var joinedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestDiff(t *testing.T) {
	ch := Diff([]string{"u1", "u2", "u3"}, []string{"u2", "u4", "u4", "", "u1"})
	assert.Equal(t, []string{"u4"}, ch.Added)
	assert.Equal(t, []string{"u3"}, ch.Removed)
}

func TestDiffCreationAndDeletion(t *testing.T) {
	created := Diff(nil, []string{"u1", "u2"})
	assert.Equal(t, []string{"u1", "u2"}, created.Added)
	assert.Empty(t, created.Removed)

	deleted := Diff([]string{"u1", "u2"}, nil)
	assert.Empty(t, deleted.Added)
	assert.Equal(t, []string{"u1", "u2"}, deleted.Removed)

	assert.True(t, Diff([]string{"u1"}, []string{"u1"}).Empty())
}

func TestPlan(t *testing.T) {
	alice := "Alice"
	ws := Plan("a1", Change{Added: []string{"u1", "u2"}, Removed: []string{"u3"}}, Names{"u1": &alice}, joinedAt)
	require.Len(t, ws, 6)

	assert.Equal(t, writes.OpSetMember, ws[0].Op)
	assert.Equal(t, "Alice", *ws[0].Member.Name)
	assert.Equal(t, joinedAt.UnixMilli(), ws[0].Member.JoinedAt)
	assert.Equal(t, writes.OpSetUserChat, ws[1].Op)
	assert.Nil(t, ws[2].Member.Name, "unknown names stay nil")
	assert.Equal(t, writes.OpRemoveMember, ws[4].Op)
	assert.Equal(t, writes.OpRemoveUserChat, ws[5].Op)
}

func TestResolveNamesIsolatesFailures(t *testing.T) {
	docs := memstore.NewDocs()
	docs.PutProfile(models.UserProfile{ID: "u1", DisplayName: "Alice"})
	docs.FailProfileLookup("u2", assert.AnError)

	s := NewSynchronizer(docs, zap.NewNop())
	res := s.ResolveNames(context.Background(), "a1", []string{"u1", "u2", "u3"})

	require.Equal(t, 1, res.Failed)
	require.NotNil(t, res.Names["u1"])
	assert.Equal(t, "Alice", *res.Names["u1"])
	assert.Nil(t, res.Names["u2"])
	assert.Nil(t, res.Names["u3"], "missing profile resolves to nil without failing")
	assert.Len(t, res.Names, 3)
}

func TestPlanConvergesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tree := memstore.NewChatTree()

	apply := func(before, after []string) {
		res := writes.Apply(ctx, tree, Plan("a1", Diff(before, after), Names{}, joinedAt))
		require.Zero(t, res.Failed)
	}

	apply(nil, []string{"u1", "u2"})
	apply([]string{"u1", "u2"}, []string{"u2", "u3"})
	snapshot, err := tree.ListMembers(ctx, "a1")
	require.NoError(t, err)

	apply([]string{"u1", "u2"}, []string{"u2", "u3"})
	again, err := tree.ListMembers(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, snapshot, again)

	keys := make([]string, 0, len(again))
	for id := range again {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"u2", "u3"}, keys)

	for _, u := range []string{"u2", "u3"} {
		chats, err := tree.ListUserChats(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, chats)
	}
	chats, err := tree.ListUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, chats)
}
