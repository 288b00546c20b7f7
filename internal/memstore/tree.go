package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"activity-sync/internal/models"
	"activity-sync/internal/repositories"
)

// ChatTree is an in-memory hierarchical chat store.
type ChatTree struct {
	mu         sync.RWMutex
	members    map[string]map[string]models.ChatMember
	userChats  map[string]map[string]bool
	messages   map[string]map[string]models.ChatMessage
	deleteErrs map[string]error
}

// NewChatTree returns an empty chat tree.
func NewChatTree() *ChatTree {
	return &ChatTree{
		members:    map[string]map[string]models.ChatMember{},
		userChats:  map[string]map[string]bool{},
		messages:   map[string]map[string]models.ChatMessage{},
		deleteErrs: map[string]error{},
	}
}

// FailDelete makes DeleteChat return err for activityID.
func (t *ChatTree) FailDelete(activityID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleteErrs[activityID] = err
}

// HasChat reports whether any messages or members exist for activityID.
func (t *ChatTree) HasChat(activityID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages[activityID]) > 0 || len(t.members[activityID]) > 0
}

func (t *ChatTree) SetMember(_ context.Context, activityID, userID string, member models.ChatMember) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.members[activityID] == nil {
		t.members[activityID] = map[string]models.ChatMember{}
	}
	t.members[activityID][userID] = member
	return nil
}

func (t *ChatTree) RemoveMember(_ context.Context, activityID, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.members[activityID], userID)
	if len(t.members[activityID]) == 0 {
		delete(t.members, activityID)
	}
	return nil
}

func (t *ChatTree) ListMembers(_ context.Context, activityID string) (map[string]models.ChatMember, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.ChatMember, len(t.members[activityID]))
	for id, m := range t.members[activityID] {
		out[id] = m
	}
	return out, nil
}

func (t *ChatTree) SetUserChat(_ context.Context, userID, activityID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.userChats[userID] == nil {
		t.userChats[userID] = map[string]bool{}
	}
	t.userChats[userID][activityID] = true
	return nil
}

func (t *ChatTree) RemoveUserChat(_ context.Context, userID, activityID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.userChats[userID], activityID)
	if len(t.userChats[userID]) == 0 {
		delete(t.userChats, userID)
	}
	return nil
}

func (t *ChatTree) ListUserChats(_ context.Context, userID string) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.userChats[userID]))
	for id := range t.userChats[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *ChatTree) UpsertMessage(_ context.Context, msg models.ChatMessage) error {
	if msg.ID == "" || msg.ActivityID == "" {
		return fmt.Errorf("upsert message: missing id or activity id")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.messages[msg.ActivityID] == nil {
		t.messages[msg.ActivityID] = map[string]models.ChatMessage{}
	}
	t.messages[msg.ActivityID][msg.ID] = msg
	return nil
}

func (t *ChatTree) ListMessages(_ context.Context, activityID string) ([]models.ChatMessage, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	msgs := make([]models.ChatMessage, 0, len(t.messages[activityID]))
	for _, m := range t.messages[activityID] {
		msgs = append(msgs, m)
	}
	repositories.SortMessages(msgs)
	return msgs, nil
}

func (t *ChatTree) ListChatIDs(_ context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := map[string]struct{}{}
	for id := range t.messages {
		seen[id] = struct{}{}
	}
	for id := range t.members {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *ChatTree) DeleteChat(_ context.Context, activityID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.deleteErrs[activityID]; err != nil {
		return err
	}
	delete(t.messages, activityID)
	delete(t.members, activityID)
	return nil
}

var _ repositories.ChatTreeRepository = (*ChatTree)(nil)
