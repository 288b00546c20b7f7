package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"activity-sync/internal/models"
)

const (
	activityChatsPrefix = "activity-chats/"
	membersSuffix       = "/members"
	userChatsPrefix     = "user-chats/"
	chatMessagesPrefix  = "chat-messages/"
	scanBatch           = 200
)

func membersKey(activityID string) string { return activityChatsPrefix + activityID + membersSuffix }
func userChatsKey(userID string) string   { return userChatsPrefix + userID }
func messagesKey(activityID string) string {
	return chatMessagesPrefix + activityID
}

// ChatTreeRepo maps the chat tree onto Redis hashes: one hash per member list,
// per user chat index and per transcript, keyed by the tree path of the parent node.
type ChatTreeRepo struct {
	rdb redis.UniversalClient
}

// NewChatTreeRepo constructs a ChatTreeRepo.
func NewChatTreeRepo(rdb redis.UniversalClient) *ChatTreeRepo {
	return &ChatTreeRepo{rdb: rdb}
}

// SetMember overwrites the member entry for userID.
func (r *ChatTreeRepo) SetMember(ctx context.Context, activityID, userID string, member models.ChatMember) error {
	body, err := json.Marshal(member)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, membersKey(activityID), userID, body).Err()
}

// RemoveMember deletes the member entry. Removing an absent member is not an error.
func (r *ChatTreeRepo) RemoveMember(ctx context.Context, activityID, userID string) error {
	return r.rdb.HDel(ctx, membersKey(activityID), userID).Err()
}

// ListMembers returns the member subtree of an activity.
func (r *ChatTreeRepo) ListMembers(ctx context.Context, activityID string) (map[string]models.ChatMember, error) {
	raw, err := r.rdb.HGetAll(ctx, membersKey(activityID)).Result()
	if err != nil {
		return nil, err
	}
	members := make(map[string]models.ChatMember, len(raw))
	for userID, body := range raw {
		var m models.ChatMember
		if err := json.Unmarshal([]byte(body), &m); err != nil {
			return nil, fmt.Errorf("decode member %s/%s: %w", activityID, userID, err)
		}
		members[userID] = m
	}
	return members, nil
}

// SetUserChat writes the reverse index marker.
func (r *ChatTreeRepo) SetUserChat(ctx context.Context, userID, activityID string) error {
	return r.rdb.HSet(ctx, userChatsKey(userID), activityID, "true").Err()
}

// RemoveUserChat deletes the reverse index marker.
func (r *ChatTreeRepo) RemoveUserChat(ctx context.Context, userID, activityID string) error {
	return r.rdb.HDel(ctx, userChatsKey(userID), activityID).Err()
}

// ListUserChats returns the activity ids a user is indexed under, sorted.
func (r *ChatTreeRepo) ListUserChats(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.rdb.HKeys(ctx, userChatsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// UpsertMessage writes msg under its id.
func (r *ChatTreeRepo) UpsertMessage(ctx context.Context, msg models.ChatMessage) error {
	if msg.ID == "" || msg.ActivityID == "" {
		return fmt.Errorf("upsert message: missing id or activity id")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, messagesKey(msg.ActivityID), msg.ID, body).Err()
}

// ListMessages returns the transcript ordered by timestamp, then id.
func (r *ChatTreeRepo) ListMessages(ctx context.Context, activityID string) ([]models.ChatMessage, error) {
	raw, err := r.rdb.HGetAll(ctx, messagesKey(activityID)).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]models.ChatMessage, 0, len(raw))
	for id, body := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(body), &m); err != nil {
			return nil, fmt.Errorf("decode message %s/%s: %w", activityID, id, err)
		}
		m.ID = id
		m.ActivityID = activityID
		msgs = append(msgs, m)
	}
	SortMessages(msgs)
	return msgs, nil
}

// ListChatIDs scans transcripts and member lists for activity ids.
func (r *ChatTreeRepo) ListChatIDs(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}

	iter := r.rdb.Scan(ctx, 0, chatMessagesPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		if id := strings.TrimPrefix(iter.Val(), chatMessagesPrefix); id != "" {
			seen[id] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	iter = r.rdb.Scan(ctx, 0, activityChatsPrefix+"*"+membersSuffix, scanBatch).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimSuffix(strings.TrimPrefix(iter.Val(), activityChatsPrefix), membersSuffix)
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteChat removes the transcript and member list in one MULTI/EXEC.
func (r *ChatTreeRepo) DeleteChat(ctx context.Context, activityID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, messagesKey(activityID))
		pipe.Del(ctx, membersKey(activityID))
		return nil
	})
	return err
}

// SortMessages orders messages by arrival: timestamp, then id.
func SortMessages(msgs []models.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})
}
