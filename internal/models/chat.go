package models

import "time"

// Message types.
const (
	MessageTypeUser   = "user"
	MessageTypeSystem = "system"
)

// SystemSenderID is the sender id of synthetic chat events.
const SystemSenderID = "system"

// ChatMember is the value at activity-chats/{activityId}/members/{userId}.
type ChatMember struct {
	JoinedAt int64   `json:"joinedAt"`
	Name     *string `json:"name"`
}

// ChatMessage is the value at chat-messages/{activityId}/{messageId}.
type ChatMessage struct {
	ID         string `json:"-"`
	ActivityID string `json:"-"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
	Type       string `json:"type"`
}

// IsSystem reports whether the message was emitted by the sync engine.
func (m ChatMessage) IsSystem() bool {
	return m.Type == MessageTypeSystem
}

// Millis converts t to epoch milliseconds, the timestamp format of the chat tree.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds back to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
