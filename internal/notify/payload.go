package notify

import "activity-sync/internal/models"

const (
	maxBodyRunes  = 80
	keptBodyRunes = 77

	// Ellipsis marks a truncated body.
	Ellipsis = "…"

	defaultSound = "default"
)

// Notification is the user-visible part of a push.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
}

// Payload is delivered to every recipient token.
type Payload struct {
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data"`
}

// Truncate returns text unchanged when it fits in 80 runes, otherwise its
// first 77 runes followed by an ellipsis.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBodyRunes {
		return text
	}
	return string(runes[:keptBodyRunes]) + Ellipsis
}

// BuildPayload builds the push for a chat message. The activity id travels in
// data so clients can route to the chat.
func BuildPayload(msg models.ChatMessage) Payload {
	return Payload{
		Notification: Notification{
			Title: msg.SenderName,
			Body:  Truncate(msg.Text),
			Sound: defaultSound,
		},
		Data: map[string]string{"activityId": msg.ActivityID},
	}
}
