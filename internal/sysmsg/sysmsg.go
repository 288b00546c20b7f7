// Package sysmsg builds the synthetic chat events recorded on membership
// transitions.
//
// Each message gets a deterministic id derived from the activity, the
// transition and the participant, and is written with an upsert. Redelivery
// of the same event therefore rewrites the same slot instead of appending a
// duplicate.
package sysmsg

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"activity-sync/internal/models"
	"activity-sync/internal/writes"
)

// Transition identifies the kind of membership event a message records.
type Transition string

const (
	TransitionCreated Transition = "created"
	TransitionJoined  Transition = "joined"
	TransitionLeft    Transition = "left"
)

// SenderName is shown as the author of system messages.
const SenderName = "System"

const unknownName = "A participant"

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("activity-sync/system-messages"))

// MessageID returns the stable id for a transition. userID is empty for TransitionCreated.
func MessageID(activityID string, transition Transition, userID string) string {
	return uuid.NewSHA1(namespace, []byte(activityID+"|"+string(transition)+"|"+userID)).String()
}

// Text renders the message body for a transition.
func Text(transition Transition, name *string, title string) string {
	switch transition {
	case TransitionCreated:
		if title == "" {
			return "Chat created."
		}
		return fmt.Sprintf("Chat created for %s.", title)
	case TransitionJoined:
		return displayName(name) + " has joined the chat."
	case TransitionLeft:
		return displayName(name) + " has left the chat."
	default:
		return ""
	}
}

// Created returns the write announcing a new chat.
func Created(activityID, title string, at time.Time) writes.Write {
	return upsert(activityID, TransitionCreated, "", Text(TransitionCreated, nil, title), at)
}

// Joined returns the write announcing userID joined.
func Joined(activityID, userID string, name *string, at time.Time) writes.Write {
	return upsert(activityID, TransitionJoined, userID, Text(TransitionJoined, name, ""), at)
}

// Left returns the write announcing userID left.
func Left(activityID, userID string, name *string, at time.Time) writes.Write {
	return upsert(activityID, TransitionLeft, userID, Text(TransitionLeft, name, ""), at)
}

// ForChange returns one join message per added user followed by one leave
// message per removed user.
func ForChange(activityID string, added, removed []string, names map[string]*string, at time.Time) []writes.Write {
	ws := make([]writes.Write, 0, len(added)+len(removed))
	for _, userID := range added {
		ws = append(ws, Joined(activityID, userID, names[userID], at))
	}
	for _, userID := range removed {
		ws = append(ws, Left(activityID, userID, names[userID], at))
	}
	return ws
}

func upsert(activityID string, transition Transition, userID, text string, at time.Time) writes.Write {
	return writes.Write{
		Op:         writes.OpUpsertMessage,
		ActivityID: activityID,
		UserID:     userID,
		Message: models.ChatMessage{
			ID:         MessageID(activityID, transition, userID),
			ActivityID: activityID,
			SenderID:   models.SystemSenderID,
			SenderName: SenderName,
			Text:       text,
			Timestamp:  models.Millis(at),
			Type:       models.MessageTypeSystem,
		},
	}
}

func displayName(name *string) string {
	if name == nil || *name == "" {
		return unknownName
	}
	return *name
}
