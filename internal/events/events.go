// Package events decodes change notifications from the document and chat
// stores and classifies them by the path that changed.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindCreated      Kind = "created"
	KindUpdated      Kind = "updated"
	KindDeleted      Kind = "deleted"
	KindValueCreated Kind = "value_created"
)

// Target identifies which collection a path points at.
type Target string

const (
	TargetUnknown       Target = ""
	TargetActivity      Target = "activity"
	TargetParticipant   Target = "participant"
	TargetProfile       Target = "profile"
	TargetFriendRequest Target = "friend_request"
	TargetChatMessage   Target = "chat_message"
)

var (
	ErrMissingID   = errors.New("event id is required")
	ErrMissingPath = errors.New("event path is required")
	ErrUnknownKind = errors.New("unknown event kind")
)

// Event is one change notification. Before and After hold the raw document
// snapshots; either may be empty depending on Kind.
type Event struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Path       string          `json:"path"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Ref is a parsed path.
type Ref struct {
	Target     Target
	ActivityID string
	UserID     string
	RequestID  string
	MessageID  string
}

// Decode parses and validates an envelope.
func Decode(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (e Event) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.Path == "" {
		return ErrMissingPath
	}
	switch e.Kind {
	case KindCreated, KindUpdated, KindDeleted, KindValueCreated:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

// Ref parses e.Path.
func (e Event) Ref() Ref {
	return ParsePath(e.Path)
}

// DecodeBefore unmarshals the before snapshot into v. It reports false when
// there is no snapshot.
func (e Event) DecodeBefore(v any) (bool, error) {
	return decodeSnapshot(e.Before, v)
}

func (e Event) DecodeAfter(v any) (bool, error) {
	return decodeSnapshot(e.After, v)
}

func decodeSnapshot(raw json.RawMessage, v any) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	return true, nil
}

// ParsePath classifies a store path. Unrecognised paths yield TargetUnknown.
func ParsePath(path string) Ref {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return Ref{}
		}
	}

	switch {
	case len(parts) == 2 && parts[0] == "activities":
		return Ref{Target: TargetActivity, ActivityID: parts[1]}
	case len(parts) == 4 && parts[0] == "activities" && parts[2] == "participants":
		return Ref{Target: TargetParticipant, ActivityID: parts[1], UserID: parts[3]}
	case len(parts) == 2 && parts[0] == "users":
		return Ref{Target: TargetProfile, UserID: parts[1]}
	case len(parts) == 2 && parts[0] == "friendRequests":
		return Ref{Target: TargetFriendRequest, RequestID: parts[1]}
	case len(parts) == 3 && parts[0] == "chat-messages":
		return Ref{Target: TargetChatMessage, ActivityID: parts[1], MessageID: parts[2]}
	default:
		return Ref{}
	}
}
