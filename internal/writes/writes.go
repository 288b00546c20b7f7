// Package writes describes intended mutations of the chat tree as plain
// values, so planners stay free of I/O, and applies them against a
// ChatTreeRepository.
package writes

import (
	"context"
	"errors"
	"fmt"

	"activity-sync/internal/models"
	"activity-sync/internal/repositories"
)

// Op names a chat tree mutation.
type Op string

const (
	OpSetMember      Op = "set_member"
	OpRemoveMember   Op = "remove_member"
	OpSetUserChat    Op = "set_user_chat"
	OpRemoveUserChat Op = "remove_user_chat"
	OpUpsertMessage  Op = "upsert_message"
)

// Write is a single intended mutation.
type Write struct {
	Op         Op
	ActivityID string
	UserID     string
	Member     models.ChatMember
	Message    models.ChatMessage
}

// Path returns the tree path touched by w.
func (w Write) Path() string {
	switch w.Op {
	case OpSetMember, OpRemoveMember:
		return "activity-chats/" + w.ActivityID + "/members/" + w.UserID
	case OpSetUserChat, OpRemoveUserChat:
		return "user-chats/" + w.UserID + "/" + w.ActivityID
	case OpUpsertMessage:
		return "chat-messages/" + w.Message.ActivityID + "/" + w.Message.ID
	default:
		return ""
	}
}

// Result summarizes an Apply call.
type Result struct {
	Applied int
	Failed  int
	Errors  []error
}

// Err joins all per-write errors, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Merge adds other's counts and errors to r.
func (r *Result) Merge(other Result) {
	r.Applied += other.Applied
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

// Apply executes ws in order. A failing write does not stop the remaining ones.
func Apply(ctx context.Context, tree repositories.ChatTreeRepository, ws []Write) Result {
	var res Result
	for _, w := range ws {
		if err := apply(ctx, tree, w); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Errorf("%s %s: %w", w.Op, w.Path(), err))
			continue
		}
		res.Applied++
	}
	return res
}

func apply(ctx context.Context, tree repositories.ChatTreeRepository, w Write) error {
	switch w.Op {
	case OpSetMember:
		return tree.SetMember(ctx, w.ActivityID, w.UserID, w.Member)
	case OpRemoveMember:
		return tree.RemoveMember(ctx, w.ActivityID, w.UserID)
	case OpSetUserChat:
		return tree.SetUserChat(ctx, w.UserID, w.ActivityID)
	case OpRemoveUserChat:
		return tree.RemoveUserChat(ctx, w.UserID, w.ActivityID)
	case OpUpsertMessage:
		return tree.UpsertMessage(ctx, w.Message)
	default:
		return fmt.Errorf("unknown op %q", w.Op)
	}
}
