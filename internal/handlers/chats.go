package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"activity-sync/internal/models"
	"activity-sync/internal/repositories"
)

// ChatHandler exposes read-only views of the chat tree for operators.
type ChatHandler struct {
	tree repositories.ChatTreeRepository
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(tree repositories.ChatTreeRepository) *ChatHandler {
	return &ChatHandler{tree: tree}
}

// GetChat returns the members and messages of one activity chat.
func (h *ChatHandler) GetChat(c *gin.Context) {
	activityID := c.Param("activity_id")

	members, err := h.tree.ListMembers(c.Request.Context(), activityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}
	msgs, err := h.tree.ListMessages(c.Request.Context(), activityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if len(members) == 0 && len(msgs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}

	type messageResponse struct {
		ID string `json:"id"`
		models.ChatMessage
	}

	responses := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		responses = append(responses, messageResponse{ID: m.ID, ChatMessage: m})
	}

	c.JSON(http.StatusOK, gin.H{
		"activity_id": activityID,
		"members":     members,
		"messages":    responses,
	})
}

// ListUserChats returns the activity ids in a user's chat index.
func (h *ChatHandler) ListUserChats(c *gin.Context) {
	ids, err := h.tree.ListUserChats(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": ids})
}
