package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"activity-sync/internal/models"
)

// FriendRequestRepo is a sqlx implementation of FriendRequestRepository.
type FriendRequestRepo struct {
	db *sqlx.DB
}

// NewFriendRequestRepo constructs a FriendRequestRepo.
func NewFriendRequestRepo(db *sqlx.DB) *FriendRequestRepo {
	return &FriendRequestRepo{db: db}
}

// GetFriendRequest fetches a single request.
func (r *FriendRequestRepo) GetFriendRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	var req struct {
		ID         string `db:"id"`
		SenderID   string `db:"sender_id"`
		ReceiverID string `db:"receiver_id"`
		Status     string `db:"status"`
	}
	err := r.db.GetContext(ctx, &req, `SELECT id, sender_id, receiver_id, status FROM friend_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestNotFound
	}
	if err != nil {
		return models.FriendRequest{}, err
	}
	return models.FriendRequest{ID: req.ID, SenderID: req.SenderID, ReceiverID: req.ReceiverID, Status: req.Status}, nil
}
