package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"activity-sync/internal/models"
)

type profileRow struct {
	ID                   string         `db:"id"`
	DisplayName          string         `db:"display_name"`
	DisplayNameLowercase sql.NullString `db:"display_name_lowercase"`
	FCMToken             sql.NullString `db:"fcm_token"`
	Friends              pq.StringArray `db:"friends"`
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetProfile fetches a single profile.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var row profileRow
	err := r.db.GetContext(ctx, &row, `SELECT id, display_name, display_name_lowercase, fcm_token, friends FROM user_profiles WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return models.UserProfile{}, err
	}
	return models.UserProfile{
		ID:                   row.ID,
		DisplayName:          row.DisplayName,
		DisplayNameLowercase: row.DisplayNameLowercase.String,
		FCMToken:             row.FCMToken.String,
		Friends:              []string(row.Friends),
	}, nil
}

// SetDisplayNameLowercase stores the search projection of the display name.
func (r *ProfileRepo) SetDisplayNameLowercase(ctx context.Context, userID, displayNameLowercase string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE user_profiles SET display_name_lowercase=$2 WHERE id=$1`, userID, displayNameLowercase)
	if err != nil {
		return err
	}
	return requireRow(res, ErrProfileNotFound)
}

// AddFriendPair links both users atomically. Existing entries are left alone.
func (r *ProfileRepo) AddFriendPair(ctx context.Context, a, b string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	const addFriend = `UPDATE user_profiles SET friends = array_append(friends, $2) WHERE id=$1 AND NOT ($2 = ANY(friends))`
	if _, err = tx.ExecContext(ctx, addFriend, a, b); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, addFriend, b, a); err != nil {
		return err
	}
	return tx.Commit()
}
