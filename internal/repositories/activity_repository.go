package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"activity-sync/internal/models"
)

type activityRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	TitleLowercase sql.NullString `db:"title_lowercase"`
	Participants   pq.StringArray `db:"participants"`
	CreatedByID    string         `db:"created_by_id"`
	CreatedByName  string         `db:"created_by_name"`
	DateTime       time.Time      `db:"date_time"`
	Archived       sql.NullBool   `db:"archived"`
	LastMessageAt  sql.NullTime   `db:"last_message_at"`
}

func (r activityRow) toModel() models.Activity {
	a := models.Activity{
		ID:             r.ID,
		Title:          r.Title,
		TitleLowercase: r.TitleLowercase.String,
		Participants:   []string(r.Participants),
		CreatedBy:      models.Creator{UserID: r.CreatedByID, DisplayName: r.CreatedByName},
		DateTime:       r.DateTime.UTC(),
	}
	if r.Archived.Valid {
		archived := r.Archived.Bool
		a.Archived = &archived
	}
	if r.LastMessageAt.Valid {
		ts := r.LastMessageAt.Time.UTC()
		a.LastMessageTimestamp = &ts
	}
	return a
}

// ActivityRepo is a sqlx implementation of ActivityRepository.
type ActivityRepo struct {
	db *sqlx.DB
}

// NewActivityRepo constructs an ActivityRepo.
func NewActivityRepo(db *sqlx.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// GetActivity fetches a single activity.
func (r *ActivityRepo) GetActivity(ctx context.Context, activityID string) (models.Activity, error) {
	var row activityRow
	err := r.db.GetContext(ctx, &row, `SELECT id, title, title_lowercase, participants, created_by_id, created_by_name, date_time, archived, last_message_at FROM activities WHERE id=$1`, activityID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Activity{}, ErrActivityNotFound
	}
	if err != nil {
		return models.Activity{}, err
	}
	return row.toModel(), nil
}

// SetTitleLowercase stores the search projection of the title.
func (r *ActivityRepo) SetTitleLowercase(ctx context.Context, activityID, titleLowercase string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE activities SET title_lowercase=$2 WHERE id=$1`, activityID, titleLowercase)
	if err != nil {
		return err
	}
	return requireRow(res, ErrActivityNotFound)
}

// InitArchived sets archived=false when it has never been set.
func (r *ActivityRepo) InitArchived(ctx context.Context, activityID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE activities SET archived=FALSE WHERE id=$1 AND archived IS NULL`, activityID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetLastMessageTimestamp advances last_message_at, never moving it backwards.
func (r *ActivityRepo) SetLastMessageTimestamp(ctx context.Context, activityID string, ts time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE activities SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2) WHERE id=$1`, activityID, ts.UTC())
	if err != nil {
		return err
	}
	return requireRow(res, ErrActivityNotFound)
}

// ListArchivable returns ids of unarchived activities scheduled before now.
func (r *ActivityRepo) ListArchivable(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM activities WHERE archived = FALSE AND date_time < $1 ORDER BY date_time ASC`, now.UTC())
	return ids, err
}

// MarkArchived flags all given activities archived in a single statement.
func (r *ActivityRepo) MarkArchived(ctx context.Context, activityIDs []string) (int64, error) {
	if len(activityIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE activities SET archived = TRUE WHERE id = ANY($1) AND archived IS DISTINCT FROM TRUE`, pq.Array(activityIDs))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
