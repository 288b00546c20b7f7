package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the Postgres document store and runs migrations.
func Connect(dsn string, log *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations applied", zap.Int("statements", len(migrations)))
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS activities (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL DEFAULT '',
            title_lowercase TEXT NOT NULL DEFAULT '',
            participants TEXT[] NOT NULL DEFAULT '{}',
            created_by_id TEXT NOT NULL DEFAULT '',
            created_by_name TEXT NOT NULL DEFAULT '',
            date_time TIMESTAMPTZ NOT NULL,
            archived BOOLEAN,
            last_message_at TIMESTAMPTZ
        );`,
	`CREATE INDEX IF NOT EXISTS idx_activities_archived_date_time
            ON activities (archived, date_time);`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
            id TEXT PRIMARY KEY,
            display_name TEXT NOT NULL DEFAULT '',
            display_name_lowercase TEXT NOT NULL DEFAULT '',
            fcm_token TEXT NOT NULL DEFAULT '',
            friends TEXT[] NOT NULL DEFAULT '{}'
        );`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
            id TEXT PRIMARY KEY,
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending'
        );`,
}

func runMigrations(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
