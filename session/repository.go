package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoSession is returned by Load when no live row exists for the id.
var ErrNoSession = errors.New("no persisted session")

// Repository persists sealed provider tokens per browser-session id.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save inserts or replaces the row for id.
func (r *Repository) Save(ctx context.Context, id, uid, sealedToken string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO browser_sessions (id, token, uid, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			uid = excluded.uid,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`, id, sealedToken, uid, time.Now().Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("save browser session: %w", err)
	}
	return nil
}

// Load returns the sealed token for id if it has not expired at now.
func (r *Repository) Load(ctx context.Context, id string, now time.Time) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		"SELECT token FROM browser_sessions WHERE id = ? AND expires_at > ?",
		id, now.Unix(),
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("load browser session: %w", err)
	}
	return token, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM browser_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete browser session: %w", err)
	}
	return nil
}

// PurgeExpired removes rows that expired before now.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM browser_sessions WHERE expires_at <= ?", now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge browser sessions: %w", err)
	}
	return res.RowsAffected()
}
