package migrations

import (
	"database/sql"
	"fmt"
)

// CreateBrowserSessions adds the table that keeps each browser's sealed
// identity-provider session token across restarts. Times are Unix seconds.
func CreateBrowserSessions(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS browser_sessions (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			uid TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create browser_sessions table: %w", err)
	}
	return nil
}

// AddBrowserSessionsExpiryIndex speeds up the periodic purge.
func AddBrowserSessionsExpiryIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_browser_sessions_expires_at ON browser_sessions (expires_at);`)
	if err != nil {
		return fmt.Errorf("failed to create browser_sessions index: %w", err)
	}
	return nil
}
