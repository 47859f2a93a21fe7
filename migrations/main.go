package migrations

import (
	"database/sql"
	"fmt"

	"billpay/web/logger"
)

type migration struct {
	name string
	fn   func(*sql.DB) error
}

// all lists every migration in the order it must be applied.
var all = []migration{
	{"create_browser_sessions", CreateBrowserSessions},
	{"add_browser_sessions_expiry_index", AddBrowserSessionsExpiryIndex},
}

// Run executes all pending migrations in order. Applied migrations are
// recorded by name and skipped on later runs.
func Run(db *sql.DB) error {
	logger.Log.Debug().Msg("running migrations")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range all {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE name = ?", m.name).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		if count > 0 {
			logger.Log.Debug().Str("migration", m.name).Msg("skipping already applied migration")
			continue
		}

		logger.Log.Info().Str("migration", m.name).Msg("applying migration")
		if err := m.fn(db); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}

		if _, err := db.Exec("INSERT INTO migrations (name) VALUES (?)", m.name); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
	}

	return nil
}

// Names returns the registered migration names in order.
func Names() []string {
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.name
	}
	return names
}
