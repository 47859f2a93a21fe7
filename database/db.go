package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"billpay/web/logger"
	"billpay/web/migrations"
)

// Open connects to the SQLite file at path, tunes it for concurrent access
// and applies pending migrations. Use ":memory:" for a throwaway database.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_journal=WAL&_timeout=10000&_busy_timeout=10000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Minute * 5)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Log.Debug().Str("path", path).Msg("database ready")
	return db, nil
}
