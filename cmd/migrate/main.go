package main

import (
	"fmt"
	"os"

	"billpay/web/config"
	"billpay/web/database"
	"billpay/web/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	// Open applies pending migrations before returning.
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to run migrations")
	}
	_ = db.Close()

	fmt.Println("Migrations completed successfully!")
	os.Exit(0)
}
