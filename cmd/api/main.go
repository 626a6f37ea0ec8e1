package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"examportal/internal/app"
	"examportal/internal/db"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}

	dbConn, err := db.OpenPostgres(context.Background(), cfg.DBDSN, db.PostgresConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		logger.Error().Err(err).Msg("database error")
		os.Exit(1)
	}
	defer dbConn.Close()

	r := app.NewRouter(cfg, dbConn, logger)

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("examportal api listening")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
