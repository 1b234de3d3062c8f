package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profitloss-backend/internal/config"
	"profitloss-backend/internal/interfaces/router"
	"profitloss-backend/internal/pkg/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	logging.Setup(cfg.LogLevel, !cfg.IsProduction())

	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("App create failed")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Database handle unavailable")
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	log.Info().Msg("Database connected")
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	} else {
		log.Info().Msg("Redis not configured, import sessions are stored in the database")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info().Msg("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msgf("Server running at http://localhost:%s (health: /health/json)", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
	_ = sqlDB.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
}
