// Command crypto-signal-engine serves the signal analysis and backtest API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/api"
	"crypto-signal-engine/internal/events"
	"crypto-signal-engine/internal/logging"
	sig "crypto-signal-engine/internal/signal"
	"crypto-signal-engine/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(&logging.Config{
		Level:       cfg.Logging.Level,
		Output:      cfg.Logging.Output,
		Component:   "engine",
		JSONFormat:  cfg.Logging.JSONFormat,
		IncludeFile: cfg.Logging.IncludeFile,
	})
	logging.SetDefault(log)

	zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	bus := events.NewEventBus()
	composer := sig.NewComposer(cfg.Composer)

	// Validator history: Redis when configured, otherwise in-memory.
	var history sig.HistoryStore
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatal("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
		history = sig.NewRedisStore(client, zlog)
		log.Info("validator history backed by redis", "addr", cfg.Redis.Addr)
	}
	validator := sig.NewValidator(cfg.Validator.ToValidatorConfig(), history)

	// Persistence is optional; without it the API serves analysis only.
	var repo *store.Repository
	if cfg.Database.Enabled {
		db, err := store.NewDB(store.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		}, zlog)
		if err != nil {
			log.Fatal("failed to connect to database", "error", err)
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(migrateCtx); err != nil {
			cancel()
			log.Fatal("failed to run migrations", "error", err)
		}
		cancel()
		repo = store.NewRepository(db)
	}

	server := api.NewServer(api.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		AllowOrigins:     cfg.Server.AllowOrigins,
		BacktestDefaults: cfg.Backtest.ToBacktestConfig(""),
	}, composer, validator, bus, repo, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("server failed", "error", err)
		}
	case s := <-quit:
		log.Info("shutting down", "signal", s.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}

	log.Info("engine stopped")
}
