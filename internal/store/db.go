// Package store persists accepted signals and backtest runs in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// NewDB creates a new database connection pool and verifies it with a ping.
func NewDB(cfg Config, log zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	dbLog := log.With().Str("component", "store").Logger()
	dbLog.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, log: dbLog}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.log.Info().Msg("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			pair VARCHAR(20) NOT NULL,
			type VARCHAR(8) NOT NULL,
			confidence DECIMAL(6, 4) NOT NULL,
			patterns TEXT[],
			entry DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8) NOT NULL,
			risk_reward DECIMAL(10, 4),
			leverage INT,
			position_size_pct DECIMAL(8, 4),
			generated_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_signals_pair ON signals(pair)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_generated_at ON signals(generated_at DESC)`,

		`CREATE TABLE IF NOT EXISTS backtest_results (
			id UUID PRIMARY KEY,
			pair VARCHAR(20) NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			initial_balance DECIMAL(20, 8) NOT NULL,
			final_balance DECIMAL(20, 8) NOT NULL,
			total_trades INT NOT NULL,
			winning_trades INT NOT NULL,
			losing_trades INT NOT NULL,
			win_rate DECIMAL(8, 4),
			total_pnl DECIMAL(20, 8),
			total_return_pct DECIMAL(10, 4),
			total_fees DECIMAL(20, 8),
			profit_factor DECIMAL(10, 4),
			max_drawdown_pct DECIMAL(8, 4),
			sharpe_ratio DECIMAL(10, 4),
			max_win_streak INT,
			max_loss_streak INT,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_backtest_results_pair ON backtest_results(pair)`,

		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id UUID PRIMARY KEY,
			backtest_result_id UUID NOT NULL REFERENCES backtest_results(id) ON DELETE CASCADE,
			pair VARCHAR(20) NOT NULL,
			direction VARCHAR(4) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			entry_time TIMESTAMP NOT NULL,
			exit_time TIMESTAMP NOT NULL,
			close_reason VARCHAR(16) NOT NULL,
			leverage INT,
			position_size_usd DECIMAL(20, 8),
			fees DECIMAL(20, 8),
			pnl DECIMAL(20, 8),
			pnl_pct DECIMAL(10, 4),
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_backtest_trades_result ON backtest_trades(backtest_result_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info().Int("count", len(migrations)).Msg("migrations complete")
	return nil
}
