package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crypto-signal-engine/internal/backtest"
	"crypto-signal-engine/internal/signal"
)

// Repository provides data access operations over the store
type Repository struct {
	db *DB
}

// NewRepository creates a repository backed by the given DB
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveSignal persists an accepted signal
func (r *Repository) SaveSignal(ctx context.Context, sig *signal.TradingSignal) error {
	query := `
		INSERT INTO signals (
			id, pair, type, confidence, patterns, entry, stop_loss, take_profit,
			risk_reward, leverage, position_size_pct, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Pool.Exec(ctx, query,
		sig.ID, sig.Pair, string(sig.Type), sig.Confidence, sig.Patterns,
		sig.Entry, sig.StopLoss, sig.TakeProfit,
		sig.RiskReward, sig.Leverage, sig.PositionSizePct, sig.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
	}
	return nil
}

// RecentSignals returns the latest signals for a pair, newest first. An empty
// pair returns signals across all pairs.
func (r *Repository) RecentSignals(ctx context.Context, pair string, limit int) ([]signal.TradingSignal, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, pair, type, confidence, patterns, entry, stop_loss, take_profit,
		       risk_reward, leverage, position_size_pct, generated_at
		FROM signals
		WHERE ($1 = '' OR pair = $1)
		ORDER BY generated_at DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []signal.TradingSignal
	for rows.Next() {
		var s signal.TradingSignal
		var sigType string
		if err := rows.Scan(
			&s.ID, &s.Pair, &sigType, &s.Confidence, &s.Patterns,
			&s.Entry, &s.StopLoss, &s.TakeProfit,
			&s.RiskReward, &s.Leverage, &s.PositionSizePct, &s.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.Type = signal.Type(sigType)
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// SaveBacktest persists a backtest run and its trades in one transaction,
// returning the run's ID.
func (r *Repository) SaveBacktest(ctx context.Context, results *backtest.Results) (string, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New().String()

	resultQuery := `
		INSERT INTO backtest_results (
			id, pair, start_time, end_time, initial_balance, final_balance,
			total_trades, winning_trades, losing_trades, win_rate,
			total_pnl, total_return_pct, total_fees, profit_factor,
			max_drawdown_pct, sharpe_ratio, max_win_streak, max_loss_streak
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = tx.Exec(ctx, resultQuery,
		id, results.Config.Pair, results.StartTime, results.EndTime,
		results.Config.InitialBalance, results.FinalBalance,
		results.TotalTrades, results.WinningTrades, results.LosingTrades, results.WinRate,
		results.TotalPnL, results.TotalReturnPct, results.TotalFees, results.ProfitFactor,
		results.MaxDrawdownPct, results.SharpeRatio, results.MaxWinStreak, results.MaxLossStreak,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save backtest result: %w", err)
	}

	tradeQuery := `
		INSERT INTO backtest_trades (
			id, backtest_result_id, pair, direction, entry_price, exit_price,
			entry_time, exit_time, close_reason, leverage, position_size_usd,
			fees, pnl, pnl_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	for _, t := range results.Trades {
		_, err = tx.Exec(ctx, tradeQuery,
			t.ID, id, t.Pair, string(t.Direction), t.EntryPrice, t.ExitPrice,
			t.EntryTime, t.ExitTime, string(t.CloseReason), t.Leverage, t.PositionSizeUSD,
			t.Fees, t.PnL, t.PnLPct,
		)
		if err != nil {
			return "", fmt.Errorf("failed to save backtest trade %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit backtest: %w", err)
	}
	return id, nil
}

// BacktestSummary is the row shape returned by ListBacktests.
type BacktestSummary struct {
	ID             string    `json:"id"`
	Pair           string    `json:"pair"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	TotalTrades    int       `json:"total_trades"`
	WinRate        float64   `json:"win_rate"`
	TotalReturnPct float64   `json:"total_return_pct"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListBacktests returns recent backtest runs, newest first.
func (r *Repository) ListBacktests(ctx context.Context, limit int) ([]BacktestSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, pair, start_time, end_time, total_trades, win_rate,
		       total_return_pct, sharpe_ratio, created_at
		FROM backtest_results
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtests: %w", err)
	}
	defer rows.Close()

	var out []BacktestSummary
	for rows.Next() {
		var s BacktestSummary
		if err := rows.Scan(
			&s.ID, &s.Pair, &s.StartTime, &s.EndTime, &s.TotalTrades,
			&s.WinRate, &s.TotalReturnPct, &s.SharpeRatio, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backtest summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
