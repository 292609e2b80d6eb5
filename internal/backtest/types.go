// Package backtest replays a signal strategy over historical candles and
// produces trade-level results plus aggregate performance statistics.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"crypto-signal-engine/internal/signal"
)

// Sentinel errors. Callers branch on these with errors.Is.
var (
	// ErrInsufficientData means the candle series is too short to simulate.
	ErrInsufficientData = errors.New("insufficient candle data")
	// ErrInvalidConfig means the backtest configuration fails validation.
	ErrInvalidConfig = errors.New("invalid backtest config")
)

// DefaultMinCandles is the fallback minimum series length when the config
// does not set one.
const DefaultMinCandles = 50

// PositionSizing selects how each trade's capital is determined.
type PositionSizing string

const (
	// SizingFixed risks a fixed dollar amount per trade.
	SizingFixed PositionSizing = "FIXED"
	// SizingPercentage risks a percentage of the current balance.
	SizingPercentage PositionSizing = "PERCENTAGE"
	// SizingKelly sizes by the Kelly criterion from the trailing trade record,
	// halved, falling back to a conservative default until enough trades close.
	SizingKelly PositionSizing = "KELLY"
)

// CloseReason records why a simulated trade exited.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "TP_HIT"
	CloseStopLoss   CloseReason = "SL_HIT"
	CloseTimeStop   CloseReason = "TIME_STOP"
	CloseReversal   CloseReason = "SIGNAL_REVERSE"
)

// Config holds the simulation parameters.
type Config struct {
	Pair           string         `json:"pair"`
	InitialBalance float64        `json:"initial_balance"`
	Sizing         PositionSizing `json:"sizing"`
	// SizingValue is dollars for FIXED, percent of balance for PERCENTAGE,
	// and the fallback percent for KELLY before it has a trade record.
	SizingValue      float64 `json:"sizing_value"`
	MaxOpenPositions int     `json:"max_open_positions"`
	SlippagePct      float64 `json:"slippage_pct"`   // adverse fill movement per side, percent
	CommissionPct    float64 `json:"commission_pct"` // fee per side, percent of notional
	TimeStopHours    float64 `json:"time_stop_hours"`
	// MinCandles is the minimum series length Run accepts.
	MinCandles    int     `json:"min_candles"`
	WarmupBars    int     `json:"warmup_bars"`
	MinConfidence float64 `json:"min_confidence"`
	// PeriodsPerYear annualizes the Sharpe ratio; defaults to hourly candles.
	PeriodsPerYear float64 `json:"periods_per_year"`
	// ProgressEvery fires the progress callback every N bars.
	ProgressEvery int `json:"progress_every"`
}

// DefaultConfig returns a 10k account trading 2% per signal on hourly data.
func DefaultConfig(pair string) Config {
	return Config{
		Pair:             pair,
		InitialBalance:   10000,
		Sizing:           SizingPercentage,
		SizingValue:      2.0,
		MaxOpenPositions: 3,
		SlippagePct:      0.05,
		CommissionPct:    0.04,
		TimeStopHours:    48,
		MinCandles:       DefaultMinCandles,
		WarmupBars:       DefaultMinCandles,
		MinConfidence:    0.55,
		PeriodsPerYear:   24 * 365,
		ProgressEvery:    100,
	}
}

// Validate checks the configuration, wrapping ErrInvalidConfig with the
// failing field.
func (c *Config) Validate() error {
	if c.Pair == "" {
		return fmt.Errorf("%w: pair is required", ErrInvalidConfig)
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("%w: initial balance must be positive, got %.2f", ErrInvalidConfig, c.InitialBalance)
	}
	switch c.Sizing {
	case SizingFixed, SizingPercentage, SizingKelly:
	default:
		return fmt.Errorf("%w: unknown sizing mode %q", ErrInvalidConfig, c.Sizing)
	}
	if c.SizingValue <= 0 {
		return fmt.Errorf("%w: sizing value must be positive, got %.2f", ErrInvalidConfig, c.SizingValue)
	}
	if c.Sizing == SizingPercentage && c.SizingValue > 100 {
		return fmt.Errorf("%w: percentage sizing cannot exceed 100, got %.2f", ErrInvalidConfig, c.SizingValue)
	}
	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("%w: max open positions must be positive, got %d", ErrInvalidConfig, c.MaxOpenPositions)
	}
	if c.SlippagePct < 0 || c.CommissionPct < 0 {
		return fmt.Errorf("%w: slippage and commission cannot be negative", ErrInvalidConfig)
	}
	if c.TimeStopHours <= 0 {
		return fmt.Errorf("%w: time stop must be positive, got %.2f", ErrInvalidConfig, c.TimeStopHours)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.MinCandles <= 0 {
		c.MinCandles = DefaultMinCandles
	}
	if c.WarmupBars <= 0 {
		c.WarmupBars = c.MinCandles
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = 24 * 365
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 100
	}
}

// Trade is one simulated position from entry to exit. Results only carry
// settled trades: ExitTime and CloseReason are always populated.
type Trade struct {
	ID              string               `json:"id"`
	Pair            string               `json:"pair"`
	Direction       signal.Type          `json:"direction"`
	Signal          signal.TradingSignal `json:"signal"`
	EntryPrice      float64              `json:"entry_price"` // fill price after slippage
	ExitPrice       float64              `json:"exit_price"`
	EntryTime       time.Time            `json:"entry_time"`
	ExitTime        time.Time            `json:"exit_time"`
	CloseReason     CloseReason          `json:"close_reason"`
	Leverage        int                  `json:"leverage"`
	PositionSizeUSD float64              `json:"position_size_usd"` // margin committed
	Fees            float64              `json:"fees"`              // entry + exit commission
	PnL             float64              `json:"pnl"`               // net of fees
	PnLPct          float64              `json:"pnl_pct"`           // PnL over margin
}

// Won reports whether the trade closed profitably net of fees.
func (t *Trade) Won() bool { return t.PnL > 0 }

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Equity      float64   `json:"equity"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

// Results is the full output of one backtest run.
type Results struct {
	Config       Config        `json:"config"`
	Trades       []Trade       `json:"trades"`
	EquityCurve  []EquityPoint `json:"equity_curve"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	FinalBalance float64       `json:"final_balance"`

	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"` // percent
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalFees      float64 `json:"total_fees"`

	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"` // positive magnitude
	ProfitFactor float64 `json:"profit_factor"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"` // positive magnitude
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"` // negative

	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`

	MaxWinStreak  int `json:"max_win_streak"`
	MaxLossStreak int `json:"max_loss_streak"`

	// MonthlyReturns maps "2006-01" to that month's realized PnL.
	MonthlyReturns map[string]float64 `json:"monthly_returns"`
}

// ProgressFunc receives (bars processed, total bars) during a run.
type ProgressFunc func(done, total int)
