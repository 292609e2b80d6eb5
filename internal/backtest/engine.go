package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"crypto-signal-engine/internal/logging"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/signal"
)

// Engine replays the composer over a candle series bar by bar. Each bar sees
// only the candles up to and including itself, so the simulation never looks
// ahead.
type Engine struct {
	cfg      Config
	composer *signal.Composer
	log      *logging.Logger
	progress ProgressFunc
}

// NewEngine validates the config and builds an engine. A nil logger uses the
// package default.
func NewEngine(cfg Config, composer *signal.Composer, log *logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if composer == nil {
		return nil, fmt.Errorf("%w: composer is required", ErrInvalidConfig)
	}
	if log == nil {
		log = logging.Default()
	}
	return &Engine{
		cfg:      cfg,
		composer: composer,
		log:      log.WithComponent("backtest"),
	}, nil
}

// SetProgressFunc registers a callback fired every ProgressEvery bars and
// once at the end. Must be called before Run.
func (e *Engine) SetProgressFunc(fn ProgressFunc) {
	e.progress = fn
}

// openPosition is a live trade during the simulation.
type openPosition struct {
	trade    Trade
	stopLoss float64
	target   float64
}

// Run simulates the strategy over the candle series. The context is checked
// between bars so a caller can cancel a long run. The candle series must be
// validated, time-ascending OHLCV data of at least cfg.MinCandles entries.
func (e *Engine) Run(ctx context.Context, candles []market.Candle) (*Results, error) {
	if len(candles) < e.cfg.MinCandles {
		return nil, fmt.Errorf("%w: got %d candles, need at least %d", ErrInsufficientData, len(candles), e.cfg.MinCandles)
	}
	if err := market.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}

	e.log.Info("backtest starting",
		"pair", e.cfg.Pair,
		"candles", len(candles),
		"sizing", string(e.cfg.Sizing),
		"initial_balance", e.cfg.InitialBalance,
	)

	state := &runState{
		balance: e.cfg.InitialBalance,
		peak:    e.cfg.InitialBalance,
	}

	warmup := e.cfg.WarmupBars
	if warmup >= len(candles) {
		warmup = len(candles) - 1
	}
	totalBars := len(candles) - warmup

	for i := warmup; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled at bar %d: %w", i, err)
		}

		bar := candles[i]
		sig := e.composer.Compose(e.cfg.Pair, candles[:i+1])

		e.maybeOpen(state, sig, bar)
		e.evaluateExits(state, sig, bar)
		e.recordEquity(state, bar)

		done := i - warmup + 1
		if e.progress != nil && (done%e.cfg.ProgressEvery == 0 || done == totalBars) {
			e.progress(done, totalBars)
		}
	}

	// Whatever is still open is force-closed at the last bar's close, the
	// same way the time stop would settle it.
	final := candles[len(candles)-1]
	for _, pos := range state.open {
		e.closePosition(state, pos, final.Close, final, CloseTimeStop)
	}
	state.open = nil

	results := computeResults(e.cfg, state, candles[warmup].Timestamp, final.Timestamp)

	e.log.Info("backtest finished",
		"pair", e.cfg.Pair,
		"trades", results.TotalTrades,
		"win_rate", results.WinRate,
		"final_balance", results.FinalBalance,
	)
	return results, nil
}

// runState is everything mutable during a simulation.
type runState struct {
	balance float64
	peak    float64
	open    []*openPosition
	closed  []Trade
	equity  []EquityPoint
	fees    float64
}

// maybeOpen enters a position when the signal clears the confidence floor
// and there is capacity.
func (e *Engine) maybeOpen(state *runState, sig signal.TradingSignal, bar market.Candle) {
	if !sig.IsActionable() || sig.Confidence < e.cfg.MinConfidence {
		return
	}
	if len(state.open) >= e.cfg.MaxOpenPositions {
		return
	}
	// One position per direction at a time; a repeat signal in the same
	// direction adds nothing but correlated risk.
	for _, pos := range state.open {
		if pos.trade.Direction == sig.Type {
			return
		}
	}

	margin := e.positionSize(state)
	if margin <= 0 || margin > state.balance {
		return
	}

	fill := applySlippage(sig.Entry, sig.Type, e.cfg.SlippagePct, true)
	leverage := sig.Leverage
	if leverage < 1 {
		leverage = 1
	}
	notional := margin * float64(leverage)
	entryFee := notional * e.cfg.CommissionPct / 100

	state.balance -= entryFee
	state.fees += entryFee

	pos := &openPosition{
		trade: Trade{
			ID:              uuid.New().String(),
			Pair:            e.cfg.Pair,
			Direction:       sig.Type,
			Signal:          sig,
			EntryPrice:      fill,
			EntryTime:       bar.Timestamp,
			Leverage:        leverage,
			PositionSizeUSD: margin,
			Fees:            entryFee,
		},
		stopLoss: sig.StopLoss,
		target:   sig.TakeProfit,
	}
	state.open = append(state.open, pos)

	e.log.Debug("position opened",
		"direction", string(sig.Type),
		"entry", fill,
		"margin", margin,
		"leverage", leverage,
	)
}

// evaluateExits checks every open position against the current bar.
// Priority: stop-loss, take-profit, time stop, opposing signal. A bar that
// spans both levels counts as a stop-out.
func (e *Engine) evaluateExits(state *runState, sig signal.TradingSignal, bar market.Candle) {
	var remaining []*openPosition

	for _, pos := range state.open {
		// The position opened this bar only exits on this bar's extremes.
		long := pos.trade.Direction == signal.TypeBuy

		switch {
		case long && bar.Low <= pos.stopLoss:
			e.closePosition(state, pos, pos.stopLoss, bar, CloseStopLoss)
		case !long && bar.High >= pos.stopLoss:
			e.closePosition(state, pos, pos.stopLoss, bar, CloseStopLoss)
		case long && bar.High >= pos.target:
			e.closePosition(state, pos, pos.target, bar, CloseTakeProfit)
		case !long && bar.Low <= pos.target:
			e.closePosition(state, pos, pos.target, bar, CloseTakeProfit)
		case bar.Timestamp.Sub(pos.trade.EntryTime).Hours() >= e.cfg.TimeStopHours:
			e.closePosition(state, pos, bar.Close, bar, CloseTimeStop)
		case sig.IsActionable() && sig.Type != pos.trade.Direction && sig.Confidence >= e.cfg.MinConfidence:
			e.closePosition(state, pos, bar.Close, bar, CloseReversal)
		default:
			remaining = append(remaining, pos)
		}
	}

	state.open = remaining
}

func (e *Engine) closePosition(state *runState, pos *openPosition, price float64, bar market.Candle, reason CloseReason) {
	t := pos.trade
	long := t.Direction == signal.TypeBuy

	fill := applySlippage(price, t.Direction, e.cfg.SlippagePct, false)
	notional := t.PositionSizeUSD * float64(t.Leverage)
	exitFee := notional * e.cfg.CommissionPct / 100

	move := (fill - t.EntryPrice) / t.EntryPrice
	if !long {
		move = -move
	}
	gross := notional * move

	t.ExitPrice = fill
	t.ExitTime = bar.Timestamp
	t.CloseReason = reason
	t.Fees += exitFee
	t.PnL = gross - t.Fees
	if t.PositionSizeUSD > 0 {
		t.PnLPct = t.PnL / t.PositionSizeUSD * 100
	}

	// Entry fee already left the balance when the position opened.
	state.balance += gross - exitFee
	state.fees += exitFee
	state.closed = append(state.closed, t)
}

// positionSize returns the margin for the next trade under the configured
// sizing mode.
func (e *Engine) positionSize(state *runState) float64 {
	switch e.cfg.Sizing {
	case SizingFixed:
		return e.cfg.SizingValue
	case SizingPercentage:
		return state.balance * e.cfg.SizingValue / 100
	case SizingKelly:
		return state.balance * e.kellyFraction(state.closed) / 100
	}
	return 0
}

// kellyFraction computes a half-Kelly percentage from the closed trade
// record, clamped to [0.5%, 10%]. With fewer than 10 closed trades it falls
// back to the configured sizing value.
func (e *Engine) kellyFraction(closed []Trade) float64 {
	const minTrades = 10

	if len(closed) < minTrades {
		return e.cfg.SizingValue
	}

	wins, losses := 0, 0
	sumWin, sumLoss := 0.0, 0.0
	for _, t := range closed {
		if t.Won() {
			wins++
			sumWin += t.PnL
		} else {
			losses++
			sumLoss += -t.PnL
		}
	}
	if wins == 0 || losses == 0 {
		return e.cfg.SizingValue
	}

	winRate := float64(wins) / float64(len(closed))
	avgWin := sumWin / float64(wins)
	avgLoss := sumLoss / float64(losses)
	if avgLoss <= 0 {
		return e.cfg.SizingValue
	}

	payoff := avgWin / avgLoss
	kelly := winRate - (1-winRate)/payoff
	half := kelly / 2 * 100

	return math.Max(0.5, math.Min(10, half))
}

func (e *Engine) recordEquity(state *runState, bar market.Candle) {
	equity := state.balance
	for _, pos := range state.open {
		t := pos.trade
		move := (bar.Close - t.EntryPrice) / t.EntryPrice
		if t.Direction == signal.TypeSell {
			move = -move
		}
		equity += t.PositionSizeUSD * float64(t.Leverage) * move
	}

	if equity > state.peak {
		state.peak = equity
	}
	drawdown := 0.0
	if state.peak > 0 {
		drawdown = (state.peak - equity) / state.peak * 100
	}

	state.equity = append(state.equity, EquityPoint{
		Timestamp:   bar.Timestamp,
		Equity:      equity,
		DrawdownPct: drawdown,
	})
}

// applySlippage moves the fill against the trader: entries pay up, exits
// give back.
func applySlippage(price float64, direction signal.Type, slippagePct float64, entering bool) float64 {
	if slippagePct <= 0 {
		return price
	}
	adverse := price * slippagePct / 100

	buyingNow := direction == signal.TypeBuy
	if !entering {
		buyingNow = !buyingNow
	}
	if buyingNow {
		return price + adverse
	}
	return price - adverse
}
