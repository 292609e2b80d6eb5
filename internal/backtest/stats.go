package backtest

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

// profitFactorCap stands in for infinity when a run has profits and no
// losses, keeping the field JSON-safe.
const profitFactorCap = 999.0

func computeResults(cfg Config, state *runState, start, end time.Time) *Results {
	r := &Results{
		Config:         cfg,
		Trades:         state.closed,
		EquityCurve:    state.equity,
		StartTime:      start,
		EndTime:        end,
		FinalBalance:   state.balance,
		TotalTrades:    len(state.closed),
		TotalFees:      state.fees,
		MonthlyReturns: make(map[string]float64),
	}

	winStreak, lossStreak := 0, 0
	for _, t := range state.closed {
		r.TotalPnL += t.PnL

		if t.Won() {
			r.WinningTrades++
			r.GrossProfit += t.PnL
			if t.PnL > r.LargestWin {
				r.LargestWin = t.PnL
			}
			winStreak++
			lossStreak = 0
			if winStreak > r.MaxWinStreak {
				r.MaxWinStreak = winStreak
			}
		} else {
			r.LosingTrades++
			r.GrossLoss += -t.PnL
			if t.PnL < r.LargestLoss {
				r.LargestLoss = t.PnL
			}
			lossStreak++
			winStreak = 0
			if lossStreak > r.MaxLossStreak {
				r.MaxLossStreak = lossStreak
			}
		}

		if !t.ExitTime.IsZero() {
			r.MonthlyReturns[t.ExitTime.UTC().Format("2006-01")] += t.PnL
		}
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}
	if r.WinningTrades > 0 {
		r.AvgWin = r.GrossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = r.GrossLoss / float64(r.LosingTrades)
	}
	r.ProfitFactor = profitFactor(r.GrossProfit, r.GrossLoss)

	if cfg.InitialBalance > 0 {
		r.TotalReturnPct = (r.FinalBalance - cfg.InitialBalance) / cfg.InitialBalance * 100
	}

	for _, p := range state.equity {
		if p.DrawdownPct > r.MaxDrawdownPct {
			r.MaxDrawdownPct = p.DrawdownPct
		}
	}

	r.SharpeRatio = sharpeRatio(state.equity, cfg.PeriodsPerYear)

	return r
}

// profitFactor is gross profit over gross loss, capped when there are no
// losing trades and zero when there are no winners either.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss <= 0 {
		if grossProfit > 0 {
			return profitFactorCap
		}
		return 0
	}
	return grossProfit / grossLoss
}

// sharpeRatio annualizes the mean per-bar equity return over its standard
// deviation. A flat curve or one too short to measure yields zero.
func sharpeRatio(curve []EquityPoint, periodsPerYear float64) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			return 0
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	stdDev, err := stats.StandardDeviation(returns)
	if err != nil || stdDev == 0 {
		return 0
	}

	sharpe := mean / stdDev * math.Sqrt(periodsPerYear)
	if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) {
		return 0
	}
	return sharpe
}
