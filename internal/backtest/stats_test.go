package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfitFactor(t *testing.T) {
	assert.Equal(t, 2.0, profitFactor(100, 50))
	assert.Equal(t, profitFactorCap, profitFactor(100, 0), "no losses caps at the sentinel")
	assert.Equal(t, 0.0, profitFactor(0, 0))
	assert.Equal(t, 0.0, profitFactor(0, 50))
}

func TestSharpeRatioFlatCurveIsZero(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var curve []EquityPoint
	for i := 0; i < 20; i++ {
		curve = append(curve, EquityPoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Equity: 10000})
	}
	assert.Equal(t, 0.0, sharpeRatio(curve, 8760))
}

func TestSharpeRatioSignFollowsDrift(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	up := []EquityPoint{}
	equity := 10000.0
	for i := 0; i < 30; i++ {
		up = append(up, EquityPoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Equity: equity})
		// Rising drift with alternating noise so stddev is nonzero.
		if i%2 == 0 {
			equity *= 1.02
		} else {
			equity *= 0.995
		}
	}
	assert.Greater(t, sharpeRatio(up, 8760), 0.0)

	down := []EquityPoint{}
	equity = 10000.0
	for i := 0; i < 30; i++ {
		down = append(down, EquityPoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Equity: equity})
		if i%2 == 0 {
			equity *= 0.98
		} else {
			equity *= 1.005
		}
	}
	assert.Less(t, sharpeRatio(down, 8760), 0.0)
}

func TestSharpeRatioShortCurveIsZero(t *testing.T) {
	assert.Equal(t, 0.0, sharpeRatio(nil, 8760))
	assert.Equal(t, 0.0, sharpeRatio([]EquityPoint{{Equity: 1}, {Equity: 2}}, 8760))
}

func TestComputeResultsAggregates(t *testing.T) {
	cfg := DefaultConfig("BTCUSDT")
	exit := func(day int) time.Time {
		return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
	}

	state := &runState{
		balance: 10150,
		fees:    12,
		closed: []Trade{
			{PnL: 100, ExitTime: exit(1)},
			{PnL: 50, ExitTime: exit(2)},
			{PnL: -30, ExitTime: exit(3)},
			{PnL: -40, ExitTime: exit(4)},
			{PnL: -10, ExitTime: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)},
			{PnL: 80, ExitTime: time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)},
		},
		equity: []EquityPoint{
			{Equity: 10000, DrawdownPct: 0},
			{Equity: 10100, DrawdownPct: 0},
			{Equity: 10050, DrawdownPct: 0.495},
			{Equity: 10150, DrawdownPct: 0},
		},
	}

	r := computeResults(cfg, state, exit(1), exit(4))

	assert.Equal(t, 6, r.TotalTrades)
	assert.Equal(t, 3, r.WinningTrades)
	assert.Equal(t, 3, r.LosingTrades)
	assert.InDelta(t, 50.0, r.WinRate, 1e-9)
	assert.InDelta(t, 150.0, r.TotalPnL, 1e-9)

	assert.InDelta(t, 230.0, r.GrossProfit, 1e-9)
	assert.InDelta(t, 80.0, r.GrossLoss, 1e-9)
	assert.InDelta(t, 230.0/80.0, r.ProfitFactor, 1e-9)
	assert.InDelta(t, 230.0/3, r.AvgWin, 1e-9)
	assert.InDelta(t, 80.0/3, r.AvgLoss, 1e-9)
	assert.Equal(t, 100.0, r.LargestWin)
	assert.Equal(t, -40.0, r.LargestLoss)

	// W W L L L W
	assert.Equal(t, 2, r.MaxWinStreak)
	assert.Equal(t, 3, r.MaxLossStreak)

	assert.InDelta(t, 0.495, r.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 1.5, r.TotalReturnPct, 1e-9)
	assert.Equal(t, 12.0, r.TotalFees)

	assert.InDelta(t, 80.0, r.MonthlyReturns["2024-03"], 1e-9)
	assert.InDelta(t, 70.0, r.MonthlyReturns["2024-04"], 1e-9)
}
