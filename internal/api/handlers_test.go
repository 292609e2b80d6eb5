package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"crypto-signal-engine/internal/backtest"
)

func TestBacktestConfigMergesDefaultsAndOverrides(t *testing.T) {
	defaults := backtest.DefaultConfig("")
	defaults.InitialBalance = 5000
	defaults.Sizing = backtest.SizingFixed
	defaults.SizingValue = 250
	defaults.TimeStopHours = 24

	s := &Server{config: Config{BacktestDefaults: defaults}}

	cfg := s.backtestConfig(backtestRequest{
		Pair:        "ETHUSDT",
		SizingValue: 400,
	})

	assert.Equal(t, "ETHUSDT", cfg.Pair)
	assert.Equal(t, 5000.0, cfg.InitialBalance, "server defaults fill omitted fields")
	assert.Equal(t, backtest.SizingFixed, cfg.Sizing)
	assert.Equal(t, 400.0, cfg.SizingValue, "request values override server defaults")
	assert.Equal(t, 24.0, cfg.TimeStopHours)
	assert.NoError(t, cfg.Validate())
}

func TestBacktestConfigFallsBackWithoutDefaults(t *testing.T) {
	s := &Server{}

	cfg := s.backtestConfig(backtestRequest{Pair: "BTCUSDT"})

	want := backtest.DefaultConfig("BTCUSDT")
	assert.Equal(t, want.InitialBalance, cfg.InitialBalance)
	assert.Equal(t, want.Sizing, cfg.Sizing)
	assert.Equal(t, want.MinCandles, cfg.MinCandles)
	assert.NoError(t, cfg.Validate())
}
