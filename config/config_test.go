package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crypto-signal-engine/internal/backtest"
)

func TestToBacktestConfig(t *testing.T) {
	b := BacktestConfig{
		InitialBalance: 5000,
		Sizing:         "FIXED",
		SizingValue:    250,
		SlippagePct:    0.1,
		CommissionPct:  0.05,
		TimeStopHours:  24,
	}

	got := b.ToBacktestConfig("ETHUSDT")

	assert.Equal(t, "ETHUSDT", got.Pair)
	assert.Equal(t, 5000.0, got.InitialBalance)
	assert.Equal(t, backtest.SizingFixed, got.Sizing)
	assert.Equal(t, 250.0, got.SizingValue)
	assert.Equal(t, 0.1, got.SlippagePct)
	assert.Equal(t, 0.05, got.CommissionPct)
	assert.Equal(t, 24.0, got.TimeStopHours)

	// Fields the section does not carry keep their engine defaults.
	def := backtest.DefaultConfig("ETHUSDT")
	assert.Equal(t, def.MinCandles, got.MinCandles)
	assert.Equal(t, def.MaxOpenPositions, got.MaxOpenPositions)
	assert.Equal(t, def.MinConfidence, got.MinConfidence)

	assert.NoError(t, got.Validate())
}

func TestToValidatorConfig(t *testing.T) {
	v := ValidatorConfig{
		MinConfidence:     0.60,
		MinConfidenceSell: 0.65,
		MinRiskReward:     1.5,
		CooldownSec:       180,
		RetentionSec:      600,
	}

	got := v.ToValidatorConfig()

	assert.Equal(t, 0.60, got.MinConfidence)
	assert.Equal(t, 0.65, got.MinConfidenceSell)
	assert.Equal(t, 1.5, got.MinRiskReward)
	assert.Equal(t, 3*time.Minute, got.Cooldown)
	assert.Equal(t, 10*time.Minute, got.Retention)
}
