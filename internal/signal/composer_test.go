package signal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-signal-engine/internal/market"
)

func candleAt(i int, open, close, low, high, volume float64) market.Candle {
	return market.Candle{
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

// downtrendWithBullishReversal builds a steady decline capped by a
// high-volume bullish engulfing candle.
func downtrendWithBullishReversal() []market.Candle {
	candles := make([]market.Candle, 0, 60)
	price := 100.0
	for i := 0; i < 59; i++ {
		open := price
		close := price - 1
		candles = append(candles, candleAt(i, open, close, close-0.3, open+0.2, 1000))
		price = close
	}
	// price is now 41; prior candle opened 42 and closed 41.
	candles = append(candles, candleAt(59, 40.8, 43.0, 40.7, 43.1, 12000))
	return candles
}

// uptrendWithBearishReversal mirrors the bullish fixture.
func uptrendWithBearishReversal() []market.Candle {
	candles := make([]market.Candle, 0, 60)
	price := 100.0
	for i := 0; i < 59; i++ {
		open := price
		close := price + 1
		candles = append(candles, candleAt(i, open, close, open-0.2, close+0.3, 1000))
		price = close
	}
	candles = append(candles, candleAt(59, 159.2, 157.0, 156.9, 159.3, 12000))
	return candles
}

func flatCandles(n int) []market.Candle {
	candles := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, candleAt(i, 100, 100, 100, 100, 1000))
	}
	return candles
}

func TestComposeBullishConfluence(t *testing.T) {
	c := NewComposer(DefaultComposerConfig())
	sig := c.Compose("BTCUSDT", downtrendWithBullishReversal())

	require.Equal(t, TypeBuy, sig.Type)
	assert.NotEmpty(t, sig.ID)
	assert.Contains(t, sig.Patterns, "bullish_engulfing")

	assert.Greater(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 0.95)

	require.NoError(t, sig.Validate())
	assert.Less(t, sig.StopLoss, sig.Entry)
	assert.Greater(t, sig.TakeProfit, sig.Entry)
	assert.Greater(t, sig.RiskReward, 0.0)

	cfg := DefaultComposerConfig()
	assert.GreaterOrEqual(t, sig.Leverage, cfg.MinLeverage)
	assert.LessOrEqual(t, sig.Leverage, cfg.MaxLeverage)
	assert.GreaterOrEqual(t, sig.PositionSizePct, cfg.MinPositionPct)
	assert.LessOrEqual(t, sig.PositionSizePct, cfg.MaxPositionPct)
	assert.Greater(t, sig.Fees, 0.0)
}

func TestComposeBearishConfluence(t *testing.T) {
	c := NewComposer(DefaultComposerConfig())
	sig := c.Compose("ETHUSDT", uptrendWithBearishReversal())

	require.Equal(t, TypeSell, sig.Type)
	assert.Contains(t, sig.Patterns, "bearish_engulfing")

	require.NoError(t, sig.Validate())
	assert.Greater(t, sig.StopLoss, sig.Entry)
	assert.Less(t, sig.TakeProfit, sig.Entry)
}

func TestComposeFlatSeriesIsNeutral(t *testing.T) {
	c := NewComposer(DefaultComposerConfig())
	sig := c.Compose("BTCUSDT", flatCandles(60))

	assert.Equal(t, TypeNeutral, sig.Type)
	assert.False(t, sig.IsActionable())
	assert.Zero(t, sig.Entry)
	assert.Zero(t, sig.StopLoss)
	assert.Zero(t, sig.TakeProfit)
}

func TestComposeEmptySeriesIsNeutral(t *testing.T) {
	c := NewComposer(DefaultComposerConfig())
	sig := c.Compose("BTCUSDT", nil)
	assert.Equal(t, TypeNeutral, sig.Type)
}

func TestComposeNaNCloseIsNeutral(t *testing.T) {
	candles := downtrendWithBullishReversal()
	candles[len(candles)-1].Close = math.NaN()

	c := NewComposer(DefaultComposerConfig())
	sig := c.Compose("BTCUSDT", candles)
	assert.Equal(t, TypeNeutral, sig.Type)
}

func TestComposeDeterministicLevels(t *testing.T) {
	candles := downtrendWithBullishReversal()
	c := NewComposer(DefaultComposerConfig())

	first := c.Compose("BTCUSDT", candles)
	second := c.Compose("BTCUSDT", candles)

	// IDs and timestamps differ, everything derived from the data must not.
	assert.Equal(t, first.Type, second.Type)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Entry, second.Entry)
	assert.Equal(t, first.StopLoss, second.StopLoss)
	assert.Equal(t, first.TakeProfit, second.TakeProfit)
	assert.Equal(t, first.Leverage, second.Leverage)
	assert.Equal(t, first.PositionSizePct, second.PositionSizePct)
}

func TestComposeThinVolumeDerates(t *testing.T) {
	candles := downtrendWithBullishReversal()

	base := NewComposer(DefaultComposerConfig()).Compose("BTCUSDT", candles)
	require.Equal(t, TypeBuy, base.Type)

	cfg := DefaultComposerConfig()
	cfg.ExpectedVolume = map[string]float64{"BTCUSDT": 1e9}
	derated := NewComposer(cfg).Compose("BTCUSDT", candles)

	require.Equal(t, TypeBuy, derated.Type, "thin volume derates, it must not flip the direction")
	assert.Less(t, derated.Confidence, base.Confidence)
	assert.Greater(t, derated.Confidence, 0.0)
}

func TestSignalValidateOrdering(t *testing.T) {
	buy := TradingSignal{Type: TypeBuy, Entry: 100, StopLoss: 95, TakeProfit: 110}
	assert.NoError(t, buy.Validate())

	buy.StopLoss = 105
	assert.Error(t, buy.Validate())

	sell := TradingSignal{Type: TypeSell, Entry: 100, StopLoss: 105, TakeProfit: 90}
	assert.NoError(t, sell.Validate())

	sell.TakeProfit = 120
	assert.Error(t, sell.Validate())
}

func TestFingerprintBuckets(t *testing.T) {
	a := TradingSignal{Pair: "BTCUSDT", Type: TypeBuy, Confidence: 0.70, Entry: 50000}
	b := TradingSignal{Pair: "BTCUSDT", Type: TypeBuy, Confidence: 0.71, Entry: 50020}
	c := TradingSignal{Pair: "BTCUSDT", Type: TypeBuy, Confidence: 0.85, Entry: 50000}

	fpA := NewFingerprint(&a, 0.05, 0.001)
	fpB := NewFingerprint(&b, 0.05, 0.001)
	fpC := NewFingerprint(&c, 0.05, 0.001)

	assert.Equal(t, fpA.Key(), fpB.Key(), "near-identical signals share a fingerprint")
	assert.NotEqual(t, fpA.Key(), fpC.Key(), "materially different confidence separates fingerprints")

	sell := TradingSignal{Pair: "BTCUSDT", Type: TypeSell, Confidence: 0.70, Entry: 50000}
	assert.NotEqual(t, fpA.Key(), NewFingerprint(&sell, 0.05, 0.001).Key())

	// Entry participates: a large price move lands in a different bucket
	// even when confidence is unchanged.
	moved := TradingSignal{Pair: "BTCUSDT", Type: TypeBuy, Confidence: 0.70, Entry: 60000}
	assert.NotEqual(t, fpA.Key(), NewFingerprint(&moved, 0.05, 0.001).Key(),
		"materially different entry separates fingerprints")

	// A 0.5% move crosses the 0.1% grid as well.
	nudged := TradingSignal{Pair: "BTCUSDT", Type: TypeBuy, Confidence: 0.70, Entry: 50250}
	assert.NotEqual(t, fpA.Key(), NewFingerprint(&nudged, 0.05, 0.001).Key())
}
