package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests drive both the validator and its memory store.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) time() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestValidator(cfg ValidatorConfig) (*Validator, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.clock = clock.time
	v := NewValidator(cfg, store)
	v.clock = clock.time
	return v, clock
}

func buySignal(conf float64) *TradingSignal {
	return &TradingSignal{
		ID:         "test",
		Pair:       "BTCUSDT",
		Type:       TypeBuy,
		Confidence: conf,
		Patterns:   []string{"bullish_engulfing"},
		Entry:      50000,
		StopLoss:   49000,
		TakeProfit: 52000,
		RiskReward: 2.0,
	}
}

func TestValidateAcceptsGoodSignal(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())

	d, err := v.Validate(context.Background(), buySignal(0.70))
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Empty(t, d.Reason)
}

func TestValidateStaticGates(t *testing.T) {
	cfg := DefaultValidatorConfig()
	v, _ := newTestValidator(cfg)
	ctx := context.Background()

	neutral := &TradingSignal{Pair: "BTCUSDT", Type: TypeNeutral}
	d, err := v.Validate(ctx, neutral)
	require.NoError(t, err)
	assert.Equal(t, ReasonNotActionable, d.Reason)

	weak := buySignal(cfg.MinConfidence - 0.01)
	d, err = v.Validate(ctx, weak)
	require.NoError(t, err)
	assert.Equal(t, ReasonLowConfidence, d.Reason)

	badRR := buySignal(0.70)
	badRR.RiskReward = cfg.MinRiskReward - 0.1
	d, err = v.Validate(ctx, badRR)
	require.NoError(t, err)
	assert.Equal(t, ReasonLowRiskReward, d.Reason)

	inverted := buySignal(0.70)
	inverted.StopLoss = 53000
	d, err = v.Validate(ctx, inverted)
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidLevels, d.Reason)

	unbacked := buySignal(0.90)
	unbacked.Patterns = nil
	d, err = v.Validate(ctx, unbacked)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoPattern, d.Reason)

	// Sell signals use the stricter confidence floor.
	sell := buySignal(cfg.MinConfidenceSell - 0.01)
	sell.Type = TypeSell
	sell.StopLoss = 51000
	sell.TakeProfit = 48000
	d, err = v.Validate(ctx, sell)
	require.NoError(t, err)
	assert.Equal(t, ReasonLowConfidence, d.Reason)
}

func TestValidateRejectionLeavesNoHistory(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	ctx := context.Background()

	weak := buySignal(0.10)
	d, err := v.Validate(ctx, weak)
	require.NoError(t, err)
	require.False(t, d.Accepted)

	// A rejected signal must not start a cooldown for the pair.
	d, err = v.Validate(ctx, buySignal(0.70))
	require.NoError(t, err)
	assert.True(t, d.Accepted)
}

func TestValidateCooldown(t *testing.T) {
	v, clock := newTestValidator(DefaultValidatorConfig())
	ctx := context.Background()

	d, err := v.Validate(ctx, buySignal(0.70))
	require.NoError(t, err)
	require.True(t, d.Accepted)

	// Even a clearly different signal is held during the cooldown.
	other := buySignal(0.90)
	other.Entry = 55000
	other.StopLoss = 54000
	other.TakeProfit = 58000
	d, err = v.Validate(ctx, other)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonCooldown, d.Reason)

	clock.advance(2*time.Minute + time.Second)
	d, err = v.Validate(ctx, other)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
}

func TestValidateDuplicateFingerprint(t *testing.T) {
	v, clock := newTestValidator(DefaultValidatorConfig())
	ctx := context.Background()

	d, err := v.Validate(ctx, buySignal(0.70))
	require.NoError(t, err)
	require.True(t, d.Accepted)

	clock.advance(3 * time.Minute) // past cooldown, within retention

	// Nearly identical signal maps to the same fingerprint.
	dup := buySignal(0.71)
	dup.Entry = 50010
	d, err = v.Validate(ctx, dup)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonDuplicate, d.Reason)

	// Once retention lapses the same setup is signal-worthy again.
	clock.advance(15 * time.Minute)
	d, err = v.Validate(ctx, dup)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
}

func TestValidatePriceMoveEscapesDuplicate(t *testing.T) {
	v, clock := newTestValidator(DefaultValidatorConfig())
	ctx := context.Background()

	d, err := v.Validate(ctx, buySignal(0.70))
	require.NoError(t, err)
	require.True(t, d.Accepted)

	clock.advance(3 * time.Minute) // past cooldown, within retention

	// Same pair, direction, and confidence, but the market moved 20%.
	// That is a new setup, not a repeat of the recorded one.
	moved := buySignal(0.70)
	moved.Entry = 60000
	moved.StopLoss = 58800
	moved.TakeProfit = 62400
	d, err = v.Validate(ctx, moved)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Empty(t, d.Reason)
}

func TestValidateDifferentPairsIndependent(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	ctx := context.Background()

	d, err := v.Validate(ctx, buySignal(0.70))
	require.NoError(t, err)
	require.True(t, d.Accepted)

	eth := buySignal(0.70)
	eth.Pair = "ETHUSDT"
	d, err = v.Validate(ctx, eth)
	require.NoError(t, err)
	assert.True(t, d.Accepted, "cooldown is per pair")
}

func TestValidateClearResetsHistory(t *testing.T) {
	v, _ := newTestValidator(DefaultValidatorConfig())
	ctx := context.Background()

	d, err := v.Validate(ctx, buySignal(0.70))
	require.NoError(t, err)
	require.True(t, d.Accepted)

	require.NoError(t, v.Clear(ctx))

	d, err = v.Validate(ctx, buySignal(0.70))
	require.NoError(t, err)
	assert.True(t, d.Accepted)
}

func TestMemoryStorePrunesExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.clock = clock.time
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "a", time.Minute))
	seen, err := store.Seen(ctx, "a")
	require.NoError(t, err)
	assert.True(t, seen)

	clock.advance(2 * time.Minute)
	seen, err = store.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen)

	// A later write sweeps the expired entry out of the map.
	require.NoError(t, store.Record(ctx, "b", time.Minute))
	store.mu.Lock()
	_, stillThere := store.fingerprints["a"]
	store.mu.Unlock()
	assert.False(t, stillThere)
}
