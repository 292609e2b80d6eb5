// Package patterns detects candlestick reversal and continuation shapes in
// the most recent 1-3 candles of a series, using a trailing lookback window
// for volume and support/resistance context.
package patterns

import (
	"math"

	"crypto-signal-engine/internal/market"
)

// Direction classifies a pattern as a buy or sell setup
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Pattern names
const (
	BullishEngulfing   = "bullish_engulfing"
	BearishEngulfing   = "bearish_engulfing"
	Hammer             = "hammer"
	InvertedHammer     = "inverted_hammer"
	HangingMan         = "hanging_man"
	ShootingStar       = "shooting_star"
	DragonflyDoji      = "dragonfly_doji"
	GravestoneDoji     = "gravestone_doji"
	BullishMarubozu    = "bullish_marubozu"
	BearishMarubozu    = "bearish_marubozu"
	MorningStar        = "morning_star"
	EveningStar        = "evening_star"
	ThreeWhiteSoldiers = "three_white_soldiers"
	ThreeBlackCrows    = "three_black_crows"
	BullishHarami      = "bullish_harami"
	BearishHarami      = "bearish_harami"
)

// Pattern represents a detected candlestick pattern with suggested trade
// levels. Reliability is descriptive metadata only and carries no behavior.
type Pattern struct {
	Name                string    `json:"name"`
	Direction           Direction `json:"direction"`
	Confidence          float64   `json:"confidence"` // 0.0 to 1.0
	Strength            float64   `json:"strength"`   // body size relative to recent range
	Reliability         string    `json:"reliability"`
	SuggestedEntry      float64   `json:"suggested_entry"`
	SuggestedStopLoss   float64   `json:"suggested_stop_loss"`
	SuggestedTakeProfit float64   `json:"suggested_take_profit"`
	RiskReward          float64   `json:"risk_reward"`
	VolumeConfirmed     bool      `json:"volume_confirmed"`
}

// Detector scans candle windows for candlestick patterns
type Detector struct {
	minBodyPct       float64 // minimum candle body as % of price for momentum patterns
	lookback         int     // context window for volume and support/resistance
	volumeMultiplier float64 // volume spike threshold over trailing average
}

// NewDetector creates a pattern detector. Zero or negative arguments fall
// back to defaults (0.5% min body, 10-candle lookback, 1.5x volume spike).
func NewDetector(minBodyPct float64) *Detector {
	if minBodyPct <= 0 {
		minBodyPct = 0.5
	}
	return &Detector{
		minBodyPct:       minBodyPct,
		lookback:         10,
		volumeMultiplier: 1.5,
	}
}

// Detect scans the tail of the candle series for patterns. Series shorter
// than 3 candles skip multi-candle patterns; an empty series returns no
// patterns. The result order is deterministic for identical input.
func (d *Detector) Detect(candles []market.Candle) []Pattern {
	var found []Pattern

	if len(candles) == 0 {
		return found
	}

	current := candles[len(candles)-1]
	var prev *market.Candle
	if len(candles) >= 2 {
		prev = &candles[len(candles)-2]
	}

	ctx := d.buildContext(candles)

	// Single-candle patterns on the latest candle.
	found = append(found, d.detectSingleCandle(current, prev, ctx)...)

	// Two-candle patterns.
	if prev != nil {
		found = append(found, d.detectTwoCandle(*prev, current, ctx)...)
	}

	// Three-candle patterns.
	if len(candles) >= 3 {
		first := candles[len(candles)-3]
		found = append(found, d.detectThreeCandle(first, *prev, current, ctx)...)
	}

	return found
}

// windowContext carries the trailing statistics shared by all pattern checks.
type windowContext struct {
	avgVolume     float64
	avgRange      float64
	support       float64
	resistance    float64
	currentVolume float64
}

func (d *Detector) buildContext(candles []market.Candle) windowContext {
	ctx := windowContext{currentVolume: candles[len(candles)-1].Volume}

	// Trailing window excludes the current candle so a spike on the signal
	// candle is measured against what came before it.
	window := candles
	if len(candles) > 1 {
		window = candles[:len(candles)-1]
	}
	start := 0
	if len(window) > d.lookback {
		start = len(window) - d.lookback
	}
	window = window[start:]

	sumVol := 0.0
	sumRange := 0.0
	ctx.support = window[0].Low
	ctx.resistance = window[0].High
	for _, c := range window {
		sumVol += c.Volume
		sumRange += c.Range()
		if c.Low < ctx.support {
			ctx.support = c.Low
		}
		if c.High > ctx.resistance {
			ctx.resistance = c.High
		}
	}
	ctx.avgVolume = sumVol / float64(len(window))
	ctx.avgRange = sumRange / float64(len(window))

	return ctx
}

// volumeConfirmed reports whether the signal candle's volume exceeds the
// trailing average by the spike multiplier.
func (d *Detector) volumeConfirmed(ctx windowContext) bool {
	return ctx.avgVolume > 0 && ctx.currentVolume >= ctx.avgVolume*d.volumeMultiplier
}

// score finishes a pattern: volume confirmation raises confidence, its
// absence derates it (never to zero), and the result is clamped to [0, 1].
func (d *Detector) score(p Pattern, ctx windowContext) Pattern {
	if d.volumeConfirmed(ctx) {
		p.Confidence += 0.10
		p.VolumeConfirmed = true
	} else {
		p.Confidence -= 0.05
	}

	p.Confidence = math.Max(0.05, math.Min(1.0, p.Confidence))
	return p
}

// levels fills the suggested entry/stop/target using the extreme of the
// pattern candles plus a small buffer, targeting twice the risk distance.
func levels(p Pattern, entry float64, patternLow, patternHigh float64) Pattern {
	p.SuggestedEntry = entry

	if p.Direction == DirectionBuy {
		p.SuggestedStopLoss = patternLow * 0.998
		risk := entry - p.SuggestedStopLoss
		if risk <= 0 {
			risk = entry * 0.005
			p.SuggestedStopLoss = entry - risk
		}
		p.SuggestedTakeProfit = entry + risk*2
		p.RiskReward = (p.SuggestedTakeProfit - entry) / risk
	} else {
		p.SuggestedStopLoss = patternHigh * 1.002
		risk := p.SuggestedStopLoss - entry
		if risk <= 0 {
			risk = entry * 0.005
			p.SuggestedStopLoss = entry + risk
		}
		p.SuggestedTakeProfit = entry - risk*2
		p.RiskReward = (entry - p.SuggestedTakeProfit) / risk
	}
	return p
}

// strength measures the signal candle body against the trailing average range
func strength(body float64, ctx windowContext) float64 {
	if ctx.avgRange == 0 {
		return 0
	}
	return math.Min(2.0, body/ctx.avgRange)
}
