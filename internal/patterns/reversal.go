package patterns

import (
	"crypto-signal-engine/internal/market"
)

// ============================================================================
// SINGLE CANDLE PATTERNS
// ============================================================================

// isHammer checks for a small body at the upper end with a long lower shadow.
// Bullish when it appears after a down move.
func isHammer(c market.Candle) bool {
	body := c.Body()
	if body == 0 {
		return false
	}
	return c.LowerShadow() >= body*2 && c.UpperShadow() <= body*0.5
}

// isInvertedHammer checks for a small body at the lower end with a long upper
// shadow.
func isInvertedHammer(c market.Candle) bool {
	body := c.Body()
	if body == 0 {
		return false
	}
	return c.UpperShadow() >= body*2 && c.LowerShadow() <= body*0.5
}

// isDoji checks for a body under 5% of the total range
func isDoji(c market.Candle) bool {
	r := c.Range()
	if r == 0 {
		return false
	}
	return c.Body() <= r*0.05
}

// isDragonflyDoji checks for a doji with the body at the top of the range
func isDragonflyDoji(c market.Candle) bool {
	if !isDoji(c) {
		return false
	}
	r := c.Range()
	return c.LowerShadow() >= r*0.6 && c.UpperShadow() <= r*0.1
}

// isGravestoneDoji checks for a doji with the body at the bottom of the range
func isGravestoneDoji(c market.Candle) bool {
	if !isDoji(c) {
		return false
	}
	r := c.Range()
	return c.UpperShadow() >= r*0.6 && c.LowerShadow() <= r*0.1
}

// isMarubozu checks for a full-body candle with shadows under 5% of the body
func (d *Detector) isMarubozu(c market.Candle) bool {
	body := c.Body()
	if body == 0 {
		return false
	}
	// Momentum patterns need a meaningful body relative to price.
	if c.Close > 0 && body/c.Close*100 < d.minBodyPct {
		return false
	}
	return c.UpperShadow() <= body*0.05 && c.LowerShadow() <= body*0.05
}

func (d *Detector) detectSingleCandle(c market.Candle, prev *market.Candle, ctx windowContext) []Pattern {
	var found []Pattern
	afterDown := prev != nil && prev.IsBearish()
	afterUp := prev != nil && prev.IsBullish()

	if isHammer(c) {
		if afterUp {
			// Same shape in an uptrend reads as a hanging man.
			found = append(found, d.score(levels(Pattern{
				Name:        HangingMan,
				Direction:   DirectionSell,
				Confidence:  0.55,
				Strength:    strength(c.Body(), ctx),
				Reliability: "LOW",
			}, c.Close, c.Low, c.High), ctx))
		} else {
			found = append(found, d.score(levels(Pattern{
				Name:        Hammer,
				Direction:   DirectionBuy,
				Confidence:  0.60,
				Strength:    strength(c.Body(), ctx),
				Reliability: "MEDIUM",
			}, c.Close, c.Low, c.High), ctx))
		}
	}

	if isInvertedHammer(c) {
		if afterUp {
			found = append(found, d.score(levels(Pattern{
				Name:        ShootingStar,
				Direction:   DirectionSell,
				Confidence:  0.60,
				Strength:    strength(c.Body(), ctx),
				Reliability: "MEDIUM",
			}, c.Close, c.Low, c.High), ctx))
		} else if afterDown {
			found = append(found, d.score(levels(Pattern{
				Name:        InvertedHammer,
				Direction:   DirectionBuy,
				Confidence:  0.55,
				Strength:    strength(c.Body(), ctx),
				Reliability: "LOW",
			}, c.Close, c.Low, c.High), ctx))
		}
	}

	if isDragonflyDoji(c) {
		found = append(found, d.score(levels(Pattern{
			Name:        DragonflyDoji,
			Direction:   DirectionBuy,
			Confidence:  0.55,
			Strength:    strength(c.Range(), ctx),
			Reliability: "MEDIUM",
		}, c.Close, c.Low, c.High), ctx))
	}

	if isGravestoneDoji(c) {
		found = append(found, d.score(levels(Pattern{
			Name:        GravestoneDoji,
			Direction:   DirectionSell,
			Confidence:  0.55,
			Strength:    strength(c.Range(), ctx),
			Reliability: "MEDIUM",
		}, c.Close, c.Low, c.High), ctx))
	}

	if d.isMarubozu(c) {
		if c.IsBullish() {
			found = append(found, d.score(levels(Pattern{
				Name:        BullishMarubozu,
				Direction:   DirectionBuy,
				Confidence:  0.70,
				Strength:    strength(c.Body(), ctx),
				Reliability: "HIGH",
			}, c.Close, c.Low, c.High), ctx))
		} else if c.IsBearish() {
			found = append(found, d.score(levels(Pattern{
				Name:        BearishMarubozu,
				Direction:   DirectionSell,
				Confidence:  0.70,
				Strength:    strength(c.Body(), ctx),
				Reliability: "HIGH",
			}, c.Close, c.Low, c.High), ctx))
		}
	}

	return found
}

// ============================================================================
// TWO CANDLE PATTERNS
// ============================================================================

// isBullishEngulfing requires a bearish prior candle, a bullish current
// candle whose body engulfs the prior body by at least 1.1x, and a current
// open at or below the prior close.
func isBullishEngulfing(prev, current market.Candle) bool {
	if !prev.IsBearish() || !current.IsBullish() {
		return false
	}
	if current.Open > prev.Close {
		return false
	}
	return current.Close >= prev.Open && current.Body() >= prev.Body()*1.1
}

// isBearishEngulfing mirrors the bullish case
func isBearishEngulfing(prev, current market.Candle) bool {
	if !prev.IsBullish() || !current.IsBearish() {
		return false
	}
	if current.Open < prev.Close {
		return false
	}
	return current.Close <= prev.Open && current.Body() >= prev.Body()*1.1
}

// isBullishHarami checks for a small bullish candle inside a large bearish one
func isBullishHarami(prev, current market.Candle) bool {
	if !prev.IsBearish() || !current.IsBullish() {
		return false
	}
	return current.Open > prev.Close && current.Close < prev.Open &&
		current.Body() <= prev.Body()*0.6
}

// isBearishHarami checks for a small bearish candle inside a large bullish one
func isBearishHarami(prev, current market.Candle) bool {
	if !prev.IsBullish() || !current.IsBearish() {
		return false
	}
	return current.Open < prev.Close && current.Close > prev.Open &&
		current.Body() <= prev.Body()*0.6
}

func (d *Detector) detectTwoCandle(prev, current market.Candle, ctx windowContext) []Pattern {
	var found []Pattern

	patternLow := minFloat(prev.Low, current.Low)
	patternHigh := maxFloat(prev.High, current.High)

	if isBullishEngulfing(prev, current) {
		found = append(found, d.score(levels(Pattern{
			Name:        BullishEngulfing,
			Direction:   DirectionBuy,
			Confidence:  0.72,
			Strength:    strength(current.Body(), ctx),
			Reliability: "HIGH",
		}, current.Close, patternLow, patternHigh), ctx))
	}

	if isBearishEngulfing(prev, current) {
		found = append(found, d.score(levels(Pattern{
			Name:        BearishEngulfing,
			Direction:   DirectionSell,
			Confidence:  0.72,
			Strength:    strength(current.Body(), ctx),
			Reliability: "HIGH",
		}, current.Close, patternLow, patternHigh), ctx))
	}

	if isBullishHarami(prev, current) {
		found = append(found, d.score(levels(Pattern{
			Name:        BullishHarami,
			Direction:   DirectionBuy,
			Confidence:  0.58,
			Strength:    strength(current.Body(), ctx),
			Reliability: "MEDIUM",
		}, current.Close, patternLow, patternHigh), ctx))
	}

	if isBearishHarami(prev, current) {
		found = append(found, d.score(levels(Pattern{
			Name:        BearishHarami,
			Direction:   DirectionSell,
			Confidence:  0.58,
			Strength:    strength(current.Body(), ctx),
			Reliability: "MEDIUM",
		}, current.Close, patternLow, patternHigh), ctx))
	}

	return found
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
