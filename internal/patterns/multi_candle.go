package patterns

import (
	"crypto-signal-engine/internal/market"
)

// ============================================================================
// THREE CANDLE PATTERNS
// ============================================================================

// isMorningStar checks for a long bearish candle, a small-bodied star, and a
// long bullish candle closing above the midpoint of the first.
func isMorningStar(first, second, third market.Candle) bool {
	if !first.IsBearish() || !third.IsBullish() {
		return false
	}

	firstBody := first.Body()
	secondBody := second.Body()
	thirdBody := third.Body()

	firstMidpoint := (first.Open + first.Close) / 2

	return secondBody < firstBody*0.3 &&
		secondBody < thirdBody*0.3 &&
		third.Close > firstMidpoint
}

// isEveningStar mirrors the morning star
func isEveningStar(first, second, third market.Candle) bool {
	if !first.IsBullish() || !third.IsBearish() {
		return false
	}

	firstBody := first.Body()
	secondBody := second.Body()
	thirdBody := third.Body()

	firstMidpoint := (first.Open + first.Close) / 2

	return secondBody < firstBody*0.3 &&
		secondBody < thirdBody*0.3 &&
		third.Close < firstMidpoint
}

// isThreeWhiteSoldiers checks for three consecutive bullish candles, each
// opening within the prior body and closing progressively higher.
func isThreeWhiteSoldiers(first, second, third market.Candle) bool {
	if !first.IsBullish() || !second.IsBullish() || !third.IsBullish() {
		return false
	}

	return second.Open > first.Open && second.Open < first.Close &&
		third.Open > second.Open && third.Open < second.Close &&
		second.Close > first.Close &&
		third.Close > second.Close
}

// isThreeBlackCrows mirrors the three white soldiers
func isThreeBlackCrows(first, second, third market.Candle) bool {
	if !first.IsBearish() || !second.IsBearish() || !third.IsBearish() {
		return false
	}

	return second.Open < first.Open && second.Open > first.Close &&
		third.Open < second.Open && third.Open > second.Close &&
		second.Close < first.Close &&
		third.Close < second.Close
}

func (d *Detector) detectThreeCandle(first, second, third market.Candle, ctx windowContext) []Pattern {
	var found []Pattern

	patternLow := minFloat(first.Low, minFloat(second.Low, third.Low))
	patternHigh := maxFloat(first.High, maxFloat(second.High, third.High))

	if isMorningStar(first, second, third) {
		found = append(found, d.score(levels(Pattern{
			Name:        MorningStar,
			Direction:   DirectionBuy,
			Confidence:  0.75,
			Strength:    strength(third.Body(), ctx),
			Reliability: "HIGH",
		}, third.Close, patternLow, patternHigh), ctx))
	}

	if isEveningStar(first, second, third) {
		found = append(found, d.score(levels(Pattern{
			Name:        EveningStar,
			Direction:   DirectionSell,
			Confidence:  0.75,
			Strength:    strength(third.Body(), ctx),
			Reliability: "HIGH",
		}, third.Close, patternLow, patternHigh), ctx))
	}

	if isThreeWhiteSoldiers(first, second, third) {
		found = append(found, d.score(levels(Pattern{
			Name:        ThreeWhiteSoldiers,
			Direction:   DirectionBuy,
			Confidence:  0.78,
			Strength:    strength(third.Body(), ctx),
			Reliability: "HIGH",
		}, third.Close, patternLow, patternHigh), ctx))
	}

	if isThreeBlackCrows(first, second, third) {
		found = append(found, d.score(levels(Pattern{
			Name:        ThreeBlackCrows,
			Direction:   DirectionSell,
			Confidence:  0.78,
			Strength:    strength(third.Body(), ctx),
			Reliability: "HIGH",
		}, third.Close, patternLow, patternHigh), ctx))
	}

	return found
}
