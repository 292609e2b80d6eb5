package patterns

import (
	"testing"
	"time"

	"crypto-signal-engine/internal/market"
)

func candle(open, high, low, close, volume float64) market.Candle {
	return market.Candle{
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

// series builds a flat run of candles ending in the given tail, spacing the
// timestamps an hour apart.
func series(tail ...market.Candle) []market.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, 0, 12+len(tail))
	for i := 0; i < 12; i++ {
		c := candle(100, 101, 99, 100.5, 1000)
		c.Timestamp = base.Add(time.Duration(i) * time.Hour)
		out = append(out, c)
	}
	for i, c := range tail {
		c.Timestamp = base.Add(time.Duration(12+i) * time.Hour)
		out = append(out, c)
	}
	return out
}

func findPattern(found []Pattern, name string) *Pattern {
	for i := range found {
		if found[i].Name == name {
			return &found[i]
		}
	}
	return nil
}

// TestBullishEngulfing tests bullish engulfing detection
func TestBullishEngulfing(t *testing.T) {
	// Valid: bearish candle fully engulfed by a larger bullish one.
	c1 := candle(100, 102, 98, 99, 1000)
	c2 := candle(98, 105, 97, 104, 1000)

	if !isBullishEngulfing(c1, c2) {
		t.Error("Should detect valid bullish engulfing")
	}

	// Invalid: first candle not bearish.
	if isBullishEngulfing(candle(99, 102, 98, 100, 1000), c2) {
		t.Error("Should NOT detect when first candle is not bearish")
	}

	// Invalid: second body does not engulf the first.
	if isBullishEngulfing(c1, candle(99, 101, 98, 100, 1000)) {
		t.Error("Should NOT detect when second candle does not engulf")
	}

	// Invalid: body only marginally larger than the first.
	if isBullishEngulfing(c1, candle(99, 101, 98, 100.05, 1000)) {
		t.Error("Should NOT detect without a meaningfully larger body")
	}
}

// TestBearishEngulfing tests bearish engulfing detection
func TestBearishEngulfing(t *testing.T) {
	c1 := candle(99, 102, 98, 100, 1000)
	c2 := candle(101, 103, 95, 96, 1000)

	if !isBearishEngulfing(c1, c2) {
		t.Error("Should detect valid bearish engulfing")
	}

	if isBearishEngulfing(c2, c1) {
		t.Error("Should NOT detect with candles reversed")
	}
}

// TestHammer tests hammer shape detection
func TestHammer(t *testing.T) {
	// Long lower shadow, small body near the top.
	hammer := candle(100, 100.7, 96, 100.5, 1000)
	if !isHammer(hammer) {
		t.Error("Should detect valid hammer")
	}

	// Long upper shadow disqualifies it.
	if isHammer(candle(100, 104, 99.5, 100.5, 1000)) {
		t.Error("Should NOT detect hammer with long upper shadow")
	}

	if !isInvertedHammer(candle(100, 104, 99.8, 100.5, 1000)) {
		t.Error("Should detect inverted hammer")
	}
}

// TestDoji tests doji family detection
func TestDoji(t *testing.T) {
	if !isDoji(candle(100, 102, 98, 100.1, 1000)) {
		t.Error("Should detect doji with tiny body")
	}

	if isDoji(candle(100, 110, 98, 108, 1000)) {
		t.Error("Should NOT detect doji with large body")
	}

	// Dragonfly: body at the top, long lower shadow.
	if !isDragonflyDoji(candle(100, 100.1, 96, 100.05, 1000)) {
		t.Error("Should detect dragonfly doji")
	}

	// Gravestone: body at the bottom, long upper shadow.
	if !isGravestoneDoji(candle(100, 104, 99.95, 100.05, 1000)) {
		t.Error("Should detect gravestone doji")
	}

	if isDragonflyDoji(candle(100, 104, 99.95, 100.05, 1000)) {
		t.Error("Gravestone shape should NOT read as dragonfly")
	}
}

// TestMarubozu tests marubozu detection with the body size gate
func TestMarubozu(t *testing.T) {
	d := NewDetector(0.5)

	if !d.isMarubozu(candle(100, 103.05, 99.95, 103, 1000)) {
		t.Error("Should detect bullish marubozu")
	}

	// Body below the minimum percentage of price.
	if d.isMarubozu(candle(100, 100.1, 99.99, 100.1, 1000)) {
		t.Error("Should NOT detect marubozu with negligible body")
	}

	// Meaningful shadows disqualify it.
	if d.isMarubozu(candle(100, 104, 99, 103, 1000)) {
		t.Error("Should NOT detect marubozu with real shadows")
	}
}

// TestMorningStar tests the morning star triple
func TestMorningStar(t *testing.T) {
	first := candle(105, 106, 99, 100, 1000)     // long bearish
	star := candle(99.5, 100.2, 99, 99.8, 1000)  // small star
	third := candle(100, 105.5, 99.5, 105, 1000) // closes above first midpoint

	if !isMorningStar(first, star, third) {
		t.Error("Should detect morning star")
	}

	// Third candle failing to reclaim the midpoint breaks the pattern.
	weakThird := candle(100, 102, 99.5, 101, 1000)
	if isMorningStar(first, star, weakThird) {
		t.Error("Should NOT detect morning star without midpoint reclaim")
	}

	if !isEveningStar(third, star, first) {
		t.Error("Mirror arrangement should read as evening star")
	}
}

// TestThreeWhiteSoldiers tests the three soldiers progression
func TestThreeWhiteSoldiers(t *testing.T) {
	c1 := candle(100, 103.5, 99.5, 103, 1000)
	c2 := candle(102, 106.5, 101.5, 106, 1000)
	c3 := candle(105, 109.5, 104.5, 109, 1000)

	if !isThreeWhiteSoldiers(c1, c2, c3) {
		t.Error("Should detect three white soldiers")
	}

	// Second opens below the first body.
	gap := candle(99, 106.5, 98.5, 106, 1000)
	if isThreeWhiteSoldiers(c1, gap, c3) {
		t.Error("Should NOT detect when open falls outside the prior body")
	}

	d1 := candle(109, 109.5, 104.5, 105, 1000)
	d2 := candle(106, 106.5, 101.5, 102, 1000)
	d3 := candle(103, 103.5, 98.5, 99, 1000)
	if !isThreeBlackCrows(d1, d2, d3) {
		t.Error("Should detect three black crows")
	}
}

// TestDetectVolumeConfirmation tests the confidence adjustment
func TestDetectVolumeConfirmation(t *testing.T) {
	d := NewDetector(0.5)

	bearish := candle(100, 102, 98, 99, 1000)
	engulfing := candle(98, 105, 97, 104, 5000) // 5x the trailing volume

	found := d.Detect(series(bearish, engulfing))
	p := findPattern(found, BullishEngulfing)
	if p == nil {
		t.Fatal("Should detect bullish engulfing in series")
	}
	if !p.VolumeConfirmed {
		t.Error("5x volume should confirm the pattern")
	}
	confirmed := p.Confidence

	engulfing.Volume = 1000
	found = d.Detect(series(bearish, engulfing))
	p = findPattern(found, BullishEngulfing)
	if p == nil {
		t.Fatal("Low volume should still detect the pattern")
	}
	if p.VolumeConfirmed {
		t.Error("Average volume should NOT confirm the pattern")
	}
	if p.Confidence >= confirmed {
		t.Errorf("Unconfirmed confidence %.2f should be below confirmed %.2f", p.Confidence, confirmed)
	}
	if p.Confidence <= 0 {
		t.Error("Derated confidence must stay positive")
	}
}

// TestDetectTradeLevels tests the suggested level ordering
func TestDetectTradeLevels(t *testing.T) {
	d := NewDetector(0.5)

	bearish := candle(100, 102, 98, 99, 1000)
	engulfing := candle(98, 105, 97, 104, 5000)

	found := d.Detect(series(bearish, engulfing))
	p := findPattern(found, BullishEngulfing)
	if p == nil {
		t.Fatal("Should detect bullish engulfing in series")
	}

	if !(p.SuggestedStopLoss < p.SuggestedEntry && p.SuggestedEntry < p.SuggestedTakeProfit) {
		t.Errorf("BUY levels out of order: sl=%.2f entry=%.2f tp=%.2f",
			p.SuggestedStopLoss, p.SuggestedEntry, p.SuggestedTakeProfit)
	}
	if p.RiskReward < 1.9 || p.RiskReward > 2.1 {
		t.Errorf("Risk/reward should target 2:1, got %.2f", p.RiskReward)
	}
	if p.SuggestedStopLoss >= 97 {
		t.Error("Stop should sit below the pattern low with its buffer")
	}
}

// TestDetectEmptyAndShortSeries tests the degenerate inputs
func TestDetectEmptyAndShortSeries(t *testing.T) {
	d := NewDetector(0.5)

	if got := d.Detect(nil); len(got) != 0 {
		t.Errorf("Empty series should yield no patterns, got %d", len(got))
	}

	// A single candle only runs single-candle checks and must not panic.
	one := []market.Candle{candle(100, 100.7, 96, 100.5, 1000)}
	for _, p := range d.Detect(one) {
		if p.Name == BullishEngulfing || p.Name == MorningStar {
			t.Errorf("Multi-candle pattern %s impossible on one candle", p.Name)
		}
	}
}

// TestHangingManContext tests trend-dependent naming of the hammer shape
func TestHangingManContext(t *testing.T) {
	d := NewDetector(0.5)

	hammerShape := candle(100, 100.7, 96, 100.5, 1000)

	afterUp := series(candle(95, 100.5, 94.5, 100, 1000), hammerShape)
	if findPattern(d.Detect(afterUp), HangingMan) == nil {
		t.Error("Hammer shape after a bullish candle should read as hanging man")
	}

	afterDown := series(candle(105, 105.5, 99.5, 100, 1000), hammerShape)
	if findPattern(d.Detect(afterDown), Hammer) == nil {
		t.Error("Hammer shape after a bearish candle should read as hammer")
	}
}
