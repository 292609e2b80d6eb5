package market

import (
	"testing"
	"time"
)

func ts(hour int) time.Time {
	return time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC)
}

func TestCandleShape(t *testing.T) {
	bullish := Candle{Open: 100, High: 106, Low: 98, Close: 105}
	if !bullish.IsBullish() || bullish.IsBearish() {
		t.Error("Close above open should be bullish")
	}
	if got := bullish.Body(); got != 5 {
		t.Errorf("Body = %.2f, want 5", got)
	}
	if got := bullish.Range(); got != 8 {
		t.Errorf("Range = %.2f, want 8", got)
	}
	if got := bullish.UpperShadow(); got != 1 {
		t.Errorf("UpperShadow = %.2f, want 1", got)
	}
	if got := bullish.LowerShadow(); got != 2 {
		t.Errorf("LowerShadow = %.2f, want 2", got)
	}

	bearish := Candle{Open: 105, High: 106, Low: 98, Close: 100}
	if !bearish.IsBearish() {
		t.Error("Close below open should be bearish")
	}
	if got := bearish.UpperShadow(); got != 1 {
		t.Errorf("Bearish UpperShadow = %.2f, want 1", got)
	}
	if got := bearish.LowerShadow(); got != 2 {
		t.Errorf("Bearish LowerShadow = %.2f, want 2", got)
	}

	flat := Candle{Open: 100, High: 101, Low: 99, Close: 100}
	if flat.IsBullish() || flat.IsBearish() {
		t.Error("Equal open and close is neither bullish nor bearish")
	}
}

func TestTypicalPrice(t *testing.T) {
	c := Candle{High: 106, Low: 98, Close: 102}
	if got := c.TypicalPrice(); got != 102 {
		t.Errorf("TypicalPrice = %.2f, want 102", got)
	}
}

func TestSeriesExtractors(t *testing.T) {
	candles := []Candle{
		{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 20},
	}

	closes := Closes(candles)
	if len(closes) != 2 || closes[1] != 2.5 {
		t.Errorf("Closes = %v", closes)
	}
	if highs := Highs(candles); highs[1] != 3 {
		t.Errorf("Highs = %v", highs)
	}
	if lows := Lows(candles); lows[0] != 0.5 {
		t.Errorf("Lows = %v", lows)
	}
	if vols := Volumes(candles); vols[0] != 10 {
		t.Errorf("Volumes = %v", vols)
	}
}

func TestValidateSeries(t *testing.T) {
	good := []Candle{
		{Timestamp: ts(0), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{Timestamp: ts(1), Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 12},
	}
	if err := ValidateSeries(good); err != nil {
		t.Errorf("Valid series rejected: %v", err)
	}

	inverted := []Candle{{Timestamp: ts(0), Open: 100, High: 99, Low: 101, Close: 100, Volume: 1}}
	if err := ValidateSeries(inverted); err == nil {
		t.Error("High below low should be rejected")
	}

	zeroPrice := []Candle{{Timestamp: ts(0), Open: 0, High: 1, Low: 0, Close: 1, Volume: 1}}
	if err := ValidateSeries(zeroPrice); err == nil {
		t.Error("Non-positive open should be rejected")
	}

	negVolume := []Candle{{Timestamp: ts(0), Open: 1, High: 2, Low: 0.5, Close: 1, Volume: -1}}
	if err := ValidateSeries(negVolume); err == nil {
		t.Error("Negative volume should be rejected")
	}

	outOfOrder := []Candle{
		{Timestamp: ts(1), Open: 1, High: 2, Low: 0.5, Close: 1, Volume: 1},
		{Timestamp: ts(0), Open: 1, High: 2, Low: 0.5, Close: 1, Volume: 1},
	}
	if err := ValidateSeries(outOfOrder); err == nil {
		t.Error("Descending timestamps should be rejected")
	}

	if err := ValidateSeries(nil); err != nil {
		t.Errorf("Empty series should pass: %v", err)
	}
}

func TestAverageVolume(t *testing.T) {
	candles := []Candle{
		{Volume: 10}, {Volume: 20}, {Volume: 30}, {Volume: 40},
	}

	if got := AverageVolume(candles, 2); got != 35 {
		t.Errorf("AverageVolume(2) = %.2f, want 35", got)
	}

	// Period longer than the series averages everything.
	if got := AverageVolume(candles, 10); got != 25 {
		t.Errorf("AverageVolume(10) = %.2f, want 25", got)
	}

	if got := AverageVolume(nil, 5); got != 0 {
		t.Errorf("AverageVolume(nil) = %.2f, want 0", got)
	}
}
