package market

import (
	"fmt"
	"time"
)

// Candle represents a single OHLCV bar. Candles are immutable once produced
// and are always ordered by ascending timestamp within a series.
type Candle struct {
	Timestamp time.Time `json:"timestamp" csv:"timestamp"`
	Open      float64   `json:"open" csv:"open"`
	High      float64   `json:"high" csv:"high"`
	Low       float64   `json:"low" csv:"low"`
	Close     float64   `json:"close" csv:"close"`
	Volume    float64   `json:"volume" csv:"volume"`
}

// IsBullish returns true when the candle closed above its open
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish returns true when the candle closed below its open
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Body returns the absolute size of the candle body
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-to-low span of the candle
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// UpperShadow returns the wick above the body
func (c Candle) UpperShadow() float64 {
	if c.Close > c.Open {
		return c.High - c.Close
	}
	return c.High - c.Open
}

// LowerShadow returns the wick below the body
func (c Candle) LowerShadow() float64 {
	if c.Close > c.Open {
		return c.Open - c.Low
	}
	return c.Close - c.Low
}

// TypicalPrice returns (high + low + close) / 3
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// Closes extracts the close series from a candle slice
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high series from a candle slice
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low series from a candle slice
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volume series from a candle slice
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// ValidateSeries checks that candles are ordered by ascending timestamp and
// carry sane price fields. Returns the first violation found.
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		if c.High < c.Low {
			return fmt.Errorf("candle %d: high %.8f below low %.8f", i, c.High, c.Low)
		}
		if c.Open <= 0 || c.Close <= 0 {
			return fmt.Errorf("candle %d: non-positive open/close", i)
		}
		if c.Volume < 0 {
			return fmt.Errorf("candle %d: negative volume", i)
		}
		if i > 0 && !candles[i-1].Timestamp.Before(c.Timestamp) {
			return fmt.Errorf("candle %d: timestamp %s not after previous %s",
				i, c.Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// AverageVolume calculates the mean volume over the trailing period. When the
// series is shorter than the period, the whole series is used.
func AverageVolume(candles []Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}
