package indicators

import "crypto-signal-engine/internal/market"

// Periods holds the lookback parameters used when computing a full Set.
type Periods struct {
	RSI        int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	SMA        int
	EMA        int
	Bollinger  int
	BollingerK float64
	StochK     int
	StochD     int
	WilliamsR  int
	ATR        int
	ADX        int
	CCI        int
}

// DefaultPeriods returns the conventional indicator parameters.
func DefaultPeriods() Periods {
	return Periods{
		RSI:        14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		SMA:        20,
		EMA:        20,
		Bollinger:  20,
		BollingerK: 2.0,
		StochK:     14,
		StochD:     3,
		WilliamsR:  14,
		ATR:        14,
		ADX:        14,
		CCI:        20,
	}
}

// Set holds every indicator series derived from one candle series. Each slice
// is aligned to the tail of the candles; slices are shorter than the candle
// series by their indicator's warm-up and empty when the series is too short.
// A Set is recomputed on demand and never mutated in place.
type Set struct {
	RSI        []float64
	MACD       MACDResult
	SMA        []float64
	EMA        []float64
	Bollinger  BollingerResult
	Stochastic StochasticResult
	WilliamsR  []float64
	ATR        []float64
	VWAP       []float64
	ADX        []float64
	CCI        []float64
}

// Compute derives the full indicator set from a candle series. Short series
// produce empty member slices rather than errors.
func Compute(candles []market.Candle, p Periods) Set {
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	volumes := market.Volumes(candles)

	return Set{
		RSI:        RSI(closes, p.RSI),
		MACD:       MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal),
		SMA:        SMA(closes, p.SMA),
		EMA:        EMA(closes, p.EMA),
		Bollinger:  BollingerBands(closes, p.Bollinger, p.BollingerK),
		Stochastic: Stochastic(highs, lows, closes, p.StochK, p.StochD),
		WilliamsR:  WilliamsR(highs, lows, closes, p.WilliamsR),
		ATR:        ATR(highs, lows, closes, p.ATR),
		VWAP:       VWAP(highs, lows, closes, volumes),
		ADX:        ADX(highs, lows, closes, p.ADX),
		CCI:        CCI(highs, lows, closes, p.CCI),
	}
}
