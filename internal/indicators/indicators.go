// Package indicators provides pure technical indicator calculations over
// OHLCV arrays. Every function returns a slice aligned to the tail of its
// input (length = input length minus the indicator warm-up) and returns an
// empty slice, never an error, when the input is shorter than the warm-up.
// Calling any function twice with identical input yields identical output.
package indicators

import "math"

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average series.
// Output length: len(values) - period + 1.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return []float64{}
	}

	out := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMA calculates the Exponential Moving Average series, seeded with the SMA
// of the first period values. Output length: len(values) - period + 1.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return []float64{}
	}

	multiplier := 2.0 / float64(period+1)

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)

	ema := seed
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI calculates the Relative Strength Index using Wilder's smoothing. The
// average gain/loss is seeded over the first period deltas and then smoothed
// as avg = (avg*(period-1) + new) / period. RSI is 100 when the average loss
// is zero. Output length: len(closes) - period.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return []float64{}
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(closes)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain := 0.0
		loss := 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0 // flat series carries no momentum either way
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds the MACD line, signal line, and histogram series.
// Line is aligned to the tail of the input (length = len(closes) - slow + 1);
// Signal and Histogram are aligned to each other and to the tail of Line
// (length = len(Line) - signalPeriod + 1).
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD calculates the MACD line as EMA(fast) - EMA(slow), the signal line as
// EMA(line, signalPeriod), and the histogram as line - signal.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	if fastPeriod <= 0 || slowPeriod <= fastPeriod || signalPeriod <= 0 {
		return MACDResult{Line: []float64{}, Signal: []float64{}, Histogram: []float64{}}
	}
	if len(closes) < slowPeriod+signalPeriod-1 {
		return MACDResult{Line: []float64{}, Signal: []float64{}, Histogram: []float64{}}
	}

	fastEMA := EMA(closes, fastPeriod)
	slowEMA := EMA(closes, slowPeriod)

	// Both EMAs are tail-aligned; trim the fast EMA to the slow length.
	offset := len(fastEMA) - len(slowEMA)
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signal := EMA(line, signalPeriod)

	histOffset := len(line) - len(signal)
	histogram := make([]float64, len(signal))
	for i := range signal {
		histogram[i] = line[i+histOffset] - signal[i]
	}

	return MACDResult{Line: line, Signal: signal, Histogram: histogram}
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds the Bollinger Band series, tail-aligned to the input.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerBands calculates SMA-centered bands offset by stdDevMultiplier
// population standard deviations over the window.
func BollingerBands(closes []float64, period int, stdDevMultiplier float64) BollingerResult {
	if period <= 0 || len(closes) < period {
		return BollingerResult{Upper: []float64{}, Middle: []float64{}, Lower: []float64{}}
	}

	n := len(closes) - period + 1
	upper := make([]float64, n)
	middle := make([]float64, n)
	lower := make([]float64, n)

	for i := 0; i < n; i++ {
		window := closes[i : i+period]

		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		variance := 0.0
		for _, v := range window {
			diff := v - mean
			variance += diff * diff
		}
		stdDev := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + stdDev*stdDevMultiplier
		lower[i] = mean - stdDev*stdDevMultiplier
	}

	return BollingerResult{Upper: upper, Middle: middle, Lower: lower}
}

// ============================================================================
// STOCHASTIC OSCILLATOR
// ============================================================================

// StochasticResult holds the %K and %D series. D is aligned to the tail of K
// (length = len(K) - dPeriod + 1).
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic calculates %K = (close - lowestLow) / (highestHigh - lowestLow)
// * 100 over kPeriod, defaulting to 50 when the range is zero, and %D as the
// SMA of %K over dPeriod.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) StochasticResult {
	if kPeriod <= 0 || dPeriod <= 0 || len(closes) < kPeriod || len(highs) != len(closes) || len(lows) != len(closes) {
		return StochasticResult{K: []float64{}, D: []float64{}}
	}

	n := len(closes) - kPeriod + 1
	k := make([]float64, n)

	for i := 0; i < n; i++ {
		highestHigh := highs[i]
		lowestLow := lows[i]
		for j := i; j < i+kPeriod; j++ {
			if highs[j] > highestHigh {
				highestHigh = highs[j]
			}
			if lows[j] < lowestLow {
				lowestLow = lows[j]
			}
		}

		if highestHigh == lowestLow {
			k[i] = 50.0
		} else {
			k[i] = (closes[i+kPeriod-1] - lowestLow) / (highestHigh - lowestLow) * 100
		}
	}

	return StochasticResult{K: k, D: SMA(k, dPeriod)}
}

// WilliamsR calculates Williams %R, the Stochastic %K mirrored into
// [-100, 0]. A zero range yields -50.
func WilliamsR(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period || len(highs) != len(closes) || len(lows) != len(closes) {
		return []float64{}
	}

	n := len(closes) - period + 1
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		highestHigh := highs[i]
		lowestLow := lows[i]
		for j := i; j < i+period; j++ {
			if highs[j] > highestHigh {
				highestHigh = highs[j]
			}
			if lows[j] < lowestLow {
				lowestLow = lows[j]
			}
		}

		if highestHigh == lowestLow {
			out[i] = -50.0
		} else {
			out[i] = (highestHigh - closes[i+period-1]) / (highestHigh - lowestLow) * -100
		}
	}
	return out
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// TrueRange calculates the true range series:
// max(high-low, |high-prevClose|, |low-prevClose|).
// Output length: len(closes) - 1.
func TrueRange(highs, lows, closes []float64) []float64 {
	if len(closes) < 2 || len(highs) != len(closes) || len(lows) != len(closes) {
		return []float64{}
	}

	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prevClose := closes[i-1]
		tr := math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)))
		out[i-1] = tr
	}
	return out
}

// ATR calculates the Average True Range as the SMA of the true range over
// period. Output length: len(closes) - period.
func ATR(highs, lows, closes []float64, period int) []float64 {
	tr := TrueRange(highs, lows, closes)
	return SMA(tr, period)
}

// ============================================================================
// VWAP (Volume-Weighted Average Price)
// ============================================================================

// VWAP calculates the cumulative volume-weighted average price, one value per
// candle. When cumulative volume is zero the typical price is used instead.
func VWAP(highs, lows, closes, volumes []float64) []float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n || len(volumes) != n {
		return []float64{}
	}

	out := make([]float64, n)
	cumPV := 0.0
	cumVol := 0.0
	for i := 0; i < n; i++ {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		cumPV += typical * volumes[i]
		cumVol += volumes[i]

		if cumVol == 0 {
			out[i] = typical
		} else {
			out[i] = cumPV / cumVol
		}
	}
	return out
}

// ============================================================================
// ADX (Average Directional Index)
// ============================================================================

// ADX calculates the Average Directional Index using Wilder's directional
// movement formulas. Zero-range divisions resolve to a neutral 0.
// Output length: len(closes) - 2*period.
func ADX(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < 2*period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return []float64{}
	}

	n := len(closes) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i <= n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]

		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}

		prevClose := closes[i-1]
		tr[i-1] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)))
	}

	// Wilder smoothing of TR and directional movement.
	smoothTR := 0.0
	smoothPlus := 0.0
	smoothMinus := 0.0
	for i := 0; i < period; i++ {
		smoothTR += tr[i]
		smoothPlus += plusDM[i]
		smoothMinus += minusDM[i]
	}

	dx := make([]float64, 0, n-period+1)
	dx = append(dx, dxValue(smoothPlus, smoothMinus, smoothTR))

	for i := period; i < n; i++ {
		smoothTR = smoothTR - smoothTR/float64(period) + tr[i]
		smoothPlus = smoothPlus - smoothPlus/float64(period) + plusDM[i]
		smoothMinus = smoothMinus - smoothMinus/float64(period) + minusDM[i]
		dx = append(dx, dxValue(smoothPlus, smoothMinus, smoothTR))
	}

	// ADX is Wilder-smoothed DX.
	if len(dx) < period {
		return []float64{}
	}

	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dx[i]
	}
	adx /= float64(period)

	out := make([]float64, 0, len(dx)-period+1)
	out = append(out, adx)
	for i := period; i < len(dx); i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		out = append(out, adx)
	}
	return out
}

func dxValue(smoothPlus, smoothMinus, smoothTR float64) float64 {
	if smoothTR == 0 {
		return 0
	}
	plusDI := smoothPlus / smoothTR * 100
	minusDI := smoothMinus / smoothTR * 100

	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return math.Abs(plusDI-minusDI) / sum * 100
}

// ============================================================================
// CCI (Commodity Channel Index)
// ============================================================================

// CCI calculates the Commodity Channel Index:
// (typicalPrice - SMA(typicalPrice)) / (0.015 * meanDeviation).
// A zero mean deviation yields a neutral 0.
// Output length: len(closes) - period + 1.
func CCI(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period || len(highs) != len(closes) || len(lows) != len(closes) {
		return []float64{}
	}

	typical := make([]float64, len(closes))
	for i := range closes {
		typical[i] = (highs[i] + lows[i] + closes[i]) / 3
	}

	n := len(typical) - period + 1
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		window := typical[i : i+period]

		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		meanDev := 0.0
		for _, v := range window {
			meanDev += math.Abs(v - mean)
		}
		meanDev /= float64(period)

		if meanDev == 0 {
			out[i] = 0
		} else {
			out[i] = (typical[i+period-1] - mean) / (0.015 * meanDev)
		}
	}
	return out
}

// ============================================================================
// MOMENTUM
// ============================================================================

// Momentum calculates the percentage price change over period bars.
// Output length: len(closes) - period.
func Momentum(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return []float64{}
	}

	out := make([]float64, 0, len(closes)-period)
	for i := period; i < len(closes); i++ {
		if closes[i-period] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-closes[i-period])/closes[i-period]*100)
	}
	return out
}

// Last returns the final value of a series, or the fallback when empty.
func Last(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}
