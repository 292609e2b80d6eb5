package signal

import (
	"math"
	"time"

	"github.com/google/uuid"

	"crypto-signal-engine/internal/indicators"
	"crypto-signal-engine/internal/market"
	"crypto-signal-engine/internal/patterns"
)

// ComposerConfig controls scoring thresholds, trade levels and sizing.
type ComposerConfig struct {
	// Scoring
	SignalThreshold float64 `json:"signal_threshold"` // minimum |score| to leave NEUTRAL
	SignalMargin    float64 `json:"signal_margin"`    // dominant side must beat the other by this much
	MaxConfidence   float64 `json:"max_confidence"`   // confidence ceiling
	HighConfidence  float64 `json:"high_confidence"`  // widens take-profit above this level

	// ATR multipliers for stop-loss / take-profit distance
	BuyStopATR   float64 `json:"buy_stop_atr"`
	BuyTargetATR float64 `json:"buy_target_atr"`
	// Shorts get a tighter stop and target: adverse moves against a short
	// compound faster on leverage.
	SellStopATR   float64 `json:"sell_stop_atr"`
	SellTargetATR float64 `json:"sell_target_atr"`

	// Sizing
	MinLeverage     int     `json:"min_leverage"`
	MaxLeverage     int     `json:"max_leverage"`
	MinPositionPct  float64 `json:"min_position_pct"`
	MaxPositionPct  float64 `json:"max_position_pct"`
	FeeRatePct      float64 `json:"fee_rate_pct"` // taker fee per side, percent
	MinPatternScore float64 `json:"min_pattern_score"`

	// ExpectedVolume maps a pair to the 24h volume it normally trades.
	// Pairs trading well below their expected volume get confidence derated.
	ExpectedVolume map[string]float64 `json:"expected_volume"`
}

// DefaultComposerConfig returns the standard scoring parameters.
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		SignalThreshold: 0.15,
		SignalMargin:    0.05,
		MaxConfidence:   0.95,
		HighConfidence:  0.75,
		BuyStopATR:      1.5,
		BuyTargetATR:    3.0,
		SellStopATR:     1.2,
		SellTargetATR:   2.4,
		MinLeverage:     2,
		MaxLeverage:     10,
		MinPositionPct:  1.0,
		MaxPositionPct:  5.0,
		FeeRatePct:      0.04,
	}
}

// Scoring weights. Patterns dominate; the indicator factors refine.
const (
	weightPattern   = 0.40
	weightRSI       = 0.15
	weightMACD      = 0.15
	weightBollinger = 0.10
	weightVolume    = 0.10
	weightMomentum  = 0.10
)

const momentumPeriod = 5

// Composer turns a candle window into a directional signal by combining
// pattern evidence with indicator readings into a single weighted score.
type Composer struct {
	cfg      ComposerConfig
	periods  indicators.Periods
	detector *patterns.Detector
}

// NewComposer creates a signal composer with the given config and the
// default indicator periods.
func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.MaxConfidence <= 0 || cfg.MaxConfidence > 0.95 {
		cfg.MaxConfidence = 0.95
	}
	if cfg.SignalThreshold <= 0 {
		cfg.SignalThreshold = 0.15
	}
	if cfg.MinLeverage <= 0 {
		cfg.MinLeverage = 1
	}
	if cfg.MaxLeverage < cfg.MinLeverage {
		cfg.MaxLeverage = cfg.MinLeverage
	}
	return &Composer{
		cfg:      cfg,
		periods:  indicators.DefaultPeriods(),
		detector: patterns.NewDetector(0),
	}
}

// Compose evaluates the candle series and returns a signal. The series tail
// is treated as "now": indicators and patterns are computed over the whole
// window and the last candle's close is the entry price. Any non-finite
// intermediate value collapses the result to NEUTRAL.
func (c *Composer) Compose(pair string, candles []market.Candle) TradingSignal {
	neutral := TradingSignal{
		ID:          uuid.New().String(),
		Pair:        pair,
		Type:        TypeNeutral,
		GeneratedAt: time.Now().UTC(),
	}

	if len(candles) == 0 {
		return neutral
	}

	set := indicators.Compute(candles, c.periods)
	pats := c.detector.Detect(candles)
	entry := candles[len(candles)-1].Close
	if entry <= 0 || !isFinite(entry) {
		return neutral
	}

	score, names := c.scoreWindow(candles, set, pats)
	if !isFinite(score.total) {
		return neutral
	}

	sig := neutral
	sig.Patterns = names

	switch {
	case score.total >= c.cfg.SignalThreshold && score.bull >= score.bear+c.cfg.SignalMargin:
		sig.Type = TypeBuy
	case score.total <= -c.cfg.SignalThreshold && score.bear >= score.bull+c.cfg.SignalMargin:
		sig.Type = TypeSell
	default:
		sig.Confidence = confidenceFrom(math.Abs(score.total), c.cfg.MaxConfidence)
		return sig
	}

	sig.Confidence = confidenceFrom(math.Abs(score.total), c.cfg.MaxConfidence)
	sig.Confidence = c.derateThinVolume(pair, candles, sig.Confidence)

	if !c.fillLevels(&sig, entry, set) {
		return neutral
	}
	c.fillSizing(&sig)

	if err := sig.Validate(); err != nil {
		return neutral
	}
	return sig
}

// windowScore accumulates the weighted evidence. bull and bear track each
// side's contribution separately so a close call can be held NEUTRAL.
type windowScore struct {
	total float64
	bull  float64
	bear  float64
}

func (s *windowScore) add(v, weight float64) {
	contribution := v * weight
	s.total += contribution
	if contribution > 0 {
		s.bull += contribution
	} else {
		s.bear -= contribution
	}
}

func (c *Composer) scoreWindow(candles []market.Candle, set indicators.Set, pats []patterns.Pattern) (windowScore, []string) {
	var score windowScore

	names := make([]string, 0, len(pats))
	patternScore := 0.0
	for _, p := range pats {
		names = append(names, p.Name)
		contribution := p.Confidence * (0.5 + p.Strength/4)
		if p.Direction == patterns.DirectionSell {
			contribution = -contribution
		}
		patternScore += contribution
	}
	score.add(clamp(patternScore, -1, 1), weightPattern)

	// RSI: oversold argues for a bounce, overbought for a fade.
	if rsi := indicators.Last(set.RSI, math.NaN()); isFinite(rsi) {
		switch {
		case rsi <= 30:
			score.add((30-rsi)/30, weightRSI)
		case rsi >= 70:
			score.add(-(rsi-70)/30, weightRSI)
		}
	}

	// MACD: histogram sign plus line/signal position.
	macdLine := indicators.Last(set.MACD.Line, math.NaN())
	macdSignal := indicators.Last(set.MACD.Signal, math.NaN())
	macdHist := indicators.Last(set.MACD.Histogram, math.NaN())
	if isFinite(macdLine) && isFinite(macdSignal) && isFinite(macdHist) {
		v := 0.0
		if macdHist > 0 {
			v += 0.5
		} else if macdHist < 0 {
			v -= 0.5
		}
		if macdLine > macdSignal {
			v += 0.5
		} else if macdLine < macdSignal {
			v -= 0.5
		}
		score.add(v, weightMACD)
	}

	// Bollinger: position of the close inside the band, lower band bullish.
	close := candles[len(candles)-1].Close
	upper := indicators.Last(set.Bollinger.Upper, math.NaN())
	lower := indicators.Last(set.Bollinger.Lower, math.NaN())
	if isFinite(upper) && isFinite(lower) && upper > lower {
		mid := (upper + lower) / 2
		v := clamp(2*(mid-close)/(upper-lower), -1, 1)
		score.add(v, weightBollinger)
	}

	// Volume: a spike over the trailing average backs the candle's direction.
	current := candles[len(candles)-1]
	if avgVol := market.AverageVolume(candles[:len(candles)-1], 10); avgVol > 0 {
		if current.Volume >= avgVol*1.5 {
			if current.IsBullish() {
				score.add(1, weightVolume)
			} else if current.IsBearish() {
				score.add(-1, weightVolume)
			}
		}
	}

	// Short-term momentum over the last few closes, saturating at +/-2%.
	if len(candles) > momentumPeriod {
		past := candles[len(candles)-1-momentumPeriod].Close
		if past > 0 {
			changePct := (close - past) / past * 100
			score.add(clamp(changePct/2, -1, 1), weightMomentum)
		}
	}

	return score, names
}

// confidenceFrom maps the score magnitude to confidence: a floor for any
// non-trivial score, rising monotonically and saturating at the ceiling.
func confidenceFrom(magnitude, ceiling float64) float64 {
	if magnitude <= 0 || !isFinite(magnitude) {
		return 0
	}
	conf := 0.30 + magnitude*0.80
	return clamp(conf, 0, ceiling)
}

// derateThinVolume scales confidence down when the pair trades well below
// its expected volume. Thin books make the levels less trustworthy, but a
// valid setup on low volume is still a setup.
func (c *Composer) derateThinVolume(pair string, candles []market.Candle, conf float64) float64 {
	expected, ok := c.cfg.ExpectedVolume[pair]
	if !ok || expected <= 0 {
		return conf
	}
	avg := market.AverageVolume(candles, 10)
	if avg <= 0 {
		return conf * 0.80
	}
	ratio := avg / expected
	if ratio >= 1 {
		return conf
	}
	// Linear derate down to 0.7x at zero volume.
	return conf * (0.70 + 0.30*ratio)
}

// fillLevels sets entry, stop and target from the last ATR reading. Returns
// false when a finite, correctly ordered level set cannot be produced.
func (c *Composer) fillLevels(sig *TradingSignal, entry float64, set indicators.Set) bool {
	atr := indicators.Last(set.ATR, 0)
	if !isFinite(atr) || atr <= 0 {
		atr = entry * 0.01
	}

	sig.Entry = entry
	if sig.Type == TypeBuy {
		sig.StopLoss = entry - atr*c.cfg.BuyStopATR
		sig.TakeProfit = entry + atr*c.cfg.BuyTargetATR
		if sig.Confidence >= c.cfg.HighConfidence {
			sig.TakeProfit = entry + atr*c.cfg.BuyTargetATR*1.25
		}
	} else {
		sig.StopLoss = entry + atr*c.cfg.SellStopATR
		sig.TakeProfit = entry - atr*c.cfg.SellTargetATR
		if sig.Confidence >= c.cfg.HighConfidence {
			sig.TakeProfit = entry - atr*c.cfg.SellTargetATR*1.25
		}
	}

	if sig.StopLoss <= 0 || sig.TakeProfit <= 0 {
		return false
	}

	risk := math.Abs(entry - sig.StopLoss)
	reward := math.Abs(sig.TakeProfit - entry)
	if risk <= 0 {
		return false
	}
	sig.RiskReward = reward / risk
	return isFinite(sig.RiskReward)
}

// fillSizing derives leverage and position size deterministically from
// confidence and risk/reward. Identical inputs always size identically.
func (c *Composer) fillSizing(sig *TradingSignal) {
	levRange := float64(c.cfg.MaxLeverage - c.cfg.MinLeverage)
	quality := sig.Confidence * clamp(sig.RiskReward/3, 0, 1)
	sig.Leverage = c.cfg.MinLeverage + int(math.Round(levRange*quality))

	posRange := c.cfg.MaxPositionPct - c.cfg.MinPositionPct
	sig.PositionSizePct = c.cfg.MinPositionPct + posRange*sig.Confidence

	// Round-trip fees and projected outcomes on the leveraged notional,
	// expressed as percent of the position's capital.
	notionalPct := sig.PositionSizePct * float64(sig.Leverage)
	sig.Fees = notionalPct * c.cfg.FeeRatePct / 100 * 2

	if sig.Entry > 0 {
		rewardPct := math.Abs(sig.TakeProfit-sig.Entry) / sig.Entry * 100
		riskPct := math.Abs(sig.Entry-sig.StopLoss) / sig.Entry * 100
		sig.NetProfit = notionalPct*rewardPct/100 - sig.Fees
		sig.NetLoss = notionalPct*riskPct/100 + sig.Fees
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
