// Package signal composes trading signals from indicator and pattern
// evidence, and validates them against static gates and per-pair history.
package signal

import (
	"fmt"
	"math"
	"time"
)

// Type represents the direction of a trading signal
type Type string

const (
	TypeBuy     Type = "BUY"
	TypeSell    Type = "SELL"
	TypeNeutral Type = "NEUTRAL"
)

// TradingSignal is the composed output of one evaluation: direction,
// confidence, trade levels, and sizing. NEUTRAL signals carry zero price
// levels and are never actionable.
type TradingSignal struct {
	ID              string    `json:"id"`
	Pair            string    `json:"pair"`
	Type            Type      `json:"type"`
	Confidence      float64   `json:"confidence"` // 0.0 to 0.95
	Patterns        []string  `json:"patterns"`
	Entry           float64   `json:"entry"`
	StopLoss        float64   `json:"stop_loss"`
	TakeProfit      float64   `json:"take_profit"`
	RiskReward      float64   `json:"risk_reward"`
	Leverage        int       `json:"leverage"`
	PositionSizePct float64   `json:"position_size_pct"` // percent of capital
	Fees            float64   `json:"fees"`
	NetProfit       float64   `json:"net_profit"`
	NetLoss         float64   `json:"net_loss"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// IsActionable reports whether the signal carries a tradeable direction
func (s *TradingSignal) IsActionable() bool {
	return s.Type == TypeBuy || s.Type == TypeSell
}

// Validate checks the price-level ordering invariant:
// BUY requires stopLoss < entry < takeProfit, SELL the mirror.
func (s *TradingSignal) Validate() error {
	switch s.Type {
	case TypeNeutral:
		return nil
	case TypeBuy:
		if !(s.StopLoss < s.Entry && s.Entry < s.TakeProfit) {
			return fmt.Errorf("BUY levels out of order: sl=%.8f entry=%.8f tp=%.8f",
				s.StopLoss, s.Entry, s.TakeProfit)
		}
	case TypeSell:
		if !(s.TakeProfit < s.Entry && s.Entry < s.StopLoss) {
			return fmt.Errorf("SELL levels out of order: tp=%.8f entry=%.8f sl=%.8f",
				s.TakeProfit, s.Entry, s.StopLoss)
		}
	default:
		return fmt.Errorf("unknown signal type %q", s.Type)
	}

	if s.Entry <= 0 || s.StopLoss <= 0 || s.TakeProfit <= 0 {
		return fmt.Errorf("non-positive price level on %s signal", s.Type)
	}
	return nil
}

// Fingerprint is a coarse key used for near-duplicate suppression. Two
// signals with the same fingerprint within the retention window are treated
// as the same signal.
type Fingerprint struct {
	Pair              string
	Type              Type
	RoundedConfidence float64
	EntryBucket       int64
}

// NewFingerprint builds a fingerprint by rounding confidence to the nearest
// confidenceBucket and snapping entry to a logarithmic price grid whose steps
// are entryBucketPct apart in relative terms. The log grid keeps the bucket
// width proportional to price, so it works the same at 0.5 and at 50000.
func NewFingerprint(s *TradingSignal, confidenceBucket, entryBucketPct float64) Fingerprint {
	fp := Fingerprint{Pair: s.Pair, Type: s.Type}

	if confidenceBucket > 0 {
		fp.RoundedConfidence = math.Round(s.Confidence/confidenceBucket) * confidenceBucket
	} else {
		fp.RoundedConfidence = s.Confidence
	}

	if s.Entry > 0 && entryBucketPct > 0 {
		fp.EntryBucket = int64(math.Round(math.Log(s.Entry) / entryBucketPct))
	}

	return fp
}

// Key returns the fingerprint as a store key
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s:%s:%.2f:%d", f.Pair, f.Type, f.RoundedConfidence, f.EntryBucket)
}
