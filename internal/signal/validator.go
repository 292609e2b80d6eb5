package signal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HistoryStore persists validator state: per-pair acceptance times for the
// cooldown gate and fingerprints for near-duplicate suppression. The in-memory
// implementation is the default; a Redis-backed one survives restarts.
type HistoryStore interface {
	// Seen reports whether the fingerprint key was recorded within its TTL.
	Seen(ctx context.Context, key string) (bool, error)
	// Record stores the fingerprint key with the given TTL.
	Record(ctx context.Context, key string, ttl time.Duration) error
	// LastAccepted returns the most recent acceptance time for the pair.
	LastAccepted(ctx context.Context, pair string) (time.Time, bool, error)
	// MarkAccepted records an acceptance for the pair.
	MarkAccepted(ctx context.Context, pair string, at time.Time, ttl time.Duration) error
	// Clear drops all validator state.
	Clear(ctx context.Context) error
}

// ValidatorConfig holds the static gates and history windows.
type ValidatorConfig struct {
	MinConfidence     float64       `json:"min_confidence"`
	MinConfidenceSell float64       `json:"min_confidence_sell"` // 0 means same as MinConfidence
	MinRiskReward     float64       `json:"min_risk_reward"`
	RequirePattern    float64       `json:"require_pattern"` // confidence above this needs pattern backing
	Cooldown          time.Duration `json:"cooldown"`
	Retention         time.Duration `json:"retention"`
	ConfidenceBucket  float64       `json:"confidence_bucket"`
	EntryBucketPct    float64       `json:"entry_bucket_pct"`
}

// DefaultValidatorConfig returns the standard gates: 2 minute per-pair
// cooldown and 15 minute fingerprint retention.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinConfidence:     0.55,
		MinConfidenceSell: 0.60,
		MinRiskReward:     1.2,
		RequirePattern:    0.80,
		Cooldown:          2 * time.Minute,
		Retention:         15 * time.Minute,
		ConfidenceBucket:  0.05,
		EntryBucketPct:    0.001,
	}
}

// Rejection reasons
const (
	ReasonNotActionable  = "not_actionable"
	ReasonInvalidLevels  = "invalid_levels"
	ReasonLowConfidence  = "low_confidence"
	ReasonLowRiskReward  = "low_risk_reward"
	ReasonNoPattern      = "no_pattern_backing"
	ReasonCooldown       = "cooldown_active"
	ReasonDuplicate      = "duplicate_signal"
	ReasonHistoryFailure = "history_store_error"
)

// Decision is the outcome of validating one signal.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Validator applies static quality gates and history-based suppression to
// composed signals. Safe for concurrent use.
type Validator struct {
	cfg   ValidatorConfig
	store HistoryStore
	clock func() time.Time

	mu sync.Mutex
}

// NewValidator creates a validator backed by the given store. A nil store
// gets an in-memory one.
func NewValidator(cfg ValidatorConfig, store HistoryStore) *Validator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 15 * time.Minute
	}
	if cfg.ConfidenceBucket <= 0 {
		cfg.ConfidenceBucket = 0.05
	}
	if cfg.EntryBucketPct <= 0 {
		cfg.EntryBucketPct = 0.001
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Validator{
		cfg:   cfg,
		store: store,
		clock: time.Now,
	}
}

// Validate runs the signal through static gates, then the per-pair cooldown,
// then the fingerprint store. Accepted signals are recorded so subsequent
// near-duplicates within the windows are rejected. Static rejections leave
// no history: a failing signal must not start a cooldown.
func (v *Validator) Validate(ctx context.Context, sig *TradingSignal) (Decision, error) {
	if !sig.IsActionable() {
		return Decision{Reason: ReasonNotActionable}, nil
	}
	if err := sig.Validate(); err != nil {
		return Decision{Reason: ReasonInvalidLevels}, nil
	}

	minConf := v.cfg.MinConfidence
	if sig.Type == TypeSell && v.cfg.MinConfidenceSell > 0 {
		minConf = v.cfg.MinConfidenceSell
	}
	if sig.Confidence < minConf {
		return Decision{Reason: ReasonLowConfidence}, nil
	}
	if v.cfg.MinRiskReward > 0 && sig.RiskReward < v.cfg.MinRiskReward {
		return Decision{Reason: ReasonLowRiskReward}, nil
	}
	if v.cfg.RequirePattern > 0 && sig.Confidence >= v.cfg.RequirePattern && len(sig.Patterns) == 0 {
		return Decision{Reason: ReasonNoPattern}, nil
	}

	// History checks and the subsequent record must be atomic per validator,
	// or two concurrent duplicates could both pass.
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.clock()

	last, ok, err := v.store.LastAccepted(ctx, sig.Pair)
	if err != nil {
		return Decision{Reason: ReasonHistoryFailure}, fmt.Errorf("cooldown lookup for %s: %w", sig.Pair, err)
	}
	if ok && now.Sub(last) < v.cfg.Cooldown {
		return Decision{Reason: ReasonCooldown}, nil
	}

	key := NewFingerprint(sig, v.cfg.ConfidenceBucket, v.cfg.EntryBucketPct).Key()
	seen, err := v.store.Seen(ctx, key)
	if err != nil {
		return Decision{Reason: ReasonHistoryFailure}, fmt.Errorf("fingerprint lookup for %s: %w", sig.Pair, err)
	}
	if seen {
		return Decision{Reason: ReasonDuplicate}, nil
	}

	if err := v.store.Record(ctx, key, v.cfg.Retention); err != nil {
		return Decision{Reason: ReasonHistoryFailure}, fmt.Errorf("record fingerprint for %s: %w", sig.Pair, err)
	}
	acceptTTL := v.cfg.Retention
	if v.cfg.Cooldown > acceptTTL {
		acceptTTL = v.cfg.Cooldown
	}
	if err := v.store.MarkAccepted(ctx, sig.Pair, now, acceptTTL); err != nil {
		return Decision{Reason: ReasonHistoryFailure}, fmt.Errorf("mark accepted for %s: %w", sig.Pair, err)
	}

	return Decision{Accepted: true}, nil
}

// Clear drops all cooldown and fingerprint state.
func (v *Validator) Clear(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store.Clear(ctx)
}

// MemoryStore is the in-process HistoryStore. Expired entries are pruned
// lazily on writes.
type MemoryStore struct {
	mu           sync.Mutex
	fingerprints map[string]time.Time // key -> expiry
	accepted     map[string]acceptedEntry
	clock        func() time.Time
}

type acceptedEntry struct {
	at     time.Time
	expiry time.Time
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fingerprints: make(map[string]time.Time),
		accepted:     make(map[string]acceptedEntry),
		clock:        time.Now,
	}
}

func (m *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.fingerprints[key]
	if !ok {
		return false, nil
	}
	if m.clock().After(expiry) {
		delete(m.fingerprints, key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) Record(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	m.fingerprints[key] = now.Add(ttl)
	m.pruneLocked(now)
	return nil
}

func (m *MemoryStore) LastAccepted(_ context.Context, pair string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.accepted[pair]
	if !ok {
		return time.Time{}, false, nil
	}
	if m.clock().After(entry.expiry) {
		delete(m.accepted, pair)
		return time.Time{}, false, nil
	}
	return entry.at, true, nil
}

func (m *MemoryStore) MarkAccepted(_ context.Context, pair string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted[pair] = acceptedEntry{at: at, expiry: at.Add(ttl)}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fingerprints = make(map[string]time.Time)
	m.accepted = make(map[string]acceptedEntry)
	return nil
}

func (m *MemoryStore) pruneLocked(now time.Time) {
	for key, expiry := range m.fingerprints {
		if now.After(expiry) {
			delete(m.fingerprints, key)
		}
	}
	for pair, entry := range m.accepted {
		if now.After(entry.expiry) {
			delete(m.accepted, pair)
		}
	}
}
