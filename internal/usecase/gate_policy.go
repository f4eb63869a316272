package usecase

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/vitos/fx_sequence_trader/internal/domain"
)

// GatePolicy supplies the perturbations applied to the re-entry gates on each
// evaluation. The production policy is randomized to decorrelate grid spacing;
// tests inject a fixed policy to pin thresholds.
type GatePolicy interface {
	// DeviationFactor returns the geometric growth factor for the reference
	// deviation.
	DeviationFactor() float64
	// HoldJitter returns the offset added to the configured timeframe.
	HoldJitter() time.Duration
}

// RandomGatePolicy perturbs the gates with a seedable source: the deviation
// factor is uniform in [1.3, 1.5) and the hold jitter uniform in ±30 minutes.
type RandomGatePolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomGatePolicy(seed int64) *RandomGatePolicy {
	return &RandomGatePolicy{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomGatePolicy) DeviationFactor() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 1.3 + p.rng.Float64()*0.2
}

func (p *RandomGatePolicy) HoldJitter() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	minutes := p.rng.Intn(61) - 30
	return time.Duration(minutes) * time.Minute
}

// FixedGatePolicy returns constant perturbations. Used by tests and available
// for deployments that want reproducible gating.
type FixedGatePolicy struct {
	Factor float64
	Jitter time.Duration
}

func (p FixedGatePolicy) DeviationFactor() float64 {
	return p.Factor
}

func (p FixedGatePolicy) HoldJitter() time.Duration {
	return p.Jitter
}

// ReferenceDeviation is the minimum adverse move, in points, before another
// position may join the sequence. It grows geometrically with the number of
// positions already open.
func ReferenceDeviation(cfg domain.StrategyConfig, policy GatePolicy, positionCount int) float64 {
	return cfg.MinDeviationDistance * math.Pow(policy.DeviationFactor(), float64(positionCount))
}

// ReferenceHold is the minimum elapsed time since the last entry before
// another position may join the sequence.
func ReferenceHold(cfg domain.StrategyConfig, policy GatePolicy) time.Duration {
	hold := cfg.Timeframe + policy.HoldJitter()
	if hold < 0 {
		hold = 0
	}
	return hold
}
