package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/fx_sequence_trader/internal/domain"
)

// OrderSizer computes lot sizes and take-profit prices. Both calculations are
// deterministic given their inputs and perform no I/O.
type OrderSizer struct {
	cfg domain.StrategyConfig
}

func NewOrderSizer(cfg domain.StrategyConfig) *OrderSizer {
	return &OrderSizer{cfg: cfg}
}

// LotSize returns the volume for the next entry of the sequence: a balance
// scaled seed lot when the sequence is empty, otherwise a recovery lot sized
// so that reaching the shared take-profit covers the aggregate loss plus one
// full profit unit.
func (s *OrderSizer) LotSize(seq *domain.Sequence, info domain.SymbolInfo, balance float64) (float64, error) {
	if info.VolumeStep <= 0 {
		return 0, fmt.Errorf("order sizer: symbol %s has invalid volume step %v", info.Name, info.VolumeStep)
	}
	if info.Point <= 0 {
		return 0, fmt.Errorf("order sizer: symbol %s has invalid point %v", info.Name, info.Point)
	}
	step := info.VolumeStep

	var lot float64
	if seq.Empty() {
		lot = (balance / s.cfg.BaseBalance) * step
		if lot < step {
			lot = step
		}
		lot = roundToStep(lot, step)
	} else {
		targetProfit := s.cfg.TakeProfitPoints*info.Point + math.Abs(seq.Profit)
		targetVolume := targetProfit / s.cfg.TakeProfitPoints
		lot = roundToStep(targetVolume, step)
		// Force progress: a recovery lot equal to the previous entry would
		// never shift the break-even point. Compare within half a step to
		// absorb float noise from the broker's reported volume.
		if seq.LastPosition != nil && math.Abs(lot-seq.LastPosition.Volume) < step/2 {
			lot += step
		}
	}

	if lot < step {
		lot = step
	}
	return roundToStep(lot, step), nil
}

// TakeProfitPrice is the shared sequence target: the side-specific entry price
// displaced by the configured distance.
func (s *OrderSizer) TakeProfitPrice(side domain.Side, tick domain.Tick, info domain.SymbolInfo) float64 {
	distance := s.cfg.TakeProfitPoints * info.Point
	if side == domain.SideBuy {
		return tick.Ask + distance
	}
	return tick.Bid - distance
}

func roundToStep(v, step float64) float64 {
	return math.Round(v/step) * step
}

// roundToPoint aligns a price to the symbol's tick size.
func roundToPoint(v, point float64) float64 {
	if point <= 0 {
		return v
	}
	return math.Round(v/point) * point
}
