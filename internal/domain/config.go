package domain

import (
	"fmt"
	"time"
)

// StrategyConfig holds the per-account strategy parameters. It is set once at
// startup and never mutated during a run.
type StrategyConfig struct {
	BotEnabled   bool
	BuysEnabled  bool
	SellsEnabled bool

	Symbol string
	// Timeframe is the minimum hold between entries in a sequence.
	Timeframe time.Duration
	// BaseBalance scales the seed lot: one volume step per BaseBalance of
	// account balance.
	BaseBalance float64
	// TakeProfitPoints is the shared take-profit distance in price points.
	TakeProfitPoints float64
	MaxPositions     int
	// MinDeviationDistance is the smallest adverse move, in points, before a
	// recovery position may be added. Grows geometrically with position count.
	MinDeviationDistance  float64
	DeviationGrowthFactor float64
}

// Validate reports the first missing required field. An account with an
// invalid config is skipped for the run; other accounts continue.
func (c StrategyConfig) Validate() error {
	switch {
	case c.Symbol == "":
		return fmt.Errorf("strategy config: symbol is required")
	case c.BaseBalance <= 0:
		return fmt.Errorf("strategy config: base balance must be positive, got %v", c.BaseBalance)
	case c.TakeProfitPoints <= 0:
		return fmt.Errorf("strategy config: take profit points must be positive, got %v", c.TakeProfitPoints)
	case c.MaxPositions <= 0:
		return fmt.Errorf("strategy config: max positions must be positive, got %d", c.MaxPositions)
	case c.MinDeviationDistance <= 0:
		return fmt.Errorf("strategy config: min deviation distance must be positive, got %v", c.MinDeviationDistance)
	case c.DeviationGrowthFactor <= 1:
		return fmt.Errorf("strategy config: deviation growth factor must exceed 1, got %v", c.DeviationGrowthFactor)
	case c.Timeframe <= 0:
		return fmt.Errorf("strategy config: timeframe must be positive, got %v", c.Timeframe)
	}
	return nil
}
