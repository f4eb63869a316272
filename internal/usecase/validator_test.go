package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/fx_sequence_trader/internal/domain"
	"github.com/vitos/fx_sequence_trader/internal/usecase"
)

func TestValidator_AccountConditions(t *testing.T) {
	gw := NewMockGateway()
	v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
	ctx := context.Background()

	healthy := domain.AccountSnapshot{Balance: 100000, Equity: 98000}
	assert.True(t, v.ValidateAccountConditions(ctx, healthy).OK)

	// Equity at 15% of balance is under the 20% floor.
	depleted := domain.AccountSnapshot{Balance: 100000, Equity: 15000}
	assert.False(t, v.ValidateAccountConditions(ctx, depleted).OK)

	// Equity above the floor but floating drawdown past 30%.
	drawnDown := domain.AccountSnapshot{Balance: 100000, Equity: 65000}
	assert.False(t, v.ValidateAccountConditions(ctx, drawnDown).OK)

	// Realized daily loss past 60% of the day's starting balance.
	gw.Deals = []domain.Deal{{Ticket: 1, Profit: -200000, Time: time.Now()}}
	assert.False(t, v.ValidateAccountConditions(ctx, healthy).OK)
}

func TestValidator_OrderParameters(t *testing.T) {
	gw := NewMockGateway()
	v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
	ctx := context.Background()

	ok := v.ValidateOrderParameters(ctx, "EURUSD", domain.SideBuy, 0.02, 1.1001, 0, 1.1251)
	assert.True(t, ok.OK, ok.Reason)

	// Below the minimum volume.
	assert.False(t, v.ValidateOrderParameters(ctx, "EURUSD", domain.SideBuy, 0.005, 1.1001, 0, 0).OK)

	// Not a multiple of the 0.01 step.
	assert.False(t, v.ValidateOrderParameters(ctx, "EURUSD", domain.SideBuy, 0.015, 1.1001, 0, 0).OK)

	// Take profit closer than the 10-point stop level.
	assert.False(t, v.ValidateOrderParameters(ctx, "EURUSD", domain.SideBuy, 0.02, 1.1001, 0, 1.1003).OK)

	// Sell-side stop loss below the price is direction-inverted and rejected.
	assert.False(t, v.ValidateOrderParameters(ctx, "EURUSD", domain.SideSell, 0.02, 1.1000, 1.0990, 0).OK)
}

func TestValidator_Sequence(t *testing.T) {
	gw := NewMockGateway()
	v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
	cfg := testStrategyConfig()
	account := domain.AccountSnapshot{Balance: 100000, Equity: 100000}
	ctx := context.Background()

	// Position count at the cap can never grow past it.
	full := &domain.Sequence{Symbol: "EURUSD", Side: domain.SideBuy,
		Positions: make([]domain.Position, cfg.MaxPositions)}
	assert.False(t, v.ValidateSequence(ctx, full, cfg, account).OK)

	// One lot allowed per 100k equity.
	heavy := &domain.Sequence{Symbol: "EURUSD", Side: domain.SideBuy,
		Positions: []domain.Position{{Volume: 1.5}}, Volume: 1.5}
	assert.False(t, v.ValidateSequence(ctx, heavy, cfg, account).OK)

	// Last entry only 10 minutes before the current tick; timeframe is 30.
	recent := &domain.Sequence{Symbol: "EURUSD", Side: domain.SideBuy,
		Positions: []domain.Position{{Volume: 0.02}}, Volume: 0.02,
		LastPosition: &domain.Position{EntryTime: gw.Tick.Time.Add(-10 * time.Minute)}}
	assert.False(t, v.ValidateSequence(ctx, recent, cfg, account).OK)

	aged := &domain.Sequence{Symbol: "EURUSD", Side: domain.SideBuy,
		Positions: []domain.Position{{Volume: 0.02}}, Volume: 0.02,
		LastPosition: &domain.Position{EntryTime: gw.Tick.Time.Add(-2 * time.Hour)}}
	assert.True(t, v.ValidateSequence(ctx, aged, cfg, account).OK)
}

func TestValidator_RiskParameters(t *testing.T) {
	gw := NewMockGateway()
	v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())

	account := domain.AccountSnapshot{Balance: 1000, Equity: 1000}

	// 50 lots at price 100: notional risk 50 against a 20 cap (2% of 1000).
	seq := &domain.Sequence{Side: domain.SideBuy,
		Positions:    []domain.Position{{Volume: 0.02, EntryPrice: 100}},
		LastPosition: &domain.Position{Volume: 0.02, EntryPrice: 100}}
	assert.False(t, v.ValidateRiskParameters(seq, 50, account).OK)

	// Aggregate exposure past 6% of balance.
	crowded := &domain.Sequence{Side: domain.SideBuy,
		Positions: []domain.Position{
			{Volume: 40, EntryPrice: 100},
			{Volume: 40, EntryPrice: 100},
		},
		LastPosition: &domain.Position{Volume: 40, EntryPrice: 100}}
	assert.False(t, v.ValidateRiskParameters(crowded, 0.02, account).OK)

	small := &domain.Sequence{Side: domain.SideBuy,
		Positions:    []domain.Position{{Volume: 0.02, EntryPrice: 1.1}},
		LastPosition: &domain.Position{Volume: 0.02, EntryPrice: 1.1}}
	assert.True(t, v.ValidateRiskParameters(small, 0.2, account).OK)
}

func TestValidator_MarketConditions(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts healthy market", func(t *testing.T) {
		gw := NewMockGateway()
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		verdict := v.ValidateMarketConditions(ctx, "EURUSD")
		assert.True(t, verdict.OK, verdict.Reason)
	})

	t.Run("rejects close-only mode", func(t *testing.T) {
		gw := NewMockGateway()
		gw.Info.TradeMode = domain.TradeModeCloseOnly
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateMarketConditions(ctx, "EURUSD").OK)
	})

	t.Run("rejects wide spread", func(t *testing.T) {
		gw := NewMockGateway()
		gw.Tick.Bid, gw.Tick.Ask = 1.0, 1.002
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateMarketConditions(ctx, "EURUSD").OK)
	})

	t.Run("rejects thin tick volume", func(t *testing.T) {
		gw := NewMockGateway()
		gw.Tick.Volume = 500
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateMarketConditions(ctx, "EURUSD").OK)
	})

	t.Run("rejects high volatility", func(t *testing.T) {
		gw := NewMockGateway()
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 1.0
			if i%2 == 1 {
				closes[i] = 1.01
			}
		}
		gw.Closes = map[string][]float64{"EURUSD": closes}
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateMarketConditions(ctx, "EURUSD").OK)
	})

	t.Run("rejects low activity", func(t *testing.T) {
		gw := NewMockGateway()
		gw.Ticks = 50
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateMarketConditions(ctx, "EURUSD").OK)
	})
}

func TestValidator_PositionCorrelation(t *testing.T) {
	ctx := context.Background()

	rising := make([]float64, 100)
	for i := range rising {
		rising[i] = 1.0 + float64(i)*0.001
	}
	flat := make([]float64, 100)
	for i := range flat {
		flat[i] = 1.25
	}

	seq := &domain.Sequence{Symbol: "EURUSD", Side: domain.SideBuy,
		Positions: []domain.Position{{Symbol: "EURUSD", Volume: 0.02}}}

	t.Run("rejects tracking symbol", func(t *testing.T) {
		gw := NewMockGateway()
		gw.Positions = []domain.Position{
			{Ticket: 1, Symbol: "EURUSD", Magic: domain.MagicBuy},
			{Ticket: 2, Symbol: "GBPUSD", Magic: domain.MagicBuy},
		}
		gw.Closes = map[string][]float64{"EURUSD": rising, "GBPUSD": rising}
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidatePositionCorrelation(ctx, "EURUSD", seq).OK)
	})

	t.Run("accepts independent symbol", func(t *testing.T) {
		gw := NewMockGateway()
		gw.Positions = []domain.Position{
			{Ticket: 1, Symbol: "EURUSD", Magic: domain.MagicBuy},
			{Ticket: 2, Symbol: "GBPUSD", Magic: domain.MagicBuy},
		}
		gw.Closes = map[string][]float64{"EURUSD": rising, "GBPUSD": flat}
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.True(t, v.ValidatePositionCorrelation(ctx, "EURUSD", seq).OK)
	})

	t.Run("accepts empty sequence", func(t *testing.T) {
		gw := NewMockGateway()
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.True(t, v.ValidatePositionCorrelation(ctx, "EURUSD", &domain.Sequence{}).OK)
	})
}

func TestValidator_AdvancedRisk(t *testing.T) {
	ctx := context.Background()
	account := domain.AccountSnapshot{Balance: 100000, Equity: 100000}

	t.Run("rejects daily trade cap", func(t *testing.T) {
		gw := NewMockGateway()
		for i := 0; i < 20; i++ {
			gw.Deals = append(gw.Deals, domain.Deal{Ticket: int64(i), Time: time.Now()})
		}
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateAdvancedRisk(ctx, "EURUSD", &domain.Sequence{}, account).OK)
	})

	t.Run("rejects per-symbol cap", func(t *testing.T) {
		gw := NewMockGateway()
		seq := &domain.Sequence{Symbol: "EURUSD", Side: domain.SideBuy, Volume: 0.1}
		for i := 0; i < 5; i++ {
			seq.Positions = append(seq.Positions, domain.Position{Symbol: "EURUSD", Volume: 0.02, EntryPrice: 1.1})
		}
		// Keep the risk/reward leg out of the way: current bid far above the
		// entries makes the realized ratio comfortable.
		gw.Tick.Bid = 1.4
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateAdvancedRisk(ctx, "EURUSD", seq, account).OK)
	})

	t.Run("rejects weak risk reward", func(t *testing.T) {
		gw := NewMockGateway()
		gw.Tick.Bid = 1.18
		// avg entry 1.1, adverse distance 0.1, reward 0.08: ratio 0.8.
		seq := &domain.Sequence{Symbol: "EURUSD", Side: domain.SideBuy, Volume: 2,
			Positions: []domain.Position{
				{Symbol: "EURUSD", Volume: 1, EntryPrice: 1.0},
				{Symbol: "EURUSD", Volume: 1, EntryPrice: 1.2},
			}}
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateAdvancedRisk(ctx, "EURUSD", seq, account).OK)
	})

	t.Run("rejects runaway sequence loss", func(t *testing.T) {
		gw := NewMockGateway()
		gw.Tick.Bid = 1.3
		seq := &domain.Sequence{Symbol: "EURUSD", Side: domain.SideBuy, Volume: 2, Profit: -3000,
			Positions: []domain.Position{
				{Symbol: "EURUSD", Volume: 1, EntryPrice: 1.0},
				{Symbol: "EURUSD", Volume: 1, EntryPrice: 1.2},
			}}
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		assert.False(t, v.ValidateAdvancedRisk(ctx, "EURUSD", seq, account).OK)
	})

	t.Run("accepts empty sequence", func(t *testing.T) {
		gw := NewMockGateway()
		v := usecase.NewTradingValidator(gw, usecase.DefaultValidatorConfig())
		verdict := v.ValidateAdvancedRisk(ctx, "EURUSD", &domain.Sequence{}, account)
		assert.True(t, verdict.OK, verdict.Reason)
	})
}
