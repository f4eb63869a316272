package domain

import (
	"context"
	"time"
)

// PositionGateway is the execution-terminal boundary. All calls are blocking
// and may fail on session loss; none are idempotent, so callers must re-derive
// state from the gateway before acting again after an unknown outcome.
type PositionGateway interface {
	CurrentTick(ctx context.Context, symbol string) (Tick, error)
	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error)
	AccountInfo(ctx context.Context) (AccountSnapshot, error)

	// OpenPositions returns every open position, optionally filtered by
	// symbol ("" for all).
	OpenPositions(ctx context.Context, symbol string) ([]Position, error)
	HistoricalDeals(ctx context.Context, from, to time.Time, symbol string) ([]Deal, error)
	HistoricalOrders(ctx context.Context, from, to time.Time, symbol string) ([]HistoricalOrder, error)

	// ClosePrices returns the last `bars` one-minute close prices, oldest
	// first. Used for volatility and correlation checks.
	ClosePrices(ctx context.Context, symbol string, bars int) ([]float64, error)
	// TickCount reports the number of ticks observed since `from`.
	TickCount(ctx context.Context, symbol string, from time.Time) (int, error)

	SubmitMarketOrder(ctx context.Context, req MarketOrderRequest) (OrderResult, error)
	ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) (OrderResult, error)
	ClosePosition(ctx context.Context, ticket int64, side Side, volume, price float64) (OrderResult, error)
}

// MarketOrderRequest describes a new market order.
type MarketOrderRequest struct {
	Symbol     string
	Side       Side
	Volume     float64
	Price      float64
	Magic      int64
	TakeProfit float64
	SequenceID string
}

// TradeJournal persists closed deals and order events locally. Persistence is
// advisory: journal failures are logged, never block trading.
type TradeJournal interface {
	SaveDeal(ctx context.Context, deal Deal) error
	SaveOrderEvent(ctx context.Context, event OrderEvent) error
	ListDeals(ctx context.Context, limit int) ([]Deal, error)
}

// OrderEvent records one engine action against the market for later audit.
type OrderEvent struct {
	ID         int64
	Symbol     string
	Side       Side
	Action     string // "open", "modify", "close"
	Volume     float64
	Price      float64
	SequenceID string
	Reason     string
	CreatedAt  time.Time
}
