package domain

import "time"

// Tick is the latest quote for a symbol.
type Tick struct {
	Bid    float64
	Ask    float64
	Time   time.Time
	Volume int64
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// PriceFor returns the side-specific execution price for a new market order.
func (t Tick) PriceFor(side Side) float64 {
	if side == SideBuy {
		return t.Ask
	}
	return t.Bid
}

type TradeMode int

const (
	TradeModeDisabled TradeMode = iota
	TradeModeCloseOnly
	TradeModeFull
)

// SymbolInfo carries the broker's static metadata for a symbol.
type SymbolInfo struct {
	Name       string
	Point      float64
	VolumeMin  float64
	VolumeMax  float64
	VolumeStep float64
	// StopsLevel is the minimum stop distance from the current price, in
	// points.
	StopsLevel int
	TradeMode  TradeMode
}

type DealEntry int

const (
	DealEntryIn DealEntry = iota
	DealEntryOut
)

// Deal is one historical fill reported by the broker.
type Deal struct {
	Ticket int64
	Symbol string
	Profit float64
	Volume float64
	Entry  DealEntry
	Magic  int64
	Time   time.Time
}

// HistoricalOrder is a past order record, used to recover the last entry of a
// sequence whose positions have all closed.
type HistoricalOrder struct {
	Ticket     int64
	Symbol     string
	Side       Side
	Volume     float64
	EntryPrice float64
	TakeProfit float64
	Magic      int64
	SetupTime  time.Time
	SequenceID string
}

// OrderResult is the gateway's verdict on a mutating request.
type OrderResult struct {
	OK     bool
	Ticket int64
	Reason string
}

// ValidationResult is a validator verdict. Rejections are values, not errors;
// the reason is log-worthy text explaining the decision.
type ValidationResult struct {
	OK     bool
	Reason string
}

func Accept(reason string) ValidationResult {
	return ValidationResult{OK: true, Reason: reason}
}

func Reject(reason string) ValidationResult {
	return ValidationResult{OK: false, Reason: reason}
}
