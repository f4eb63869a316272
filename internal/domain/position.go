package domain

import "time"

type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Magic numbers tag every order this engine submits, one per direction.
const (
	MagicBuy  int64 = 1231
	MagicSell int64 = 1832
)

// MagicFor returns the strategy tag that marks orders of the given side.
func MagicFor(side Side) int64 {
	if side == SideSell {
		return MagicSell
	}
	return MagicBuy
}

// Opposite returns the closing side for a position of the given side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Position is a read-mostly snapshot of one filled order. The broker owns the
// authoritative record; the tracker refreshes these every cycle and nothing in
// the engine mutates them between refreshes.
type Position struct {
	Ticket     int64
	Symbol     string
	Side       Side
	Volume     float64
	EntryPrice float64
	Profit     float64
	StopLoss   float64
	TakeProfit float64
	Magic      int64
	EntryTime  time.Time
	// SequenceID is the typed sequence tag. The gateway adapter recovers it
	// from the broker comment field; the engine never parses comments itself.
	SequenceID string
	Comment    string
}
