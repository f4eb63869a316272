package domain

// Sequence is one directional chain of positions in a symbol, managed as a
// unit for sizing, take-profit and closing decisions. It is re-derived from
// the gateway every cycle and never incrementally mutated, so Profit and
// Volume always equal the sums over Positions.
type Sequence struct {
	ID        string
	Symbol    string
	Side      Side
	Profit    float64
	Volume    float64
	Positions []Position
	// LastPosition is the most recently opened position carrying this side's
	// magic number. When the chain is fully closed it falls back to the last
	// historical order within the lookback window, so sizing can still bump
	// past the previous volume.
	LastPosition *Position
}

func (s *Sequence) Empty() bool {
	return len(s.Positions) == 0
}

func (s *Sequence) Size() int {
	return len(s.Positions)
}
