package domain

// AccountSnapshot mirrors the broker's account state at one instant. Refreshed
// from the gateway every cycle, never merged.
type AccountSnapshot struct {
	Login          int64
	Currency       string
	Balance        float64
	Equity         float64
	FloatingProfit float64
}

// EquityPercent is equity as a percentage of balance.
func (a AccountSnapshot) EquityPercent() float64 {
	if a.Balance == 0 {
		return 0
	}
	return a.Equity / a.Balance * 100
}

// EquityDrawdownPercent is the floating drawdown as a percentage of balance.
func (a AccountSnapshot) EquityDrawdownPercent() float64 {
	if a.Balance == 0 {
		return 0
	}
	return (a.Balance - a.Equity) / a.Balance * 100
}
