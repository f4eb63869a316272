package domain

// PerformanceCounters accumulates win/loss statistics over closed deals.
// Counters are monotonic for the lifetime of a run; derived ratios are
// recomputed on demand.
type PerformanceCounters struct {
	Wins            int
	Losses          int
	TotalWinAmount  float64
	TotalLossAmount float64
	CurrentDrawdown float64
	MaxDrawdown     float64
}

// RecordDeal folds one closed deal's profit into the counters. Break-even
// deals are ignored.
func (m *PerformanceCounters) RecordDeal(profit float64) {
	if profit > 0 {
		m.Wins++
		m.TotalWinAmount += profit
	} else if profit < 0 {
		m.Losses++
		m.TotalLossAmount += -profit
	}
}

// ObserveDrawdown updates the running drawdown from an account snapshot and
// ratchets the maximum.
func (m *PerformanceCounters) ObserveDrawdown(a AccountSnapshot) {
	if a.Balance == 0 {
		return
	}
	m.CurrentDrawdown = (a.Balance - a.Equity) / a.Balance
	if m.CurrentDrawdown > m.MaxDrawdown {
		m.MaxDrawdown = m.CurrentDrawdown
	}
}

func (m *PerformanceCounters) TotalTrades() int {
	return m.Wins + m.Losses
}

func (m *PerformanceCounters) WinPercent() float64 {
	total := m.TotalTrades()
	if total == 0 {
		return 0
	}
	return float64(m.Wins) / float64(total) * 100
}

func (m *PerformanceCounters) ProfitFactor() float64 {
	if m.TotalLossAmount == 0 {
		return 0
	}
	return m.TotalWinAmount / m.TotalLossAmount
}

func (m *PerformanceCounters) AvgWinAmount() float64 {
	if m.Wins == 0 {
		return 0
	}
	return m.TotalWinAmount / float64(m.Wins)
}

func (m *PerformanceCounters) AvgLossAmount() float64 {
	if m.Losses == 0 {
		return 0
	}
	return m.TotalLossAmount / float64(m.Losses)
}

func (m *PerformanceCounters) RiskRewardRatio() float64 {
	loss := m.AvgLossAmount()
	if loss == 0 {
		return 0
	}
	return m.AvgWinAmount() / loss
}
