package usecase_test

import (
	"context"
	"time"

	"github.com/vitos/fx_sequence_trader/internal/domain"
)

// MockGateway is a settable in-memory PositionGateway. Call records let tests
// assert exactly which mutations reached the "market".
type MockGateway struct {
	Tick       domain.Tick
	TickErr    error
	Info       domain.SymbolInfo
	InfoErr    error
	Account    domain.AccountSnapshot
	AccountErr error

	Positions []domain.Position
	Deals     []domain.Deal
	Orders    []domain.HistoricalOrder
	Closes    map[string][]float64
	Ticks     int

	SubmitResult domain.OrderResult
	SubmitErr    error
	Submitted    []domain.MarketOrderRequest

	ModifyResult domain.OrderResult
	ModifyFail   map[int64]bool
	Modified     []int64
	LastModifySL float64
	LastModifyTP float64

	CloseResult domain.OrderResult
	Closed      []int64
}

// NewMockGateway returns a gateway describing a healthy EURUSD market on a
// 100k account: tight spread, full trading mode, plenty of activity.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Tick: domain.Tick{
			Bid:    1.1000,
			Ask:    1.1001,
			Time:   time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC),
			Volume: 5000,
		},
		Info: domain.SymbolInfo{
			Name:       "EURUSD",
			Point:      0.0001,
			VolumeMin:  0.01,
			VolumeMax:  100,
			VolumeStep: 0.01,
			StopsLevel: 10,
			TradeMode:  domain.TradeModeFull,
		},
		Account: domain.AccountSnapshot{
			Login:    100,
			Currency: "USD",
			Balance:  100000,
			Equity:   100000,
		},
		Ticks:        500,
		SubmitResult: domain.OrderResult{OK: true, Ticket: 1},
		ModifyResult: domain.OrderResult{OK: true},
		CloseResult:  domain.OrderResult{OK: true},
	}
}

func (m *MockGateway) CurrentTick(ctx context.Context, symbol string) (domain.Tick, error) {
	return m.Tick, m.TickErr
}

func (m *MockGateway) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	return m.Info, m.InfoErr
}

func (m *MockGateway) AccountInfo(ctx context.Context) (domain.AccountSnapshot, error) {
	return m.Account, m.AccountErr
}

func (m *MockGateway) OpenPositions(ctx context.Context, symbol string) ([]domain.Position, error) {
	if symbol == "" {
		return m.Positions, nil
	}
	var out []domain.Position
	for _, p := range m.Positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockGateway) HistoricalDeals(ctx context.Context, from, to time.Time, symbol string) ([]domain.Deal, error) {
	return m.Deals, nil
}

func (m *MockGateway) HistoricalOrders(ctx context.Context, from, to time.Time, symbol string) ([]domain.HistoricalOrder, error) {
	return m.Orders, nil
}

func (m *MockGateway) ClosePrices(ctx context.Context, symbol string, bars int) ([]float64, error) {
	if m.Closes == nil {
		// Flat series: zero volatility, zero correlation.
		closes := make([]float64, bars)
		for i := range closes {
			closes[i] = 1.1
		}
		return closes, nil
	}
	return m.Closes[symbol], nil
}

func (m *MockGateway) TickCount(ctx context.Context, symbol string, from time.Time) (int, error) {
	return m.Ticks, nil
}

func (m *MockGateway) SubmitMarketOrder(ctx context.Context, req domain.MarketOrderRequest) (domain.OrderResult, error) {
	m.Submitted = append(m.Submitted, req)
	return m.SubmitResult, m.SubmitErr
}

func (m *MockGateway) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) (domain.OrderResult, error) {
	if m.ModifyFail[ticket] {
		return domain.OrderResult{OK: false, Reason: "invalid stops"}, nil
	}
	m.Modified = append(m.Modified, ticket)
	m.LastModifySL = stopLoss
	m.LastModifyTP = takeProfit
	return m.ModifyResult, nil
}

func (m *MockGateway) ClosePosition(ctx context.Context, ticket int64, side domain.Side, volume, price float64) (domain.OrderResult, error) {
	m.Closed = append(m.Closed, ticket)
	return m.CloseResult, nil
}

// MockJournal records saves in memory.
type MockJournal struct {
	Deals  []domain.Deal
	Events []domain.OrderEvent
	Err    error
}

func (j *MockJournal) SaveDeal(ctx context.Context, deal domain.Deal) error {
	if j.Err != nil {
		return j.Err
	}
	j.Deals = append(j.Deals, deal)
	return nil
}

func (j *MockJournal) SaveOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	if j.Err != nil {
		return j.Err
	}
	j.Events = append(j.Events, event)
	return nil
}

func (j *MockJournal) ListDeals(ctx context.Context, limit int) ([]domain.Deal, error) {
	return j.Deals, nil
}
