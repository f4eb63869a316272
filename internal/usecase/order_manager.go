package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/vitos/fx_sequence_trader/internal/domain"
	"go.uber.org/zap"
)

// OrderManager wraps the gateway's mutating calls with sizing. Every operation
// returns whether it took effect; a failed call is reported to the caller,
// which re-evaluates from fresh state next cycle. No retries happen here.
type OrderManager struct {
	symbol  string
	gateway domain.PositionGateway
	sizer   *OrderSizer
	journal domain.TradeJournal
	logger  *zap.Logger
}

func NewOrderManager(symbol string, gateway domain.PositionGateway, sizer *OrderSizer, journal domain.TradeJournal, logger *zap.Logger) *OrderManager {
	return &OrderManager{
		symbol:  symbol,
		gateway: gateway,
		sizer:   sizer,
		journal: journal,
		logger:  logger,
	}
}

// Open submits a market order for the sequence's next entry: seed lot for an
// empty sequence, recovery lot otherwise, tagged with the sequence identifier.
func (m *OrderManager) Open(ctx context.Context, seq *domain.Sequence, balance float64) bool {
	tick, err := m.gateway.CurrentTick(ctx, m.symbol)
	if err != nil {
		m.logger.Error("open: tick unavailable", zap.String("symbol", m.symbol), zap.Error(err))
		return false
	}
	info, err := m.gateway.SymbolInfo(ctx, m.symbol)
	if err != nil {
		m.logger.Error("open: symbol info unavailable", zap.String("symbol", m.symbol), zap.Error(err))
		return false
	}

	volume, err := m.sizer.LotSize(seq, info, balance)
	if err != nil {
		m.logger.Error("open: lot sizing failed", zap.String("symbol", m.symbol), zap.Error(err))
		return false
	}

	req := domain.MarketOrderRequest{
		Symbol:     m.symbol,
		Side:       seq.Side,
		Volume:     volume,
		Price:      tick.PriceFor(seq.Side),
		Magic:      domain.MagicFor(seq.Side),
		TakeProfit: m.sizer.TakeProfitPrice(seq.Side, tick, info),
		SequenceID: seq.ID,
	}

	result, err := m.gateway.SubmitMarketOrder(ctx, req)
	if err != nil {
		m.logger.Error("open: order send failed",
			zap.String("symbol", m.symbol), zap.String("side", string(seq.Side)),
			zap.Float64("volume", req.Volume), zap.Float64("price", req.Price), zap.Error(err))
		return false
	}
	if !result.OK {
		// Margin exhaustion is routine for a martingale chain near its cap;
		// keep it on a calmer log path than unexpected rejections.
		if isNoMoney(result.Reason) {
			m.logger.Warn("open: insufficient margin",
				zap.String("symbol", m.symbol), zap.String("side", string(seq.Side)),
				zap.Float64("volume", req.Volume), zap.Float64("price", req.Price))
		} else {
			m.logger.Error("open: order rejected",
				zap.String("symbol", m.symbol), zap.String("side", string(seq.Side)),
				zap.Float64("volume", req.Volume), zap.Float64("price", req.Price),
				zap.String("reason", result.Reason))
		}
		return false
	}

	m.logger.Info("opened position",
		zap.String("symbol", m.symbol), zap.String("side", string(seq.Side)),
		zap.Float64("volume", req.Volume), zap.Float64("price", req.Price),
		zap.Int64("ticket", result.Ticket), zap.String("sequence", seq.ID))
	m.journalEvent(ctx, seq.Side, "open", req.Volume, req.Price, seq.ID, "")
	return true
}

// Modify reissues stop-loss/take-profit for every position in the sequence,
// rounded to the symbol's tick size. Individual failures are logged and
// skipped; the pass succeeds if at least one position was modified.
func (m *OrderManager) Modify(ctx context.Context, seq *domain.Sequence, stopLoss, takeProfit float64) bool {
	info, err := m.gateway.SymbolInfo(ctx, m.symbol)
	if err != nil {
		m.logger.Error("modify: symbol info unavailable", zap.String("symbol", m.symbol), zap.Error(err))
		return false
	}
	stopLoss = roundToPoint(stopLoss, info.Point)
	takeProfit = roundToPoint(takeProfit, info.Point)

	modified := false
	for _, pos := range seq.Positions {
		result, err := m.gateway.ModifyPosition(ctx, pos.Ticket, stopLoss, takeProfit)
		if err != nil || !result.OK {
			reason := "gateway error"
			if err == nil {
				reason = result.Reason
			}
			m.logger.Warn("modify: position skipped",
				zap.Int64("ticket", pos.Ticket), zap.String("symbol", m.symbol),
				zap.Float64("sl", stopLoss), zap.Float64("tp", takeProfit),
				zap.String("reason", reason), zap.Error(err))
			continue
		}
		modified = true
	}
	if modified {
		m.logger.Info("modified sequence targets",
			zap.String("symbol", m.symbol), zap.String("side", string(seq.Side)),
			zap.Float64("sl", stopLoss), zap.Float64("tp", takeProfit),
			zap.Int("positions", seq.Size()))
		m.journalEvent(ctx, seq.Side, "modify", seq.Volume, takeProfit, seq.ID, "")
	}
	return modified
}

// Close submits the opposite-side order for one position at the current
// opposite-side price.
func (m *OrderManager) Close(ctx context.Context, pos domain.Position) bool {
	tick, err := m.gateway.CurrentTick(ctx, m.symbol)
	if err != nil {
		m.logger.Error("close: tick unavailable", zap.String("symbol", m.symbol), zap.Error(err))
		return false
	}

	closeSide := pos.Side.Opposite()
	price := tick.PriceFor(closeSide)
	result, err := m.gateway.ClosePosition(ctx, pos.Ticket, closeSide, pos.Volume, price)
	if err != nil {
		m.logger.Error("close: order send failed",
			zap.Int64("ticket", pos.Ticket), zap.String("symbol", m.symbol),
			zap.Float64("volume", pos.Volume), zap.Float64("price", price), zap.Error(err))
		return false
	}
	if !result.OK {
		m.logger.Error("close: order rejected",
			zap.Int64("ticket", pos.Ticket), zap.String("symbol", m.symbol),
			zap.Float64("volume", pos.Volume), zap.Float64("price", price),
			zap.String("reason", result.Reason))
		return false
	}

	m.logger.Info("closed position",
		zap.Int64("ticket", pos.Ticket), zap.String("symbol", m.symbol),
		zap.String("side", string(pos.Side)), zap.Float64("volume", pos.Volume),
		zap.Float64("price", price))
	m.journalEvent(ctx, pos.Side, "close", pos.Volume, price, pos.SequenceID, "")
	return true
}

func (m *OrderManager) journalEvent(ctx context.Context, side domain.Side, action string, volume, price float64, sequenceID, reason string) {
	if m.journal == nil {
		return
	}
	event := domain.OrderEvent{
		Symbol:     m.symbol,
		Side:       side,
		Action:     action,
		Volume:     volume,
		Price:      price,
		SequenceID: sequenceID,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
	if err := m.journal.SaveOrderEvent(ctx, event); err != nil {
		m.logger.Warn("journal order event failed", zap.String("action", action), zap.Error(err))
	}
}

func isNoMoney(reason string) bool {
	return strings.Contains(strings.ToLower(reason), "no money")
}
