package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/fx_sequence_trader/internal/domain"
	"go.uber.org/zap"
)

// lastOrderLookback bounds the historical search for a closed sequence's most
// recent entry.
const lastOrderLookback = 7 * 24 * time.Hour

// SequenceTracker rebuilds sequence state from the gateway. Every snapshot is
// derived from scratch, which keeps the engine honest after partial failures:
// there is no in-memory position list to drift from broker truth.
type SequenceTracker struct {
	gateway  domain.PositionGateway
	journal  domain.TradeJournal
	counters *domain.PerformanceCounters
	logger   *zap.Logger

	// seenDeals de-duplicates historical deal folding across cycles so the
	// counters stay monotonic and correct.
	seenDeals     map[int64]struct{}
	dealWatermark time.Time
	foldStart     time.Time
}

func NewSequenceTracker(gateway domain.PositionGateway, journal domain.TradeJournal, counters *domain.PerformanceCounters, logger *zap.Logger) *SequenceTracker {
	return &SequenceTracker{
		gateway:   gateway,
		journal:   journal,
		counters:  counters,
		logger:    logger,
		seenDeals: make(map[int64]struct{}),
		foldStart: time.Now(),
	}
}

// Snapshot derives the current Sequence for (symbol, side) from the gateway's
// open positions. Safe to call any number of times; each call reflects the
// gateway's latest truth.
func (t *SequenceTracker) Snapshot(ctx context.Context, symbol string, side domain.Side) (*domain.Sequence, error) {
	magic := domain.MagicFor(side)

	open, err := t.gateway.OpenPositions(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("sequence tracker: open positions for %s: %w", symbol, err)
	}

	seq := &domain.Sequence{Symbol: symbol, Side: side}
	for _, pos := range open {
		if pos.Magic != magic {
			continue
		}
		seq.Positions = append(seq.Positions, pos)
		seq.Profit += pos.Profit
		seq.Volume += pos.Volume
		if pos.SequenceID != "" {
			seq.ID = pos.SequenceID
		}
	}

	last, err := t.lastEntry(ctx, symbol, side, seq)
	if err != nil {
		t.logger.Warn("last entry lookup failed",
			zap.String("symbol", symbol), zap.String("side", string(side)), zap.Error(err))
	}
	seq.LastPosition = last

	return seq, nil
}

// lastEntry resolves the most recent still-open position for the side, or
// falls back to the last historical order within the lookback window when the
// chain is fully closed.
func (t *SequenceTracker) lastEntry(ctx context.Context, symbol string, side domain.Side, seq *domain.Sequence) (*domain.Position, error) {
	var last *domain.Position
	for i := range seq.Positions {
		p := &seq.Positions[i]
		if last == nil || p.EntryTime.After(last.EntryTime) {
			last = p
		}
	}
	if last != nil {
		cp := *last
		return &cp, nil
	}

	now := time.Now()
	orders, err := t.gateway.HistoricalOrders(ctx, now.Add(-lastOrderLookback), now, symbol)
	if err != nil {
		return nil, err
	}
	magic := domain.MagicFor(side)
	var best *domain.HistoricalOrder
	for i := range orders {
		o := &orders[i]
		if o.Magic != magic {
			continue
		}
		if best == nil || o.SetupTime.After(best.SetupTime) {
			best = o
		}
	}
	if best == nil {
		return nil, nil
	}
	return &domain.Position{
		Ticket:     best.Ticket,
		Symbol:     best.Symbol,
		Side:       best.Side,
		Volume:     best.Volume,
		EntryPrice: best.EntryPrice,
		TakeProfit: best.TakeProfit,
		Magic:      best.Magic,
		EntryTime:  best.SetupTime,
		SequenceID: best.SequenceID,
	}, nil
}

// FoldClosedDeals folds entry deals closed since program start into the
// performance counters, skipping any deal already folded in an earlier cycle.
func (t *SequenceTracker) FoldClosedDeals(ctx context.Context, symbol string) error {
	from := t.foldStart
	if !t.dealWatermark.IsZero() {
		// Re-query a little behind the watermark in case the broker reports
		// deals out of order; the seen-set absorbs the overlap.
		from = t.dealWatermark.Add(-time.Minute)
	}

	deals, err := t.gateway.HistoricalDeals(ctx, from, time.Now(), symbol)
	if err != nil {
		return fmt.Errorf("sequence tracker: historical deals for %s: %w", symbol, err)
	}

	for _, deal := range deals {
		if deal.Entry != domain.DealEntryIn {
			continue
		}
		if _, ok := t.seenDeals[deal.Ticket]; ok {
			continue
		}
		t.seenDeals[deal.Ticket] = struct{}{}
		if deal.Time.After(t.dealWatermark) {
			t.dealWatermark = deal.Time
		}
		t.counters.RecordDeal(deal.Profit)
		if t.journal != nil {
			if err := t.journal.SaveDeal(ctx, deal); err != nil {
				t.logger.Warn("journal deal save failed", zap.Int64("ticket", deal.Ticket), zap.Error(err))
			}
		}
	}
	return nil
}
