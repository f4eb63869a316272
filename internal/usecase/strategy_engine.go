package usecase

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vitos/fx_sequence_trader/internal/domain"
	"github.com/vitos/fx_sequence_trader/internal/telemetry"
	"go.uber.org/zap"
)

// SequenceIDLength is the fixed width of a sequence identifier:
// YYMMDDHHMM + direction letter + 3-digit ordinal + 2-digit hash.
const SequenceIDLength = 16

// Sequence profit thresholds, scaled by point value and the last position's
// volume so different lot sizes carry proportional targets.
const (
	closeProfitFactor        = 30.0
	trailingActivationFactor = 30.0 * 1.5
	trailingStopPoints       = 20.0
)

// StrategyEngine drives the per-(symbol, direction) sequence state machine:
// Empty -> Seeded -> Growing <-> Stable -> Closing -> Empty. State is never
// assumed; every decision starts from a fresh tracker snapshot, and every
// mutating call is re-checked against the gateway before the next decision.
type StrategyEngine struct {
	cfg       domain.StrategyConfig
	gateway   domain.PositionGateway
	tracker   *SequenceTracker
	validator *TradingValidator
	orders    *OrderManager
	sizer     *OrderSizer
	calendar  *MarketCalendar
	policy    GatePolicy
	counters  *domain.PerformanceCounters
	metrics   *telemetry.Metrics
	logger    *zap.Logger

	// CycleBudget bounds one RunCycle call; PassInterval is the sleep between
	// evaluation passes inside a cycle.
	CycleBudget  time.Duration
	PassInterval time.Duration

	account domain.AccountSnapshot
	idRand  *rand.Rand
	now     func() time.Time
	sleep   func(time.Duration)
}

func NewStrategyEngine(
	cfg domain.StrategyConfig,
	gateway domain.PositionGateway,
	tracker *SequenceTracker,
	validator *TradingValidator,
	orders *OrderManager,
	sizer *OrderSizer,
	calendar *MarketCalendar,
	policy GatePolicy,
	counters *domain.PerformanceCounters,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *StrategyEngine {
	return &StrategyEngine{
		cfg:          cfg,
		gateway:      gateway,
		tracker:      tracker,
		validator:    validator,
		orders:       orders,
		sizer:        sizer,
		calendar:     calendar,
		policy:       policy,
		counters:     counters,
		metrics:      metrics,
		logger:       logger,
		CycleBudget:  10 * time.Second,
		PassInterval: 2 * time.Second,
		idRand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Run executes cycles until the context is cancelled. Cancellation is only
// observed between cycles; no gateway call is abandoned mid-flight. A
// disabled account idles a pass interval per iteration instead of spinning.
func (e *StrategyEngine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped", zap.String("symbol", e.cfg.Symbol))
			return
		default:
		}
		if !e.cfg.BotEnabled {
			e.sleep(e.PassInterval)
			continue
		}
		e.RunCycle(ctx)
		e.metrics.CycleCompleted()
	}
}

// RunCycle runs evaluation passes for the cycle budget, serially handling the
// buy sequence then the sell sequence each pass.
func (e *StrategyEngine) RunCycle(ctx context.Context) {
	if !e.cfg.BotEnabled {
		return
	}

	start := e.now()
	for e.now().Sub(start) < e.CycleBudget {
		e.runPass(ctx)
		e.sleep(e.PassInterval)
	}
}

// runPass refreshes account state, folds closed deals and evaluates both
// directions once. An account-level rejection skips the whole pass: no
// open/modify/close reaches the gateway this pass.
func (e *StrategyEngine) runPass(ctx context.Context) {
	account, err := e.gateway.AccountInfo(ctx)
	if err != nil {
		e.logger.Warn("account refresh failed, skipping pass", zap.Error(err))
		return
	}
	e.account = account
	e.counters.ObserveDrawdown(account)
	e.metrics.SetEquity(account.Equity)

	if err := e.tracker.FoldClosedDeals(ctx, e.cfg.Symbol); err != nil {
		e.logger.Warn("deal fold failed", zap.Error(err))
	}

	if !e.calendar.IsMarketOpen(e.now()) {
		session, at := e.calendar.NextOpen(e.now())
		e.logger.Debug("market closed",
			zap.String("next_session", session), zap.Time("next_open", at))
		return
	}

	if verdict := e.validator.ValidateAccountConditions(ctx, account); !verdict.OK {
		e.logger.Warn("account conditions rejected, skipping pass", zap.String("reason", verdict.Reason))
		e.metrics.ValidationRejected("account_conditions")
		return
	}

	if e.cfg.BuysEnabled {
		e.processDirection(ctx, domain.SideBuy)
	}
	if e.cfg.SellsEnabled {
		e.processDirection(ctx, domain.SideSell)
	}
}

func (e *StrategyEngine) processDirection(ctx context.Context, side domain.Side) {
	seq, err := e.tracker.Snapshot(ctx, e.cfg.Symbol, side)
	if err != nil {
		e.logger.Warn("sequence refresh failed", zap.String("side", string(side)), zap.Error(err))
		return
	}
	e.metrics.SetSequenceProfit(e.cfg.Symbol, string(side), seq.Profit)

	if seq.Empty() {
		e.seedSequence(ctx, seq)
		return
	}

	if e.growSequence(ctx, seq) {
		if seq, err = e.tracker.Snapshot(ctx, e.cfg.Symbol, side); err != nil {
			e.logger.Warn("refresh after grow failed", zap.Error(err))
			return
		}
	}

	if e.syncTakeProfit(ctx, seq) {
		if seq, err = e.tracker.Snapshot(ctx, e.cfg.Symbol, side); err != nil {
			e.logger.Warn("refresh after modify failed", zap.Error(err))
			return
		}
	}

	if e.trailStops(ctx, seq) {
		if seq, err = e.tracker.Snapshot(ctx, e.cfg.Symbol, side); err != nil {
			e.logger.Warn("refresh after trail failed", zap.Error(err))
			return
		}
	}

	e.closeIfProfitable(ctx, seq)
}

// seedSequence opens the first position of an empty sequence under a fresh
// identifier. Account and market gating already passed upstream in runPass.
func (e *StrategyEngine) seedSequence(ctx context.Context, seq *domain.Sequence) {
	seq.ID = e.generateSequenceID(seq.Side)

	if !e.validateEntry(ctx, seq) {
		return
	}
	if e.orders.Open(ctx, seq, e.account.Balance) {
		e.metrics.OrderAction("open", string(seq.Side))
		e.logger.Info("seeded sequence",
			zap.String("symbol", e.cfg.Symbol), zap.String("side", string(seq.Side)),
			zap.String("sequence", seq.ID))
	}
}

// growSequence decides whether a losing sequence earns another entry: position
// count under the cap, price deviation past the geometric reference, and hold
// time past the jittered timeframe. Returns true if a position was opened.
func (e *StrategyEngine) growSequence(ctx context.Context, seq *domain.Sequence) bool {
	if seq.Profit > 0 {
		return false
	}
	if seq.Size() >= e.cfg.MaxPositions {
		e.logger.Debug("sequence full",
			zap.Int("positions", seq.Size()), zap.Int("max", e.cfg.MaxPositions))
		return false
	}
	if seq.LastPosition == nil {
		return false
	}

	tick, err := e.gateway.CurrentTick(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Warn("grow: tick unavailable", zap.Error(err))
		return false
	}
	info, err := e.gateway.SymbolInfo(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Warn("grow: symbol info unavailable", zap.Error(err))
		return false
	}

	// Deviation is measured against the close-side price: bid for a buy
	// chain, ask for a sell chain.
	current := tick.PriceFor(seq.Side.Opposite())
	deviation := math.Abs(current-seq.LastPosition.EntryPrice) / info.Point
	refDeviation := ReferenceDeviation(e.cfg, e.policy, seq.Size())
	if deviation < refDeviation {
		return false
	}

	elapsed := tick.Time.Sub(seq.LastPosition.EntryTime)
	refHold := ReferenceHold(e.cfg, e.policy)
	if elapsed < refHold {
		return false
	}

	if !e.validateEntry(ctx, seq) {
		return false
	}

	if !e.orders.Open(ctx, seq, e.account.Balance) {
		return false
	}
	e.metrics.OrderAction("open", string(seq.Side))
	e.logger.Info("grew sequence",
		zap.String("symbol", e.cfg.Symbol), zap.String("side", string(seq.Side)),
		zap.Float64("deviation_points", deviation), zap.Float64("reference_deviation", refDeviation),
		zap.Duration("elapsed", elapsed), zap.Int("positions", seq.Size()+1))

	// The fresh entry does not share the chain's target yet; re-sync now from
	// gateway truth rather than assuming the open took effect as requested.
	fresh, err := e.tracker.Snapshot(ctx, e.cfg.Symbol, seq.Side)
	if err == nil {
		e.syncTakeProfit(ctx, fresh)
	}
	return true
}

// validateEntry runs the validator stack for a prospective entry. The chain
// gates (position cap, volume cap, time between entries) apply to recovery
// entries only: an empty sequence has no chain to gate, and after a close its
// LastPosition still points at the previous chain's final entry, so running
// the time gate there would stall re-seeding for a whole timeframe. The
// advanced-risk family conversely only gates seed entries: its risk/reward
// floor can never be met by a losing chain (reward is negative until the
// chain recovers), so applying it to recovery entries would veto the
// averaging-down behavior outright. The first rejection stops the entry;
// rejections are decisions, not errors.
func (e *StrategyEngine) validateEntry(ctx context.Context, seq *domain.Sequence) bool {
	type entryCheck struct {
		name string
		run  func() domain.ValidationResult
	}
	var checks []entryCheck
	if !seq.Empty() {
		checks = append(checks, entryCheck{"sequence", func() domain.ValidationResult {
			return e.validator.ValidateSequence(ctx, seq, e.cfg, e.account)
		}})
	}
	checks = append(checks, []entryCheck{
		{"market_conditions", func() domain.ValidationResult {
			return e.validator.ValidateMarketConditions(ctx, e.cfg.Symbol)
		}},
		{"order_parameters", func() domain.ValidationResult {
			return e.validateProspectiveOrder(ctx, seq)
		}},
		{"risk_parameters", func() domain.ValidationResult {
			volume, err := e.prospectiveVolume(ctx, seq)
			if err != nil {
				return domain.Reject(fmt.Sprintf("lot sizing failed: %v", err))
			}
			return e.validator.ValidateRiskParameters(seq, volume, e.account)
		}},
		{"position_correlation", func() domain.ValidationResult {
			return e.validator.ValidatePositionCorrelation(ctx, e.cfg.Symbol, seq)
		}},
	}...)
	if seq.Empty() {
		checks = append(checks, entryCheck{"advanced_risk", func() domain.ValidationResult {
			return e.validator.ValidateAdvancedRisk(ctx, e.cfg.Symbol, seq, e.account)
		}})
	}

	for _, check := range checks {
		if verdict := check.run(); !verdict.OK {
			e.logger.Info("entry rejected",
				zap.String("symbol", e.cfg.Symbol), zap.String("side", string(seq.Side)),
				zap.String("check", check.name), zap.String("reason", verdict.Reason))
			e.metrics.ValidationRejected(check.name)
			return false
		}
	}
	return true
}

func (e *StrategyEngine) prospectiveVolume(ctx context.Context, seq *domain.Sequence) (float64, error) {
	info, err := e.gateway.SymbolInfo(ctx, e.cfg.Symbol)
	if err != nil {
		return 0, err
	}
	return e.sizer.LotSize(seq, info, e.account.Balance)
}

func (e *StrategyEngine) validateProspectiveOrder(ctx context.Context, seq *domain.Sequence) domain.ValidationResult {
	tick, err := e.gateway.CurrentTick(ctx, e.cfg.Symbol)
	if err != nil {
		return domain.Reject(fmt.Sprintf("market data unavailable: %v", err))
	}
	info, err := e.gateway.SymbolInfo(ctx, e.cfg.Symbol)
	if err != nil {
		return domain.Reject(fmt.Sprintf("symbol metadata unavailable: %v", err))
	}
	volume, err := e.sizer.LotSize(seq, info, e.account.Balance)
	if err != nil {
		return domain.Reject(fmt.Sprintf("lot sizing failed: %v", err))
	}
	price := tick.PriceFor(seq.Side)
	takeProfit := e.sizer.TakeProfitPrice(seq.Side, tick, info)
	return e.validator.ValidateOrderParameters(ctx, e.cfg.Symbol, seq.Side, volume, price, 0, takeProfit)
}

// syncTakeProfit keeps every position in the sequence on the single shared
// target, derived from the most recent entry. Idempotent: when all positions
// already agree nothing is sent. Returns true if a modify pass was issued.
func (e *StrategyEngine) syncTakeProfit(ctx context.Context, seq *domain.Sequence) bool {
	if seq.Empty() || seq.LastPosition == nil {
		return false
	}

	target := seq.LastPosition.TakeProfit
	if target == 0 {
		info, err := e.gateway.SymbolInfo(ctx, e.cfg.Symbol)
		if err != nil {
			e.logger.Warn("sync: symbol info unavailable", zap.Error(err))
			return false
		}
		distance := e.cfg.TakeProfitPoints * info.Point
		if seq.Side == domain.SideBuy {
			target = seq.LastPosition.EntryPrice + distance
		} else {
			target = seq.LastPosition.EntryPrice - distance
		}
	}

	inSync := true
	for _, pos := range seq.Positions {
		if pos.TakeProfit != target {
			inSync = false
			break
		}
	}
	if inSync {
		return false
	}

	if e.orders.Modify(ctx, seq, 0, target) {
		e.metrics.OrderAction("modify", string(seq.Side))
		return true
	}
	return false
}

// trailStops ratchets a stop behind the price once profit clears the trailing
// activation threshold, pushing the shared target out by the same distance.
// The stop only ever advances in the sequence's favor. Returns true if a
// modify pass was issued.
func (e *StrategyEngine) trailStops(ctx context.Context, seq *domain.Sequence) bool {
	if seq.Empty() || seq.LastPosition == nil {
		return false
	}
	info, err := e.gateway.SymbolInfo(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Warn("trail: symbol info unavailable", zap.Error(err))
		return false
	}

	threshold := trailingActivationFactor * info.Point * seq.LastPosition.Volume
	if seq.Profit <= threshold {
		return false
	}

	tick, err := e.gateway.CurrentTick(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Warn("trail: tick unavailable", zap.Error(err))
		return false
	}

	distance := trailingStopPoints * info.Point
	var stop, target float64
	if seq.Side == domain.SideBuy {
		stop = tick.Bid - distance
		target = seq.LastPosition.TakeProfit + distance
		if current := seq.LastPosition.StopLoss; current != 0 && stop <= current {
			return false
		}
	} else {
		stop = tick.Ask + distance
		target = seq.LastPosition.TakeProfit - distance
		if current := seq.LastPosition.StopLoss; current != 0 && stop >= current {
			return false
		}
	}

	if e.orders.Modify(ctx, seq, stop, target) {
		e.metrics.OrderAction("modify", string(seq.Side))
		e.logger.Info("trailing stop advanced",
			zap.String("symbol", e.cfg.Symbol), zap.String("side", string(seq.Side)),
			zap.Float64("stop", stop), zap.Float64("target", target))
		return true
	}
	return false
}

// closeIfProfitable closes every position once the aggregate profit clears
// the close threshold, scaled by the last position's volume.
func (e *StrategyEngine) closeIfProfitable(ctx context.Context, seq *domain.Sequence) {
	if seq.Empty() || seq.LastPosition == nil {
		return
	}
	info, err := e.gateway.SymbolInfo(ctx, e.cfg.Symbol)
	if err != nil {
		e.logger.Warn("close: symbol info unavailable", zap.Error(err))
		return
	}

	threshold := closeProfitFactor * info.Point * seq.LastPosition.Volume
	if seq.Profit <= threshold {
		return
	}

	e.logger.Info("closing profitable sequence",
		zap.String("symbol", e.cfg.Symbol), zap.String("side", string(seq.Side)),
		zap.Float64("profit", seq.Profit), zap.Float64("threshold", threshold),
		zap.Int("positions", seq.Size()))

	for _, pos := range seq.Positions {
		if e.orders.Close(ctx, pos) {
			e.metrics.OrderAction("close", string(seq.Side))
		}
	}
}

// generateSequenceID builds the 16-character identifier carried in every
// position's comment: YYMMDDHHMM + B/S + zero-padded ordinal + 2-digit hash.
func (e *StrategyEngine) generateSequenceID(side domain.Side) string {
	letter := "B"
	if side == domain.SideSell {
		letter = "S"
	}
	ordinal := e.idRand.Intn(999) + 1
	hash := e.idRand.Intn(90) + 10
	return fmt.Sprintf("%s%s%03d%02d", e.now().Format("0601021504"), letter, ordinal, hash)
}
