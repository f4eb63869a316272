package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vitos/fx_sequence_trader/internal/domain"
)

// ValidatorConfig carries the risk thresholds. Defaults reproduce the account
// parameters the strategy has always run with.
type ValidatorConfig struct {
	MinEquityPercent  float64
	MaxEquityDrawdown float64
	MaxDailyDrawdown  float64

	MaxPositionsPerSymbol int
	MaxDailyTrades        int
	MinRiskRewardRatio    float64
	MaxCorrelation        float64
	// RiskFraction is the notional fraction of price counted as at risk per
	// unit of volume.
	RiskFraction        float64
	MaxRiskPerTradePct  float64
	MaxTotalRiskPct     float64
	MaxSequenceLossPct  float64
	VolatilityThreshold float64
	VolatilityBars      int
	CorrelationBars     int

	MaxSpreadPercent  float64
	MinTickVolume     int64
	MinHourlyActivity int
	// EquityPerLot caps total sequence volume: one standard lot allowed per
	// this much equity.
	EquityPerLot float64
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinEquityPercent:  20.0,
		MaxEquityDrawdown: 30.0,
		MaxDailyDrawdown:  60.0,

		MaxPositionsPerSymbol: 5,
		MaxDailyTrades:        20,
		MinRiskRewardRatio:    1.5,
		MaxCorrelation:        0.7,
		RiskFraction:          0.01,
		MaxRiskPerTradePct:    0.02,
		MaxTotalRiskPct:       0.06,
		MaxSequenceLossPct:    0.02,
		VolatilityThreshold:   0.002,
		VolatilityBars:        20,
		CorrelationBars:       100,

		MaxSpreadPercent:  0.1,
		MinTickVolume:     1000,
		MinHourlyActivity: 100,
		EquityPerLot:      100000,
	}
}

// TradingValidator is an independent gate in front of every mutating call.
// Each check is side-effect-free and returns an accept/reject verdict with a
// reason; the caller decides which subset to run before which action, and the
// validator itself never touches the market.
type TradingValidator struct {
	gateway domain.PositionGateway
	cfg     ValidatorConfig
	// now is injectable for tests of day-boundary logic.
	now func() time.Time
}

func NewTradingValidator(gateway domain.PositionGateway, cfg ValidatorConfig) *TradingValidator {
	return &TradingValidator{gateway: gateway, cfg: cfg, now: time.Now}
}

// ValidateAccountConditions checks equity level and drawdown limits.
func (v *TradingValidator) ValidateAccountConditions(ctx context.Context, account domain.AccountSnapshot) domain.ValidationResult {
	equityPercent := account.EquityPercent()
	if equityPercent < v.cfg.MinEquityPercent {
		return domain.Reject(fmt.Sprintf("equity percentage (%.2f%%) below minimum required (%.2f%%)", equityPercent, v.cfg.MinEquityPercent))
	}

	equityDrawdown := account.EquityDrawdownPercent()
	if equityDrawdown > v.cfg.MaxEquityDrawdown {
		return domain.Reject(fmt.Sprintf("equity drawdown (%.2f%%) exceeds maximum allowed (%.2f%%)", equityDrawdown, v.cfg.MaxEquityDrawdown))
	}

	dailyDrawdown := v.dailyDrawdown(ctx, account)
	if dailyDrawdown > v.cfg.MaxDailyDrawdown {
		return domain.Reject(fmt.Sprintf("daily drawdown (%.2f%%) exceeds maximum allowed (%.2f%%)", dailyDrawdown, v.cfg.MaxDailyDrawdown))
	}

	return domain.Accept("account conditions ok")
}

// ValidateOrderParameters checks symbol validity, volume limits and stop
// distances for a prospective order.
func (v *TradingValidator) ValidateOrderParameters(ctx context.Context, symbol string, side domain.Side, volume, price, stopLoss, takeProfit float64) domain.ValidationResult {
	info, err := v.gateway.SymbolInfo(ctx, symbol)
	if err != nil {
		return domain.Reject(fmt.Sprintf("invalid symbol %s: %v", symbol, err))
	}

	if volume < info.VolumeMin || volume > info.VolumeMax {
		return domain.Reject(fmt.Sprintf("volume %v outside allowed range [%v, %v]", volume, info.VolumeMin, info.VolumeMax))
	}
	if !isStepMultiple(volume, info.VolumeStep) {
		return domain.Reject(fmt.Sprintf("volume %v not a multiple of step %v", volume, info.VolumeStep))
	}

	minStop := info.Point * float64(info.StopsLevel)
	if side == domain.SideBuy {
		if stopLoss > 0 && price-stopLoss < minStop {
			return domain.Reject(fmt.Sprintf("stop loss %v too close to price %v (min distance %v)", stopLoss, price, minStop))
		}
		if takeProfit > 0 && takeProfit-price < minStop {
			return domain.Reject(fmt.Sprintf("take profit %v too close to price %v (min distance %v)", takeProfit, price, minStop))
		}
	} else {
		if stopLoss > 0 && stopLoss-price < minStop {
			return domain.Reject(fmt.Sprintf("stop loss %v too close to price %v (min distance %v)", stopLoss, price, minStop))
		}
		if takeProfit > 0 && price-takeProfit < minStop {
			return domain.Reject(fmt.Sprintf("take profit %v too close to price %v (min distance %v)", takeProfit, price, minStop))
		}
	}

	return domain.Accept("order parameters ok")
}

// ValidateSequence checks the chain-level gates before a new entry joins.
func (v *TradingValidator) ValidateSequence(ctx context.Context, seq *domain.Sequence, cfg domain.StrategyConfig, account domain.AccountSnapshot) domain.ValidationResult {
	if seq.Size() >= cfg.MaxPositions {
		return domain.Reject(fmt.Sprintf("maximum positions (%d) reached for sequence", cfg.MaxPositions))
	}

	maxVolume := account.Equity / v.cfg.EquityPerLot
	if seq.Volume > maxVolume {
		return domain.Reject(fmt.Sprintf("total sequence volume (%v) exceeds maximum allowed (%v)", seq.Volume, maxVolume))
	}

	if seq.LastPosition != nil && !seq.LastPosition.EntryTime.IsZero() {
		tick, err := v.gateway.CurrentTick(ctx, seq.Symbol)
		if err != nil {
			return domain.Reject(fmt.Sprintf("market data unavailable for %s: %v", seq.Symbol, err))
		}
		if tick.Time.Sub(seq.LastPosition.EntryTime) < cfg.Timeframe {
			return domain.Reject("minimum time between positions not met")
		}
	}

	return domain.Accept("sequence ok")
}

// ValidateRiskParameters checks the notional risk of the next entry and of the
// whole sequence against the balance-derived caps.
func (v *TradingValidator) ValidateRiskParameters(seq *domain.Sequence, newVolume float64, account domain.AccountSnapshot) domain.ValidationResult {
	if seq.LastPosition != nil {
		riskPerTrade := newVolume * seq.LastPosition.EntryPrice * v.cfg.RiskFraction
		maxRisk := account.Balance * v.cfg.MaxRiskPerTradePct
		if riskPerTrade > maxRisk {
			return domain.Reject(fmt.Sprintf("risk per trade (%.2f) exceeds maximum allowed (%.2f)", riskPerTrade, maxRisk))
		}
	}

	totalRisk := 0.0
	for _, pos := range seq.Positions {
		totalRisk += pos.Volume * pos.EntryPrice * v.cfg.RiskFraction
	}
	maxTotal := account.Balance * v.cfg.MaxTotalRiskPct
	if totalRisk > maxTotal {
		return domain.Reject(fmt.Sprintf("total risk exposure (%.2f) exceeds maximum allowed (%.2f)", totalRisk, maxTotal))
	}

	return domain.Accept("risk parameters ok")
}

// ValidateMarketConditions checks trading mode, spread, volume, volatility and
// recent activity for the symbol.
func (v *TradingValidator) ValidateMarketConditions(ctx context.Context, symbol string) domain.ValidationResult {
	info, err := v.gateway.SymbolInfo(ctx, symbol)
	if err != nil {
		return domain.Reject(fmt.Sprintf("invalid symbol %s: %v", symbol, err))
	}
	if info.TradeMode != domain.TradeModeFull {
		return domain.Reject("market is closed or not available for trading")
	}

	tick, err := v.gateway.CurrentTick(ctx, symbol)
	if err != nil {
		return domain.Reject(fmt.Sprintf("unable to get current market data: %v", err))
	}

	if tick.Bid > 0 {
		spreadPercent := tick.Spread() / tick.Bid * 100
		if spreadPercent > v.cfg.MaxSpreadPercent {
			return domain.Reject(fmt.Sprintf("spread (%.3f%%) exceeds maximum allowed (%.3f%%)", spreadPercent, v.cfg.MaxSpreadPercent))
		}
	}

	if tick.Volume < v.cfg.MinTickVolume {
		return domain.Reject(fmt.Sprintf("volume (%d) below minimum required (%d)", tick.Volume, v.cfg.MinTickVolume))
	}

	volatility := v.volatility(ctx, symbol)
	if volatility > v.cfg.VolatilityThreshold {
		return domain.Reject(fmt.Sprintf("market volatility (%.4f) exceeds threshold (%.4f)", volatility, v.cfg.VolatilityThreshold))
	}

	activity, err := v.gateway.TickCount(ctx, symbol, v.now().Add(-time.Hour))
	if err == nil && activity < v.cfg.MinHourlyActivity {
		return domain.Reject(fmt.Sprintf("market activity (%d) below minimum required (%d)", activity, v.cfg.MinHourlyActivity))
	}

	return domain.Accept("market conditions ok")
}

// ValidatePositionCorrelation rejects entries whose symbol tracks another
// symbol already held elsewhere in the account.
func (v *TradingValidator) ValidatePositionCorrelation(ctx context.Context, symbol string, seq *domain.Sequence) domain.ValidationResult {
	if seq.Empty() {
		return domain.Accept("no existing positions to check correlation")
	}

	open, err := v.gateway.OpenPositions(ctx, "")
	if err != nil || len(open) == 0 {
		return domain.Accept("no positions to check correlation")
	}

	others := make(map[string]struct{})
	for _, pos := range open {
		if pos.Symbol != symbol {
			others[pos.Symbol] = struct{}{}
		}
	}
	if len(others) == 0 {
		return domain.Accept("no other symbols held")
	}

	correlation := v.maxCorrelation(ctx, symbol, others)
	if correlation > v.cfg.MaxCorrelation {
		return domain.Reject(fmt.Sprintf("high correlation (%.2f) with existing positions", correlation))
	}

	return domain.Accept("position correlation ok")
}

// ValidateAdvancedRisk checks daily trade count, per-symbol concentration,
// realized risk-reward and the running sequence loss.
func (v *TradingValidator) ValidateAdvancedRisk(ctx context.Context, symbol string, seq *domain.Sequence, account domain.AccountSnapshot) domain.ValidationResult {
	dailyTrades := v.dailyTradeCount(ctx)
	if dailyTrades >= v.cfg.MaxDailyTrades {
		return domain.Reject(fmt.Sprintf("maximum daily trades (%d) reached", v.cfg.MaxDailyTrades))
	}

	symbolPositions := 0
	for _, pos := range seq.Positions {
		if pos.Symbol == symbol {
			symbolPositions++
		}
	}
	if symbolPositions >= v.cfg.MaxPositionsPerSymbol {
		return domain.Reject(fmt.Sprintf("maximum positions (%d) for %s reached", v.cfg.MaxPositionsPerSymbol, symbol))
	}

	if !seq.Empty() {
		rr := v.riskRewardRatio(ctx, seq)
		if rr < v.cfg.MinRiskRewardRatio {
			return domain.Reject(fmt.Sprintf("risk/reward ratio (%.2f) below minimum (%.2f)", rr, v.cfg.MinRiskRewardRatio))
		}
	}

	if seq.Profit < -(account.Balance * v.cfg.MaxSequenceLossPct) {
		return domain.Reject("sequence loss exceeds maximum allowed")
	}

	return domain.Accept("advanced risk ok")
}

// dailyDrawdown reconstructs today's realized drawdown: the day's closed PnL
// against the balance the day started with.
func (v *TradingValidator) dailyDrawdown(ctx context.Context, account domain.AccountSnapshot) float64 {
	now := v.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	deals, err := v.gateway.HistoricalDeals(ctx, dayStart, now, "")
	if err != nil || len(deals) == 0 {
		return 0
	}

	dailyPnL := 0.0
	for _, deal := range deals {
		dailyPnL += deal.Profit
	}

	startingBalance := account.Balance - dailyPnL
	if startingBalance == 0 {
		return 0
	}
	return math.Abs(dailyPnL / startingBalance * 100)
}

// volatility is the standard deviation of one-minute log returns over the
// configured lookback.
func (v *TradingValidator) volatility(ctx context.Context, symbol string) float64 {
	closes, err := v.gateway.ClosePrices(ctx, symbol, v.cfg.VolatilityBars)
	if err != nil || len(closes) < v.cfg.VolatilityBars {
		return 0
	}
	returns := logReturns(closes)
	return stdDev(returns)
}

func (v *TradingValidator) maxCorrelation(ctx context.Context, symbol string, others map[string]struct{}) float64 {
	base, err := v.gateway.ClosePrices(ctx, symbol, v.cfg.CorrelationBars)
	if err != nil {
		return 0
	}
	baseReturns := logReturns(base)

	max := 0.0
	for other := range others {
		closes, err := v.gateway.ClosePrices(ctx, other, v.cfg.CorrelationBars)
		if err != nil {
			continue
		}
		otherReturns := logReturns(closes)
		if len(otherReturns) != len(baseReturns) {
			continue
		}
		c := math.Abs(correlation(baseReturns, otherReturns))
		if c > max {
			max = c
		}
	}
	return max
}

func (v *TradingValidator) dailyTradeCount(ctx context.Context) int {
	now := v.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	deals, err := v.gateway.HistoricalDeals(ctx, dayStart, now, "")
	if err != nil {
		return 0
	}
	return len(deals)
}

// riskRewardRatio compares the unrealized reward against the adverse distance
// between the volume-weighted entry and the worst entry in the chain.
func (v *TradingValidator) riskRewardRatio(ctx context.Context, seq *domain.Sequence) float64 {
	if seq.Empty() || seq.Volume == 0 {
		return 0
	}

	weighted := 0.0
	minEntry := seq.Positions[0].EntryPrice
	maxEntry := seq.Positions[0].EntryPrice
	for _, pos := range seq.Positions {
		weighted += pos.EntryPrice * pos.Volume
		if pos.EntryPrice < minEntry {
			minEntry = pos.EntryPrice
		}
		if pos.EntryPrice > maxEntry {
			maxEntry = pos.EntryPrice
		}
	}
	avgEntry := weighted / seq.Volume

	tick, err := v.gateway.CurrentTick(ctx, seq.Symbol)
	if err != nil {
		return 0
	}

	var reward, risk float64
	if seq.Side == domain.SideBuy {
		reward = tick.Bid - avgEntry
		risk = avgEntry - minEntry
	} else {
		reward = avgEntry - tick.Ask
		risk = maxEntry - avgEntry
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}

func isStepMultiple(volume, step float64) bool {
	if step <= 0 {
		return false
	}
	ratio := volume / step
	return math.Abs(ratio-math.Round(ratio)) < 1e-6
}

func logReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	return returns
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	n := float64(len(a))
	meanA, meanB := 0.0, 0.0
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
