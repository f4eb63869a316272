package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vitos/fx_sequence_trader/internal/domain"
)

const DefaultBridgeURL = "ws://127.0.0.1:8765"

// MT5Bridge talks to the terminal-side bridge process over a websocket. Each
// call is a JSON request/response pair correlated by a uuid; the bridge
// executes it against the logged-in terminal session and replies with either a
// result payload or an error string.
//
// Calls are serialized on one connection. The engine is single-threaded per
// account so there is no benefit to pipelining, and serialization keeps
// request/response matching trivial.
type MT5Bridge struct {
	url     string
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

type bridgeRequest struct {
	ID     string                 `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

type bridgeResponse struct {
	ID     string          `json:"id"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

func NewMT5Bridge(url string) *MT5Bridge {
	if url == "" {
		url = DefaultBridgeURL
	}
	return &MT5Bridge{
		url:     url,
		timeout: 10 * time.Second,
	}
}

// Connect dials the bridge. Call once before use; call() redials after a
// dropped connection.
func (b *MT5Bridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dial()
}

func (b *MT5Bridge) dial() error {
	c, _, err := websocket.DefaultDialer.Dial(b.url, nil)
	if err != nil {
		return fmt.Errorf("bridge dial %s: %w", b.url, err)
	}
	b.conn = c
	return nil
}

func (b *MT5Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *MT5Bridge) call(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		if err := b.dial(); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(b.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	b.conn.SetWriteDeadline(deadline)
	b.conn.SetReadDeadline(deadline)

	req := bridgeRequest{
		ID:     uuid.NewString(),
		Method: method,
		Params: params,
	}
	if err := b.conn.WriteJSON(req); err != nil {
		b.conn.Close()
		b.conn = nil
		return fmt.Errorf("bridge write %s: %w", method, err)
	}

	// Responses arrive in order, but a previous call that timed out may have
	// left its reply in the stream. Skip anything that is not ours.
	for {
		var resp bridgeResponse
		if err := b.conn.ReadJSON(&resp); err != nil {
			b.conn.Close()
			b.conn = nil
			return fmt.Errorf("bridge read %s: %w", method, err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != "" {
			return fmt.Errorf("bridge %s: %s", method, resp.Error)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	}
}

func (b *MT5Bridge) CurrentTick(ctx context.Context, symbol string) (domain.Tick, error) {
	var raw struct {
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
		TimeMs int64   `json:"time_msc"`
		Volume int64   `json:"volume"`
	}
	err := b.call(ctx, "tick", map[string]interface{}{"symbol": symbol}, &raw)
	if err != nil {
		return domain.Tick{}, err
	}
	return domain.Tick{
		Bid:    raw.Bid,
		Ask:    raw.Ask,
		Time:   time.UnixMilli(raw.TimeMs).UTC(),
		Volume: raw.Volume,
	}, nil
}

func (b *MT5Bridge) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	var raw struct {
		Name       string  `json:"name"`
		Point      float64 `json:"point"`
		VolumeMin  float64 `json:"volume_min"`
		VolumeMax  float64 `json:"volume_max"`
		VolumeStep float64 `json:"volume_step"`
		StopsLevel int     `json:"trade_stops_level"`
		TradeMode  int     `json:"trade_mode"`
	}
	err := b.call(ctx, "symbol_info", map[string]interface{}{"symbol": symbol}, &raw)
	if err != nil {
		return domain.SymbolInfo{}, err
	}
	return domain.SymbolInfo{
		Name:       raw.Name,
		Point:      raw.Point,
		VolumeMin:  raw.VolumeMin,
		VolumeMax:  raw.VolumeMax,
		VolumeStep: raw.VolumeStep,
		StopsLevel: raw.StopsLevel,
		TradeMode:  tradeModeFromBridge(raw.TradeMode),
	}, nil
}

// Terminal trade_mode values: 0 disabled, 3 close-only, 4 full access. The
// in-between long-only/short-only modes map to close-only because the engine
// trades both directions.
func tradeModeFromBridge(mode int) domain.TradeMode {
	switch mode {
	case 0:
		return domain.TradeModeDisabled
	case 4:
		return domain.TradeModeFull
	default:
		return domain.TradeModeCloseOnly
	}
}

func (b *MT5Bridge) AccountInfo(ctx context.Context) (domain.AccountSnapshot, error) {
	var raw struct {
		Login    int64   `json:"login"`
		Currency string  `json:"currency"`
		Balance  float64 `json:"balance"`
		Equity   float64 `json:"equity"`
		Profit   float64 `json:"profit"`
	}
	err := b.call(ctx, "account_info", nil, &raw)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	return domain.AccountSnapshot{
		Login:          raw.Login,
		Currency:       raw.Currency,
		Balance:        raw.Balance,
		Equity:         raw.Equity,
		FloatingProfit: raw.Profit,
	}, nil
}

type bridgePosition struct {
	Ticket     int64   `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Type       int     `json:"type"` // 0 buy, 1 sell
	Volume     float64 `json:"volume"`
	PriceOpen  float64 `json:"price_open"`
	Profit     float64 `json:"profit"`
	SL         float64 `json:"sl"`
	TP         float64 `json:"tp"`
	Magic      int64   `json:"magic"`
	TimeMs     int64   `json:"time_msc"`
	Comment    string  `json:"comment"`
	SequenceID string  `json:"sequence_id"`
}

func (b *MT5Bridge) OpenPositions(ctx context.Context, symbol string) ([]domain.Position, error) {
	params := map[string]interface{}{}
	if symbol != "" {
		params["symbol"] = symbol
	}
	var raw []bridgePosition
	if err := b.call(ctx, "positions", params, &raw); err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		side := domain.SideBuy
		if p.Type == 1 {
			side = domain.SideSell
		}
		positions = append(positions, domain.Position{
			Ticket:     p.Ticket,
			Symbol:     p.Symbol,
			Side:       side,
			Volume:     p.Volume,
			EntryPrice: p.PriceOpen,
			Profit:     p.Profit,
			StopLoss:   p.SL,
			TakeProfit: p.TP,
			Magic:      p.Magic,
			EntryTime:  time.UnixMilli(p.TimeMs).UTC(),
			SequenceID: sequenceIDFrom(p.SequenceID, p.Comment),
			Comment:    p.Comment,
		})
	}
	return positions, nil
}

// sequenceIDFrom prefers the bridge's explicit tag and falls back to the
// broker comment, where older bridge versions stored the 16-character id.
func sequenceIDFrom(tag, comment string) string {
	if tag != "" {
		return tag
	}
	if len(comment) == 16 {
		return comment
	}
	return ""
}

func (b *MT5Bridge) HistoricalDeals(ctx context.Context, from, to time.Time, symbol string) ([]domain.Deal, error) {
	params := map[string]interface{}{
		"from": from.UTC().Unix(),
		"to":   to.UTC().Unix(),
	}
	if symbol != "" {
		params["symbol"] = symbol
	}
	var raw []struct {
		Ticket int64   `json:"ticket"`
		Symbol string  `json:"symbol"`
		Profit float64 `json:"profit"`
		Volume float64 `json:"volume"`
		Entry  int     `json:"entry"` // 0 in, 1 out
		Magic  int64   `json:"magic"`
		TimeMs int64   `json:"time_msc"`
	}
	if err := b.call(ctx, "deals", params, &raw); err != nil {
		return nil, err
	}

	deals := make([]domain.Deal, 0, len(raw))
	for _, d := range raw {
		entry := domain.DealEntryIn
		if d.Entry == 1 {
			entry = domain.DealEntryOut
		}
		deals = append(deals, domain.Deal{
			Ticket: d.Ticket,
			Symbol: d.Symbol,
			Profit: d.Profit,
			Volume: d.Volume,
			Entry:  entry,
			Magic:  d.Magic,
			Time:   time.UnixMilli(d.TimeMs).UTC(),
		})
	}
	return deals, nil
}

func (b *MT5Bridge) HistoricalOrders(ctx context.Context, from, to time.Time, symbol string) ([]domain.HistoricalOrder, error) {
	params := map[string]interface{}{
		"from": from.UTC().Unix(),
		"to":   to.UTC().Unix(),
	}
	if symbol != "" {
		params["symbol"] = symbol
	}
	var raw []struct {
		Ticket     int64   `json:"ticket"`
		Symbol     string  `json:"symbol"`
		Type       int     `json:"type"`
		Volume     float64 `json:"volume_initial"`
		PriceOpen  float64 `json:"price_open"`
		TP         float64 `json:"tp"`
		Magic      int64   `json:"magic"`
		SetupMs    int64   `json:"time_setup_msc"`
		Comment    string  `json:"comment"`
		SequenceID string  `json:"sequence_id"`
	}
	if err := b.call(ctx, "orders", params, &raw); err != nil {
		return nil, err
	}

	orders := make([]domain.HistoricalOrder, 0, len(raw))
	for _, o := range raw {
		side := domain.SideBuy
		if o.Type == 1 {
			side = domain.SideSell
		}
		orders = append(orders, domain.HistoricalOrder{
			Ticket:     o.Ticket,
			Symbol:     o.Symbol,
			Side:       side,
			Volume:     o.Volume,
			EntryPrice: o.PriceOpen,
			TakeProfit: o.TP,
			Magic:      o.Magic,
			SetupTime:  time.UnixMilli(o.SetupMs).UTC(),
			SequenceID: sequenceIDFrom(o.SequenceID, o.Comment),
		})
	}
	return orders, nil
}

func (b *MT5Bridge) ClosePrices(ctx context.Context, symbol string, bars int) ([]float64, error) {
	var closes []float64
	err := b.call(ctx, "closes", map[string]interface{}{
		"symbol": symbol,
		"bars":   bars,
	}, &closes)
	if err != nil {
		return nil, err
	}
	return closes, nil
}

func (b *MT5Bridge) TickCount(ctx context.Context, symbol string, from time.Time) (int, error) {
	var count int
	err := b.call(ctx, "tick_count", map[string]interface{}{
		"symbol": symbol,
		"from":   from.UTC().Unix(),
	}, &count)
	return count, err
}

type bridgeOrderResult struct {
	Retcode int    `json:"retcode"`
	Order   int64  `json:"order"`
	Comment string `json:"comment"`
}

// Terminal retcode for a filled request.
const retcodeDone = 10009

func (r bridgeOrderResult) toDomain() domain.OrderResult {
	res := domain.OrderResult{
		OK:     r.Retcode == retcodeDone,
		Ticket: r.Order,
	}
	if !res.OK {
		res.Reason = fmt.Sprintf("retcode %d: %s", r.Retcode, r.Comment)
	}
	return res
}

func (b *MT5Bridge) SubmitMarketOrder(ctx context.Context, req domain.MarketOrderRequest) (domain.OrderResult, error) {
	orderType := 0
	if req.Side == domain.SideSell {
		orderType = 1
	}
	var raw bridgeOrderResult
	err := b.call(ctx, "order_send", map[string]interface{}{
		"action":  "deal",
		"symbol":  req.Symbol,
		"type":    orderType,
		"volume":  req.Volume,
		"price":   req.Price,
		"magic":   req.Magic,
		"tp":      req.TakeProfit,
		"comment": req.SequenceID,
	}, &raw)
	if err != nil {
		return domain.OrderResult{}, err
	}
	return raw.toDomain(), nil
}

func (b *MT5Bridge) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) (domain.OrderResult, error) {
	var raw bridgeOrderResult
	err := b.call(ctx, "order_send", map[string]interface{}{
		"action":   "sltp",
		"position": ticket,
		"sl":       stopLoss,
		"tp":       takeProfit,
	}, &raw)
	if err != nil {
		return domain.OrderResult{}, err
	}
	return raw.toDomain(), nil
}

func (b *MT5Bridge) ClosePosition(ctx context.Context, ticket int64, side domain.Side, volume, price float64) (domain.OrderResult, error) {
	// Closing submits a deal on the opposite side against the position.
	orderType := 0
	if side == domain.SideSell {
		orderType = 1
	}
	var raw bridgeOrderResult
	err := b.call(ctx, "order_send", map[string]interface{}{
		"action":   "deal",
		"position": ticket,
		"type":     orderType,
		"volume":   volume,
		"price":    price,
	}, &raw)
	if err != nil {
		return domain.OrderResult{}, err
	}
	return raw.toDomain(), nil
}
