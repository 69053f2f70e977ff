package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HyperliquidConfig holds the credentials and endpoint for the production
// client.
type HyperliquidConfig struct {
	PrivateKey string
	BaseURL    string // e.g. https://api.hyperliquid.xyz
}

// Hyperliquid is the production Port implementation. It signs every
// state-changing request with the configured private key and treats a
// 10s read / 20s write timeout as the implementation-provided ceiling the
// caller's own cancellation rides on top of.
type Hyperliquid struct {
	cfg        HyperliquidConfig
	baseURL    string
	httpClient *http.Client
}

// NewHyperliquid builds a production venue client.
func NewHyperliquid(cfg HyperliquidConfig) *Hyperliquid {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.hyperliquid.xyz"
	}
	return &Hyperliquid{
		cfg:        cfg,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (h *Hyperliquid) UserRole(ctx context.Context, addr string) (RoleInfo, error) {
	var resp struct {
		Role       string `json:"role"`
		MasterAddr string `json:"masterAddr"`
	}
	if err := h.doInfo(ctx, map[string]any{"type": "userRole", "user": addr}, &resp); err != nil {
		return RoleInfo{}, err
	}
	switch resp.Role {
	case "master":
		return RoleInfo{Role: RoleMaster}, nil
	case "agent":
		return RoleInfo{Role: RoleAgent, MasterAddr: resp.MasterAddr}, nil
	default:
		return RoleInfo{Role: RoleUnknown}, nil
	}
}

func (h *Hyperliquid) ClearinghouseState(ctx context.Context, addr string) (ClearinghouseState, error) {
	var resp struct {
		MarginSummary struct {
			AccountValue decimal.Decimal `json:"accountValue"`
			TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
		} `json:"marginSummary"`
		AssetPositions []struct {
			Position struct {
				Coin    string          `json:"coin"`
				Szi     decimal.Decimal `json:"szi"`
				EntryPx decimal.Decimal `json:"entryPx"`
			} `json:"position"`
		} `json:"assetPositions"`
	}
	if err := h.doInfo(ctx, map[string]any{"type": "clearinghouseState", "user": addr}, &resp); err != nil {
		return ClearinghouseState{}, err
	}

	state := ClearinghouseState{
		PerpEquity: resp.MarginSummary.AccountValue,
		MarginUsed: resp.MarginSummary.TotalMarginUsed,
	}
	for _, ap := range resp.AssetPositions {
		if ap.Position.Szi.IsZero() {
			continue
		}
		state.Positions = append(state.Positions, Position{
			Symbol:  ap.Position.Coin,
			Size:    ap.Position.Szi,
			EntryPx: ap.Position.EntryPx,
		})
	}
	return state, nil
}

func (h *Hyperliquid) SpotState(ctx context.Context, addr string) (SpotState, error) {
	var resp struct {
		Balances []struct {
			Coin  string          `json:"coin"`
			Total decimal.Decimal `json:"total"`
			Hold  decimal.Decimal `json:"hold"`
		} `json:"balances"`
	}
	if err := h.doInfo(ctx, map[string]any{"type": "spotClearinghouseState", "user": addr}, &resp); err != nil {
		return SpotState{}, err
	}
	state := SpotState{}
	for _, b := range resp.Balances {
		state.Balances = append(state.Balances, SpotBalance{Asset: b.Coin, Total: b.Total, Hold: b.Hold})
	}
	return state, nil
}

func (h *Hyperliquid) SymbolMeta(ctx context.Context) (map[string]SymbolMeta, error) {
	var resp struct {
		Universe []struct {
			Name       string `json:"name"`
			SzDecimals int32  `json:"szDecimals"`
		} `json:"universe"`
	}
	if err := h.doInfo(ctx, map[string]any{"type": "meta"}, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]SymbolMeta, len(resp.Universe))
	for _, u := range resp.Universe {
		out[u.Name] = SymbolMeta{
			Symbol:     u.Name,
			SzDecimals: u.SzDecimals,
			TickSize:   tickSizeForSzDecimals(u.SzDecimals),
		}
	}
	return out, nil
}

// tickSizeForSzDecimals mirrors the venue's convention of deriving price
// precision from size precision: MAX_DECIMALS (6 for perps) minus
// szDecimals gives the number of price decimals.
func tickSizeForSzDecimals(szDecimals int32) decimal.Decimal {
	priceDecimals := 6 - szDecimals
	if priceDecimals < 0 {
		priceDecimals = 0
	}
	return decimal.New(1, -priceDecimals)
}

func (h *Hyperliquid) MarketOpen(ctx context.Context, symbol string, side Side, size decimal.Decimal) (Result, error) {
	return h.placeOrder(ctx, orderRequest{
		symbol: symbol, side: side, size: size,
		isMarket: true, reduceOnly: false,
	})
}

func (h *Hyperliquid) MarketClose(ctx context.Context, symbol string) (Result, error) {
	var resp struct {
		Status   string `json:"status"`
		Response struct {
			Data struct {
				Statuses []orderStatusWire `json:"statuses"`
			} `json:"data"`
		} `json:"response"`
	}
	payload := map[string]any{
		"action": map[string]any{
			"type": "marketClose",
			"coin": symbol,
		},
		"nonce": time.Now().UnixMilli(),
	}
	if err := h.doExchange(ctx, payload, &resp); err != nil {
		return Result{}, err
	}
	if len(resp.Response.Data.Statuses) == 0 {
		return Null(), nil
	}
	return wireToResult(resp.Response.Data.Statuses[0]), nil
}

func (h *Hyperliquid) LimitOrder(ctx context.Context, symbol string, side Side, size, px decimal.Decimal, tif TimeInForce) (Result, error) {
	return h.placeOrder(ctx, orderRequest{
		symbol: symbol, side: side, size: size, px: px, tif: tif,
		isMarket: false, reduceOnly: false,
	})
}

func (h *Hyperliquid) TriggerOrder(ctx context.Context, symbol string, side Side, size, triggerPx decimal.Decimal, isMarket, reduceOnly bool, kind TPSLKind) (Result, error) {
	return h.placeOrder(ctx, orderRequest{
		symbol: symbol, side: side, size: size, px: triggerPx,
		isMarket: isMarket, reduceOnly: reduceOnly, isTrigger: true, tpsl: kind,
	})
}

type orderRequest struct {
	symbol     string
	side       Side
	size       decimal.Decimal
	px         decimal.Decimal
	tif        TimeInForce
	isMarket   bool
	reduceOnly bool
	isTrigger  bool
	tpsl       TPSLKind
}

func (h *Hyperliquid) placeOrder(ctx context.Context, r orderRequest) (Result, error) {
	isBuy := r.side == Buy

	orderType := map[string]any{}
	if r.isTrigger {
		orderType["trigger"] = map[string]any{
			"triggerPx": r.px.String(),
			"isMarket":  r.isMarket,
			"tpsl":      string(r.tpsl),
		}
	} else if r.isMarket {
		orderType["limit"] = map[string]any{"tif": "Ioc"}
	} else {
		tif := "Gtc"
		if r.tif == TIFIOC {
			tif = "Ioc"
		}
		orderType["limit"] = map[string]any{"tif": tif}
	}

	wireOrder := map[string]any{
		"a": r.symbol,
		"b": isBuy,
		"s": r.size.String(),
		"r": r.reduceOnly,
		"t": orderType,
	}
	if !r.px.IsZero() {
		wireOrder["p"] = r.px.String()
	}

	payload := map[string]any{
		"action": map[string]any{
			"type":     "order",
			"orders":   []any{wireOrder},
			"grouping": "na",
		},
		"nonce": time.Now().UnixMilli(),
	}

	var resp struct {
		Status   string `json:"status"`
		Response struct {
			Data struct {
				Statuses []orderStatusWire `json:"statuses"`
			} `json:"data"`
		} `json:"response"`
	}
	if err := h.doExchange(ctx, payload, &resp); err != nil {
		return Result{}, err
	}
	if len(resp.Response.Data.Statuses) == 0 {
		return Rejected("no_status", "venue returned no order status"), nil
	}
	return wireToResult(resp.Response.Data.Statuses[0]), nil
}

type orderStatusWire struct {
	Filled *struct {
		OID      int64           `json:"oid"`
		AvgPx    decimal.Decimal `json:"avgPx"`
		TotalSz  decimal.Decimal `json:"totalSz"`
	} `json:"filled"`
	Resting *struct {
		OID int64 `json:"oid"`
	} `json:"resting"`
	Error string `json:"error"`
}

func wireToResult(s orderStatusWire) Result {
	switch {
	case s.Filled != nil:
		return Filled(fmt.Sprintf("%d", s.Filled.OID), s.Filled.AvgPx, s.Filled.TotalSz)
	case s.Resting != nil:
		return Resting(fmt.Sprintf("%d", s.Resting.OID))
	case s.Error != "":
		return Rejected("venue_error", s.Error)
	default:
		return Rejected("unknown", "unrecognized order status shape")
	}
}

func (h *Hyperliquid) OpenOrders(ctx context.Context, addr string) ([]OpenOrder, error) {
	var wire []struct {
		OID       int64           `json:"oid"`
		Coin      string          `json:"coin"`
		Side      string          `json:"side"`
		Sz        decimal.Decimal `json:"sz"`
		LimitPx   decimal.Decimal `json:"limitPx"`
		IsTrigger bool            `json:"isTrigger"`
	}
	if err := h.doInfo(ctx, map[string]any{"type": "openOrders", "user": addr}, &wire); err != nil {
		return nil, err
	}
	out := make([]OpenOrder, 0, len(wire))
	for _, o := range wire {
		side := Buy
		if strings.EqualFold(o.Side, "A") || strings.EqualFold(o.Side, "sell") {
			side = Sell
		}
		out = append(out, OpenOrder{
			OrderID: fmt.Sprintf("%d", o.OID), Symbol: o.Coin, Side: side,
			Size: o.Sz, Price: o.LimitPx, IsTrigger: o.IsTrigger,
		})
	}
	return out, nil
}

func (h *Hyperliquid) OrderHistory(ctx context.Context, addr string) ([]HistoryOrder, error) {
	var wire []struct {
		Order struct {
			OID     int64           `json:"oid"`
			Coin    string          `json:"coin"`
			Side    string          `json:"side"`
			Sz      decimal.Decimal `json:"sz"`
			AvgPx   decimal.Decimal `json:"avgPx"`
			Status  string          `json:"status"`
			Time    int64           `json:"time"`
		} `json:"order"`
	}
	if err := h.doInfo(ctx, map[string]any{"type": "historicalOrders", "user": addr}, &wire); err != nil {
		return nil, err
	}
	out := make([]HistoryOrder, 0, len(wire))
	for _, o := range wire {
		side := Buy
		if strings.EqualFold(o.Order.Side, "A") || strings.EqualFold(o.Order.Side, "sell") {
			side = Sell
		}
		out = append(out, HistoryOrder{
			OrderID: fmt.Sprintf("%d", o.Order.OID), Symbol: o.Order.Coin, Side: side,
			Size: o.Order.Sz, AvgPx: o.Order.AvgPx, Status: o.Order.Status,
			Timestamp: time.UnixMilli(o.Order.Time),
		})
	}
	return out, nil
}

// doInfo issues an unsigned POST to /info; these are read-only queries.
func (h *Hyperliquid) doInfo(ctx context.Context, body any, out any) error {
	return h.doJSON(ctx, "/info", body, out, 10*time.Second)
}

// doExchange issues a signed POST to /exchange for state-changing actions.
func (h *Hyperliquid) doExchange(ctx context.Context, body any, out any) error {
	signed := h.signPayload(body)
	return h.doJSON(ctx, "/exchange", signed, out, 20*time.Second)
}

func (h *Hyperliquid) signPayload(body any) map[string]any {
	raw, _ := json.Marshal(body)
	sig := sign(string(raw), h.cfg.PrivateKey)
	m, _ := body.(map[string]any)
	out := map[string]any{}
	for k, v := range m {
		out[k] = v
	}
	out["signature"] = sig
	return out
}

func (h *Hyperliquid) doJSON(ctx context.Context, path string, body any, out any, timeout time.Duration) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode venue request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, h.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("venue request to %s: %w", path, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read venue response: %w", err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("venue %s returned %d: %s", path, res.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode venue response from %s: %w", path, err)
	}
	return nil
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
