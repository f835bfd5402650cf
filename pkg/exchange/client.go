// Package exchange is a REST and WebSocket client for the crypto exchange.
// It mirrors the exchange's routes, signed-request handling, session login,
// and the endpoint methods the trader needs: exchange info, klines, book
// ticker, order placement and cancellation.
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"trident/internal/model"
)

// Config holds client credentials and endpoints.
type Config struct {
	APIKey     string
	APISecret  string
	TOTPSecret string // optional, for session-based endpoints

	BaseURL string
	Timeout time.Duration // default: 7s
	Debug   bool
}

// Client is a signed REST client for the exchange.
type Client struct {
	apiKey     string
	apiSecret  string
	totpSecret string

	baseURL      string
	debug        bool
	httpClient   *http.Client
	sessionToken string
}

var routes = map[string]string{
	"api.session.login": "/api/v1/session/login",
	"api.exchange.info": "/api/v1/exchangeInfo",
	"api.klines":        "/api/v1/klines",
	"api.ticker.book":   "/api/v1/ticker/bookTicker",
	"api.order.place":   "/api/v1/order",
	"api.order.cancel":  "/api/v1/openOrders",
	"api.order.status":  "/api/v1/order/status",
}

// NewClient initializes the REST client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		totpSecret: cfg.TOTPSecret,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		debug:      cfg.Debug,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// sign produces the HMAC-SHA256 signature over the query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) buildURL(route string) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	return c.baseURL + uri, nil
}

// doRequest sends a signed request. Params are encoded as the query string
// for GET/DELETE and as a form body for POST.
func (c *Client) doRequest(ctx context.Context, method, route string, params url.Values) ([]byte, int, error) {
	fullURL, err := c.buildURL(route)
	if err != nil {
		return nil, 0, err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + c.sign(query)

	var body io.Reader
	reqURL := fullURL
	if method == http.MethodGet || method == http.MethodDelete {
		reqURL += "?" + query
	} else {
		body = strings.NewReader(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if c.debug {
		log.Printf("[exchange] %s %s", method, reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Msg != "" {
			return raw, resp.StatusCode, fmt.Errorf("exchange error %d: %s", apiErr.Code, apiErr.Msg)
		}
		return raw, resp.StatusCode, fmt.Errorf("exchange HTTP %d: %s", resp.StatusCode, string(raw))
	}

	return raw, resp.StatusCode, nil
}

// Login performs the session login using a freshly generated TOTP code.
// The returned session token is attached to subsequent requests. No-op if
// no TOTP secret is configured.
func (c *Client) Login(ctx context.Context) error {
	if c.totpSecret == "" {
		return nil
	}

	code, err := totp.GenerateCode(c.totpSecret, time.Now())
	if err != nil {
		return fmt.Errorf("generate totp: %w", err)
	}

	params := url.Values{}
	params.Set("totp", code)

	raw, _, err := c.doRequest(ctx, http.MethodPost, "api.session.login", params)
	if err != nil {
		return fmt.Errorf("session login: %w", err)
	}

	var res struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if res.SessionToken == "" {
		return errors.New("login succeeded but no session token returned")
	}
	c.sessionToken = res.SessionToken

	log.Println("[exchange] session established")
	return nil
}

// TradingRules fetches the symbol's lot size and price filters.
func (c *Client) TradingRules(ctx context.Context, symbol string) (model.TradingRules, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	raw, _, err := c.doRequest(ctx, http.MethodGet, "api.exchange.info", params)
	if err != nil {
		return model.TradingRules{}, err
	}

	var res struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				MinQty     string `json:"minQty"`
				StepSize   string `json:"stepSize"`
				MinPrice   string `json:"minPrice"`
				TickSize   string `json:"tickSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return model.TradingRules{}, fmt.Errorf("parse exchange info: %w", err)
	}

	var rules model.TradingRules
	for _, s := range res.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				rules.MinQty = parseFloat(f.MinQty)
				rules.StepSize = parseFloat(f.StepSize)
			case "PRICE_FILTER":
				rules.MinPrice = parseFloat(f.MinPrice)
				rules.TickSize = parseFloat(f.TickSize)
			}
		}
		return rules, nil
	}
	return model.TradingRules{}, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

// Klines downloads historical bars. startTS filters to bars with open time
// strictly after the given Unix timestamp (0 = from the beginning).
func (c *Client) Klines(ctx context.Context, symbol string, intervalSec int, startTS int64, limit int) ([]model.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", intervalName(intervalSec))
	params.Set("limit", strconv.Itoa(limit))
	if startTS > 0 {
		// exchange expects milliseconds, exclusive of startTime itself
		params.Set("startTime", strconv.FormatInt((startTS+1)*1000, 10))
	}

	raw, _, err := c.doRequest(ctx, http.MethodGet, "api.klines", params)
	if err != nil {
		return nil, err
	}

	// Klines come back as arrays: [openTime, open, high, low, close, volume, closeTime, ..., trades, ...]
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}

	bars := make([]model.Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 9 {
			continue
		}
		var openTime int64
		var o, h, l, cl, v string
		var trades int
		json.Unmarshal(row[0], &openTime)
		json.Unmarshal(row[1], &o)
		json.Unmarshal(row[2], &h)
		json.Unmarshal(row[3], &l)
		json.Unmarshal(row[4], &cl)
		json.Unmarshal(row[5], &v)
		json.Unmarshal(row[8], &trades)

		bars = append(bars, model.Bar{
			Symbol:   symbol,
			Interval: intervalSec,
			TS:       time.Unix(openTime/1000, 0).UTC(),
			Open:     parseFloat(o),
			High:     parseFloat(h),
			Low:      parseFloat(l),
			Close:    parseFloat(cl),
			Volume:   parseFloat(v),
			Trades:   trades,
		})
	}
	return bars, nil
}

// BookTicker returns the current best bid/ask for a symbol.
func (c *Client) BookTicker(ctx context.Context, symbol string) (model.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	raw, _, err := c.doRequest(ctx, http.MethodGet, "api.ticker.book", params)
	if err != nil {
		return model.Quote{}, err
	}

	var res struct {
		Symbol   string `json:"symbol"`
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return model.Quote{}, fmt.Errorf("parse book ticker: %w", err)
	}

	return model.Quote{
		Symbol: res.Symbol,
		Bid:    parseFloat(res.BidPrice),
		Ask:    parseFloat(res.AskPrice),
		TS:     time.Now().UTC(),
	}, nil
}

// PlaceOrder submits an order and returns the exchange order ID.
func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", strconv.FormatFloat(req.Qty, 'f', -1, 64))
	if req.Type == model.OrderLimit {
		params.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
		params.Set("timeInForce", "GTC")
	}

	raw, _, err := c.doRequest(ctx, http.MethodPost, "api.order.place", params)
	if err != nil {
		return "", err
	}

	var res struct {
		OrderID int64 `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("parse order response: %w", err)
	}
	return strconv.FormatInt(res.OrderID, 10), nil
}

// CancelAllOrders cancels every open order for the symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	_, status, err := c.doRequest(ctx, http.MethodDelete, "api.order.cancel", params)
	if err != nil {
		// "no open orders" is not a failure
		if status == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

// OrderStatus describes the state of a previously placed order.
type OrderStatus struct {
	OrderID     string
	Status      string // NEW, PARTIALLY_FILLED, FILLED, CANCELED
	ExecutedQty float64
	AvgPrice    float64
}

// GetOrderStatus fetches the current state of an order.
func (c *Client) GetOrderStatus(ctx context.Context, symbol, orderID string) (OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	raw, _, err := c.doRequest(ctx, http.MethodGet, "api.order.status", params)
	if err != nil {
		return OrderStatus{}, err
	}

	var res struct {
		OrderID     int64  `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
		AvgPrice    string `json:"avgPrice"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return OrderStatus{}, fmt.Errorf("parse order status: %w", err)
	}

	return OrderStatus{
		OrderID:     strconv.FormatInt(res.OrderID, 10),
		Status:      res.Status,
		ExecutedQty: parseFloat(res.ExecutedQty),
		AvgPrice:    parseFloat(res.AvgPrice),
	}, nil
}

// intervalName maps an interval in seconds to the exchange's interval string.
func intervalName(sec int) string {
	switch {
	case sec >= 86400 && sec%86400 == 0:
		return strconv.Itoa(sec/86400) + "d"
	case sec >= 3600 && sec%3600 == 0:
		return strconv.Itoa(sec/3600) + "h"
	case sec >= 60 && sec%60 == 0:
		return strconv.Itoa(sec/60) + "m"
	default:
		return strconv.Itoa(sec) + "s"
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
