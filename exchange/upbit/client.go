// Package upbit implements the exchange gateway against the Upbit REST API.
//
// Public market data endpoints (/v1/ticker, /v1/candles/days, /v1/orderbook)
// are unauthenticated. Account and order endpoints require a JWT bearer
// token signed with the account secret; requests that carry parameters also
// embed a SHA512 hash of the encoded query.
package upbit

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/evdnx/govb/types"
)

const defaultBaseURL = "https://api.upbit.com"

type Client struct {
	baseURL   string
	accessKey string
	secretKey string
	http      *http.Client
}

func New(baseURL, accessKey, secretKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// ---------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------

type tickerResp struct {
	Market     string  `json:"market"`
	TradePrice float64 `json:"trade_price"`
}

func (c *Client) CurrentPrices(tickers []string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("markets", strings.Join(tickers, ","))

	var out []tickerResp
	if err := c.get("/v1/ticker", params, false, &out); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(out))
	for _, t := range out {
		prices[t.Market] = t.TradePrice
	}
	return prices, nil
}

type candleResp struct {
	OpeningPrice   float64 `json:"opening_price"`
	HighPrice      float64 `json:"high_price"`
	LowPrice       float64 `json:"low_price"`
	TradePrice     float64 `json:"trade_price"`
	AccTradeVolume float64 `json:"candle_acc_trade_volume"`
}

// DayCandles returns daily bars oldest-first. The API sends newest-first,
// so the slice is reversed before returning.
func (c *Client) DayCandles(ticker string, count int) ([]types.Candle, error) {
	params := url.Values{}
	params.Set("market", ticker)
	params.Set("count", strconv.Itoa(count))

	var out []candleResp
	if err := c.get("/v1/candles/days", params, false, &out); err != nil {
		return nil, err
	}
	candles := make([]types.Candle, len(out))
	for i, cr := range out {
		candles[len(out)-1-i] = types.Candle{
			Open:   cr.OpeningPrice,
			High:   cr.HighPrice,
			Low:    cr.LowPrice,
			Close:  cr.TradePrice,
			Volume: cr.AccTradeVolume,
		}
	}
	return candles, nil
}

type orderbookResp struct {
	OrderbookUnits []struct {
		BidPrice float64 `json:"bid_price"`
		BidSize  float64 `json:"bid_size"`
	} `json:"orderbook_units"`
}

func (c *Client) OrderBookTop(ticker string) (types.OrderBookLevel, error) {
	params := url.Values{}
	params.Set("markets", ticker)

	var out []orderbookResp
	if err := c.get("/v1/orderbook", params, false, &out); err != nil {
		return types.OrderBookLevel{}, err
	}
	if len(out) == 0 || len(out[0].OrderbookUnits) == 0 {
		return types.OrderBookLevel{}, fmt.Errorf("upbit: empty order book for %s", ticker)
	}
	top := out[0].OrderbookUnits[0]
	return types.OrderBookLevel{BidPrice: top.BidPrice, BidSize: top.BidSize}, nil
}

// ---------------------------------------------------------------------
// Account & orders (authenticated)
// ---------------------------------------------------------------------

type accountResp struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

func (c *Client) Balances() ([]types.Balance, error) {
	var out []accountResp
	if err := c.get("/v1/accounts", nil, true, &out); err != nil {
		return nil, err
	}
	balances := make([]types.Balance, 0, len(out))
	for _, a := range out {
		amount, err := strconv.ParseFloat(a.Balance, 64)
		if err != nil {
			return nil, fmt.Errorf("upbit: bad balance %q for %s: %w", a.Balance, a.Currency, err)
		}
		balances = append(balances, types.Balance{Currency: a.Currency, Amount: amount})
	}
	return balances, nil
}

// MarketBuy spends krwAmount at market (ord_type "price": quote-funded buy).
func (c *Client) MarketBuy(ticker string, krwAmount float64) error {
	params := url.Values{}
	params.Set("market", ticker)
	params.Set("side", "bid")
	params.Set("ord_type", "price")
	params.Set("price", strconv.FormatFloat(krwAmount, 'f', -1, 64))
	return c.post("/v1/orders", params, nil)
}

func (c *Client) MarketSell(ticker string, qty float64) error {
	params := url.Values{}
	params.Set("market", ticker)
	params.Set("side", "ask")
	params.Set("ord_type", "market")
	params.Set("volume", strconv.FormatFloat(qty, 'f', -1, 64))
	return c.post("/v1/orders", params, nil)
}

func (c *Client) LimitSell(ticker string, price, qty float64) error {
	params := url.Values{}
	params.Set("market", ticker)
	params.Set("side", "ask")
	params.Set("ord_type", "limit")
	params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	params.Set("volume", strconv.FormatFloat(qty, 'f', -1, 64))
	return c.post("/v1/orders", params, nil)
}

// ---------------------------------------------------------------------
// Transport helpers
// ---------------------------------------------------------------------

func (c *Client) get(path string, params url.Values, auth bool, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if auth {
		token, err := c.authToken(params)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) post(path string, params url.Values, out interface{}) error {
	encoded := params.Encode()
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, strings.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	token, err := c.authToken(params)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upbit: %s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// authToken builds the Upbit JWT: access key, a uuid nonce and, when the
// request carries parameters, a SHA512 hash of the encoded query string.
func (c *Client) authToken(params url.Values) (string, error) {
	claims := jwt.MapClaims{
		"access_key": c.accessKey,
		"nonce":      uuid.NewString(),
	}
	if len(params) > 0 {
		sum := sha512.Sum512([]byte(params.Encode()))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
}
