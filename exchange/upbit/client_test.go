package upbit

import (
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(srv.URL, "test-access", "test-secret"), srv
}

func TestCurrentPrices(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ticker" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("markets"); got != "KRW-XRP,KRW-GMT" {
			t.Fatalf("markets param: got %q", got)
		}
		w.Write([]byte(`[
			{"market":"KRW-XRP","trade_price":512.5},
			{"market":"KRW-GMT","trade_price":98.1}
		]`))
	})
	defer srv.Close()

	prices, err := c.CurrentPrices([]string{"KRW-XRP", "KRW-GMT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prices["KRW-XRP"] != 512.5 || prices["KRW-GMT"] != 98.1 {
		t.Fatalf("unexpected prices: %v", prices)
	}
}

func TestDayCandlesReversesToOldestFirst(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("count"); got != "3" {
			t.Fatalf("count param: got %q", got)
		}
		// The API sends newest-first.
		w.Write([]byte(`[
			{"opening_price":3,"high_price":3,"low_price":3,"trade_price":3,"candle_acc_trade_volume":300},
			{"opening_price":2,"high_price":2,"low_price":2,"trade_price":2,"candle_acc_trade_volume":200},
			{"opening_price":1,"high_price":1,"low_price":1,"trade_price":1,"candle_acc_trade_volume":100}
		]`))
	})
	defer srv.Close()

	candles, err := c.DayCandles("KRW-XRP", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("want 3 candles, got %d", len(candles))
	}
	for i, want := range []float64{1, 2, 3} {
		if candles[i].Close != want || candles[i].Volume != want*100 {
			t.Fatalf("candle %d: want close %v, got %+v", i, want, candles[i])
		}
	}
}

func TestOrderBookTop(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"orderbook_units":[
			{"bid_price":511.0,"bid_size":40.5},
			{"bid_price":510.0,"bid_size":90.0}
		]}]`))
	})
	defer srv.Close()

	top, err := c.OrderBookTop("KRW-XRP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if top.BidPrice != 511.0 || top.BidSize != 40.5 {
		t.Fatalf("want best bid, got %+v", top)
	}
}

func TestOrderBookTopEmpty(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	defer srv.Close()

	if _, err := c.OrderBookTop("KRW-XRP"); err == nil {
		t.Fatal("empty order book must error")
	}
}

func TestBalancesParsesAndAuthenticates(t *testing.T) {
	var authHeader string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(`[
			{"currency":"KRW","balance":"100000.0"},
			{"currency":"XRP","balance":"12.5"}
		]`))
	})
	defer srv.Close()

	balances, err := c.Balances()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(balances) != 2 || balances[0].Amount != 100000 || balances[1].Currency != "XRP" {
		t.Fatalf("unexpected balances: %+v", balances)
	}

	claims := verifyToken(t, authHeader)
	if claims["access_key"] != "test-access" {
		t.Fatalf("access_key claim: got %v", claims["access_key"])
	}
	if claims["nonce"] == "" || claims["nonce"] == nil {
		t.Fatal("nonce claim missing")
	}
	// No request parameters: no query hash.
	if _, ok := claims["query_hash"]; ok {
		t.Fatal("parameterless request must not carry a query hash")
	}
}

func TestBalancesRejectsMalformedAmount(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"currency":"KRW","balance":"not-a-number"}]`))
	})
	defer srv.Close()

	if _, err := c.Balances(); err == nil {
		t.Fatal("malformed balance must error")
	}
}

func TestMarketBuySendsOrderForm(t *testing.T) {
	var form url.Values
	var authHeader string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("form parse: %v", err)
		}
		form = r.PostForm
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	if err := c.MarketBuy("KRW-XRP", 99950); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if form.Get("side") != "bid" || form.Get("ord_type") != "price" {
		t.Fatalf("want quote-funded bid, got %v", form)
	}
	if form.Get("market") != "KRW-XRP" || form.Get("price") != "99950" {
		t.Fatalf("unexpected order form: %v", form)
	}

	// The query hash must cover the exact encoded form.
	claims := verifyToken(t, authHeader)
	sum := sha512.Sum512([]byte(form.Encode()))
	if claims["query_hash"] != hex.EncodeToString(sum[:]) {
		t.Fatalf("query hash mismatch: got %v", claims["query_hash"])
	}
	if claims["query_hash_alg"] != "SHA512" {
		t.Fatalf("query hash alg: got %v", claims["query_hash_alg"])
	}
}

func TestMarketSellAndLimitSellForms(t *testing.T) {
	var forms []url.Values
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("form parse: %v", err)
		}
		forms = append(forms, r.PostForm)
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	if err := c.MarketSell("KRW-XRP", 12.5); err != nil {
		t.Fatalf("market sell: %v", err)
	}
	if err := c.LimitSell("KRW-XRP", 511, 12.5); err != nil {
		t.Fatalf("limit sell: %v", err)
	}

	market := forms[0]
	if market.Get("side") != "ask" || market.Get("ord_type") != "market" || market.Get("volume") != "12.5" {
		t.Fatalf("unexpected market sell form: %v", market)
	}
	limit := forms[1]
	if limit.Get("ord_type") != "limit" || limit.Get("price") != "511" || limit.Get("volume") != "12.5" {
		t.Fatalf("unexpected limit sell form: %v", limit)
	}
}

func TestErrorStatusIncludesBody(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"too many requests"}}`))
	})
	defer srv.Close()

	_, err := c.CurrentPrices([]string{"KRW-XRP"})
	if err == nil {
		t.Fatal("want error on 429")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "too many requests") {
		t.Fatalf("error should carry status and body, got %v", err)
	}
}

// verifyToken checks the bearer token signature against the test secret and
// returns its claims.
func verifyToken(t *testing.T, header string) jwt.MapClaims {
	t.Helper()
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		t.Fatalf("want bearer auth, got %q", header)
	}
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		t.Fatalf("token verification failed: %v", err)
	}
	return claims
}
