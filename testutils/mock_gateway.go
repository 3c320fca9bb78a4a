package testutils

import (
	"sort"
	"strings"
	"sync"

	"github.com/evdnx/govb/types"
)

// MockGateway implements the exchange Gateway interface in-memory. Market
// data is scripted by the test; order submissions are recorded and applied
// to the balances so multi-tick scenarios see their own fills.
type MockGateway struct {
	mu sync.RWMutex

	Prices  map[string]float64
	Candles map[string][]types.Candle
	Books   map[string]types.OrderBookLevel

	// Per-currency holdings; "KRW" is the cash balance.
	Holdings map[string]float64

	// Error injection. A non-nil value makes the corresponding call fail.
	PriceErr   error
	CandleErr  error
	BookErr    error
	BalanceErr error
	BuyErr     error
	SellErr    error
	LimitErr   error

	orders []types.Order
}

// NewMockGateway starts with the supplied KRW cash balance and no holdings.
func NewMockGateway(krw float64) *MockGateway {
	return &MockGateway{
		Prices:   make(map[string]float64),
		Candles:  make(map[string][]types.Candle),
		Books:    make(map[string]types.OrderBookLevel),
		Holdings: map[string]float64{"KRW": krw},
	}
}

func (m *MockGateway) CurrentPrices(tickers []string) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.PriceErr != nil {
		return nil, m.PriceErr
	}
	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		if p, ok := m.Prices[t]; ok {
			out[t] = p
		}
	}
	return out, nil
}

func (m *MockGateway) DayCandles(ticker string, count int) ([]types.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.CandleErr != nil {
		return nil, m.CandleErr
	}
	candles := m.Candles[ticker]
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	out := make([]types.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (m *MockGateway) OrderBookTop(ticker string) (types.OrderBookLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.BookErr != nil {
		return types.OrderBookLevel{}, m.BookErr
	}
	return m.Books[ticker], nil
}

// Balances returns KRW first, then held assets in lexical order, mimicking
// the deterministic ordering tests rely on.
func (m *MockGateway) Balances() ([]types.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	out := []types.Balance{{Currency: "KRW", Amount: m.Holdings["KRW"]}}
	var currencies []string
	for cur := range m.Holdings {
		if cur != "KRW" && m.Holdings[cur] > 0 {
			currencies = append(currencies, cur)
		}
	}
	sort.Strings(currencies)
	for _, cur := range currencies {
		out = append(out, types.Balance{Currency: cur, Amount: m.Holdings[cur]})
	}
	return out, nil
}

// MarketBuy fills immediately at the scripted price.
func (m *MockGateway) MarketBuy(ticker string, krwAmount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BuyErr != nil {
		return m.BuyErr
	}
	m.orders = append(m.orders, types.Order{Ticker: ticker, Side: types.Buy, Amount: krwAmount})
	price := m.Prices[ticker]
	if price > 0 {
		m.Holdings["KRW"] -= krwAmount
		m.Holdings[baseCurrency(ticker)] += krwAmount / price
	}
	return nil
}

func (m *MockGateway) MarketSell(ticker string, qty float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SellErr != nil {
		return m.SellErr
	}
	m.orders = append(m.orders, types.Order{Ticker: ticker, Side: types.Sell, Qty: qty})
	m.fill(ticker, qty, m.Prices[ticker])
	return nil
}

func (m *MockGateway) LimitSell(ticker string, price, qty float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LimitErr != nil {
		return m.LimitErr
	}
	m.orders = append(m.orders, types.Order{Ticker: ticker, Side: types.Sell, Qty: qty, Price: price})
	m.fill(ticker, qty, price)
	return nil
}

func (m *MockGateway) fill(ticker string, qty, price float64) {
	cur := baseCurrency(ticker)
	if m.Holdings[cur] < qty {
		qty = m.Holdings[cur]
	}
	m.Holdings[cur] -= qty
	m.Holdings["KRW"] += qty * price
}

// Orders returns a copy of all submitted orders (useful for assertions).
func (m *MockGateway) Orders() []types.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

// SetHolding scripts a position directly, bypassing the fill simulation.
func (m *MockGateway) SetHolding(currency string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Holdings[currency] = amount
}

func baseCurrency(ticker string) string {
	if i := strings.Index(ticker, "-"); i >= 0 {
		return ticker[i+1:]
	}
	return ticker
}
