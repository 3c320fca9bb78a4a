package types

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Candle is a single daily OHLCV bar. Sequences are always ordered
// oldest-first, most recent bar last.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Balance is one row of an account balance query. Currency is the bare
// asset code ("KRW", "XRP"), not the exchange-qualified ticker.
type Balance struct {
	Currency string
	Amount   float64
}

// OrderBookLevel is the best-bid side of the top of book.
type OrderBookLevel struct {
	BidPrice float64
	BidSize  float64
}

type Order struct {
	Ticker string
	Side   Side
	Qty    float64 // asset quantity for sells; 0 for KRW-funded market buys
	Amount float64 // KRW amount for market buys; 0 otherwise
	Price  float64 // limit price; 0 = market
}
