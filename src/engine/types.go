package engine

import (
	"container/list"
	"time"

	"github.com/shopspring/decimal"
)

// Side defines the side of an order (BUY or SELL).
type Side string

// OpType defines the kind of book instruction (CREATE or DELETE).
type OpType string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	OpCreate OpType = "CREATE"
	OpDelete OpType = "DELETE"
)

// Intent is a single order-book instruction from the input stream.
// Amount and limit price travel as decimal strings so that no precision
// is lost before the engine parses them.
type Intent struct {
	Op         OpType `json:"type_op" validate:"required,oneof=CREATE DELETE"`
	AccountID  string `json:"account_id" validate:"required"`
	Amount     string `json:"amount" validate:"required_if=Op CREATE"`
	OrderID    string `json:"order_id" validate:"required"`
	Pair       string `json:"pair" validate:"required"`
	LimitPrice string `json:"limit_price" validate:"required_if=Op CREATE"`
	Side       Side   `json:"side" validate:"required,oneof=BUY SELL"`
}

// RestingOrder is unmatched liquidity sitting on one side of a book.
// It is owned exclusively by its price level: Remaining shrinks in
// place on partial fills and the order leaves the book when it reaches
// zero or a matching DELETE arrives.
type RestingOrder struct {
	OrderID   string
	AccountID string
	Pair      string
	Side      Side
	Remaining decimal.Decimal
	Price     decimal.Decimal

	// Internal field to store its place in the price-level queue.
	element *list.Element
}

// Trade is an immutable execution record. Price is always the resting
// (maker) order's limit price.
type Trade struct {
	TradeID     int64
	BuyOrderID  string
	SellOrderID string
	Amount      decimal.Decimal
	Price       decimal.Decimal
	Pair        string
	Timestamp   time.Time
}

// Result is the outcome of applying one CREATE intent.
type Result struct {
	Trades []Trade
	// Rested reports whether a leftover amount was inserted into the book.
	Rested bool
}

// Fixed8 renders an amount truncated (not rounded) to 8 fractional
// digits, the display precision used by snapshots and exports.
func Fixed8(d decimal.Decimal) string {
	return d.Truncate(8).StringFixed(8)
}
