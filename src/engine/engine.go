package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedIntent marks a CREATE whose amount or limit price did not
// parse as a positive decimal. The intent is dropped without mutating
// any state; batch processing continues.
var ErrMalformedIntent = errors.New("malformed intent")

// MatchingEngine applies intents to per-pair order books and
// accumulates the trade log. It is single-threaded by contract: a
// concurrent host must serialize every call against one engine
// instance (the batch runner is the only writer here).
type MatchingEngine struct {
	books       map[string]*OrderBook
	trades      []Trade
	nextTradeID int64
}

// NewMatchingEngine creates an empty engine with the trade counter at 1.
func NewMatchingEngine() *MatchingEngine {
	return &MatchingEngine{
		books:       make(map[string]*OrderBook),
		nextTradeID: 1,
	}
}

// book returns the pair's order book, creating it on first reference.
func (me *MatchingEngine) book(pair string) *OrderBook {
	ob, ok := me.books[pair]
	if !ok {
		ob = NewOrderBook()
		me.books[pair] = ob
	}
	return ob
}

// Apply performs one atomic state transition for a single intent.
// A CREATE may produce zero or more trades; a DELETE is a best-effort
// cancel and never fails. The returned error is ErrMalformedIntent
// (wrapped) when the intent was rejected without any mutation.
func (me *MatchingEngine) Apply(intent Intent) (Result, error) {
	switch intent.Op {
	case OpCreate:
		return me.applyCreate(intent)
	case OpDelete:
		me.book(intent.Pair).Cancel(intent.Side, intent.OrderID)
		return Result{}, nil
	default:
		return Result{}, fmt.Errorf("%w: unknown operation %q", ErrMalformedIntent, intent.Op)
	}
}

func (me *MatchingEngine) applyCreate(intent Intent) (Result, error) {
	amount, err := decimal.NewFromString(intent.Amount)
	if err != nil {
		return Result{}, fmt.Errorf("%w: amount %q: %v", ErrMalformedIntent, intent.Amount, err)
	}
	price, err := decimal.NewFromString(intent.LimitPrice)
	if err != nil {
		return Result{}, fmt.Errorf("%w: limit_price %q: %v", ErrMalformedIntent, intent.LimitPrice, err)
	}
	if !amount.IsPositive() || !price.IsPositive() {
		return Result{}, fmt.Errorf("%w: amount and limit_price must be positive (amount=%s limit_price=%s)",
			ErrMalformedIntent, intent.Amount, intent.LimitPrice)
	}

	ob := me.book(intent.Pair)
	firstTrade := len(me.trades)
	remaining := me.match(ob, intent, amount, price)

	result := Result{}
	if len(me.trades) > firstTrade {
		result.Trades = append(result.Trades, me.trades[firstTrade:]...)
	}

	if remaining.IsPositive() {
		ob.Insert(&RestingOrder{
			OrderID:   intent.OrderID,
			AccountID: intent.AccountID,
			Pair:      intent.Pair,
			Side:      intent.Side,
			Remaining: remaining,
			Price:     price,
		})
		result.Rested = true
	}
	return result, nil
}

// match executes the incoming order against the opposing side of the
// book, best price first, and returns the unfilled remainder.
//
// Each iteration either fully consumes the opposing best order or
// exits on a failed crossing test, so the loop terminates. Because the
// side is price-sorted, a failed test means no worse level can match.
func (me *MatchingEngine) match(ob *OrderBook, intent Intent, amount, price decimal.Decimal) decimal.Decimal {
	isBuy := intent.Side == Buy
	opposing := Sell
	if !isBuy {
		opposing = Buy
	}

	remaining := amount
	for remaining.IsPositive() {
		resting, ok := ob.best(opposing)
		if !ok {
			break
		}

		if isBuy && price.LessThan(resting.Price) {
			break
		}
		if !isBuy && price.GreaterThan(resting.Price) {
			break
		}

		fill := decimal.Min(remaining, resting.Remaining)

		trade := Trade{
			TradeID:   me.nextTradeID,
			Amount:    fill,
			Price:     resting.Price, // maker's price, price improvement goes to the taker
			Pair:      intent.Pair,
			Timestamp: time.Now(),
		}
		if isBuy {
			trade.BuyOrderID = intent.OrderID
			trade.SellOrderID = resting.OrderID
		} else {
			trade.BuyOrderID = resting.OrderID
			trade.SellOrderID = intent.OrderID
		}
		me.trades = append(me.trades, trade)
		me.nextTradeID++

		remaining = remaining.Sub(fill)
		ob.Reduce(opposing, resting.OrderID, fill)
		if resting.Remaining.IsZero() {
			ob.RemoveBest(opposing)
		}
	}
	return remaining
}

// Ingest applies a sequence of intents strictly in order. Malformed
// intents are skipped with a diagnostic; everything else mutates the
// engine. Reordering would change matching results, so the sequence is
// never reordered or batched.
func (me *MatchingEngine) Ingest(intents []Intent) Stats {
	var stats Stats
	for _, intent := range intents {
		before := len(me.trades)
		if _, err := me.Apply(intent); err != nil {
			slog.Warn("intent rejected",
				slog.String("order_id", intent.OrderID),
				slog.String("pair", intent.Pair),
				slog.Any("error", err))
			stats.Skipped++
			continue
		}
		stats.Applied++
		stats.Trades += len(me.trades) - before
	}
	return stats
}

// Stats summarizes one ingestion pass.
type Stats struct {
	Applied int
	Skipped int
	Trades  int
}

// BookSnapshot is a read-consistent copy of one pair's book, both
// sides in their invariant order.
type BookSnapshot struct {
	Pair string
	Bids []RestingOrder
	Asks []RestingOrder
}

// SnapshotBooks returns a deep copy of every book keyed by pair.
// Callers may mutate the result freely; the engine is untouched.
func (me *MatchingEngine) SnapshotBooks() map[string]BookSnapshot {
	out := make(map[string]BookSnapshot, len(me.books))
	for pair, ob := range me.books {
		out[pair] = BookSnapshot{
			Pair: pair,
			Bids: ob.BidOrders(),
			Asks: ob.AskOrders(),
		}
	}
	return out
}

// SnapshotTrades returns a copy of the full trade log in execution
// order (trade id ascending).
func (me *MatchingEngine) SnapshotTrades() []Trade {
	out := make([]Trade, len(me.trades))
	copy(out, me.trades)
	return out
}

// Reset discards all books and trades and restarts the trade counter
// at 1, yielding a clean engine between independent batch runs.
func (me *MatchingEngine) Reset() {
	me.books = make(map[string]*OrderBook)
	me.trades = nil
	me.nextTradeID = 1
}
