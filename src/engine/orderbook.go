package engine

import (
	"container/list"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// --- B-Tree Comparators ---

// asksSort sorts price levels from lowest price to highest price.
func asksSort(a, b *priceLevel) bool {
	return a.price.LessThan(b.price)
}

// bidsSort sorts price levels from highest price to lowest price.
func bidsSort(a, b *priceLevel) bool {
	return a.price.GreaterThan(b.price)
}

// --- priceLevel ---

// priceLevel is a FIFO queue of resting orders at a specific price.
// Arrival order doubles as the orderId tie-break: ids are monotonic in
// the intent stream, so the front of the queue is always the lowest id.
type priceLevel struct {
	price  decimal.Decimal
	orders *list.List // queue of *RestingOrder
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{
		price:  price,
		orders: list.New(),
	}
}

func (pl *priceLevel) add(order *RestingOrder) {
	order.element = pl.orders.PushBack(order)
}

func (pl *priceLevel) remove(order *RestingOrder) {
	if order.element != nil {
		pl.orders.Remove(order.element)
		order.element = nil
	}
}

// --- OrderBook (Not Thread-Safe) ---

// OrderBook holds the resting liquidity for a single trading pair.
// It is NOT safe for concurrent use; the engine serializes all access.
type OrderBook struct {
	bids *btree.BTreeG[*priceLevel] // highest price first
	asks *btree.BTreeG[*priceLevel] // lowest price first

	// Levels are keyed by the normalized decimal rendering of the
	// price, since decimal.Decimal is not a comparable map key.
	bidLevels map[string]*priceLevel
	askLevels map[string]*priceLevel
	orders    map[string]*RestingOrder
}

// NewOrderBook creates and initializes an empty OrderBook.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:      btree.NewG(2, bidsSort),
		asks:      btree.NewG(2, asksSort),
		bidLevels: make(map[string]*priceLevel),
		askLevels: make(map[string]*priceLevel),
		orders:    make(map[string]*RestingOrder),
	}
}

func (ob *OrderBook) sideOf(side Side) (*btree.BTreeG[*priceLevel], map[string]*priceLevel) {
	if side == Buy {
		return ob.bids, ob.bidLevels
	}
	return ob.asks, ob.askLevels
}

// Insert places a resting order on its side, keeping the side's total
// order: price primary, arrival (orderId) secondary.
func (ob *OrderBook) Insert(order *RestingOrder) {
	tree, levels := ob.sideOf(order.Side)

	key := order.Price.String()
	level, exists := levels[key]
	if !exists {
		level = newPriceLevel(order.Price)
		levels[key] = level
		tree.ReplaceOrInsert(level)
	}

	level.add(order)
	ob.orders[order.OrderID] = order
}

// best returns the highest-priority resting order on the given side
// without removing it.
func (ob *OrderBook) best(side Side) (*RestingOrder, bool) {
	tree, _ := ob.sideOf(side)
	level, ok := tree.Min()
	if !ok {
		return nil, false
	}
	front := level.orders.Front()
	if front == nil {
		return nil, false
	}
	return front.Value.(*RestingOrder), true
}

// BestBid returns the highest-priced bid, earliest arrival first.
func (ob *OrderBook) BestBid() (*RestingOrder, bool) {
	return ob.best(Buy)
}

// BestAsk returns the lowest-priced ask, earliest arrival first.
func (ob *OrderBook) BestAsk() (*RestingOrder, bool) {
	return ob.best(Sell)
}

// RemoveBest removes and returns the current best order on the given
// side. Used when a resting order is fully consumed by a fill.
func (ob *OrderBook) RemoveBest(side Side) (*RestingOrder, bool) {
	order, ok := ob.best(side)
	if !ok {
		return nil, false
	}
	ob.unlink(order)
	return order, true
}

// Cancel removes the resting order with the given id from the given
// side. Cancelling an unknown or already-filled order is a silent
// no-op; it reports whether an order was actually removed.
func (ob *OrderBook) Cancel(side Side, orderID string) bool {
	order, exists := ob.orders[orderID]
	if !exists || order.Side != side {
		return false
	}
	ob.unlink(order)
	return true
}

// Reduce decrements a resting order's remaining amount in place. The
// remainder is clamped at zero; removal of an emptied order is the
// caller's responsibility (its sort position never changes here).
func (ob *OrderBook) Reduce(side Side, orderID string, by decimal.Decimal) {
	order, exists := ob.orders[orderID]
	if !exists || order.Side != side {
		return
	}
	order.Remaining = order.Remaining.Sub(by)
	if order.Remaining.IsNegative() {
		order.Remaining = decimal.Zero
	}
}

// unlink detaches an order from its price level, dropping the level
// from the tree when it empties.
func (ob *OrderBook) unlink(order *RestingOrder) {
	delete(ob.orders, order.OrderID)

	tree, levels := ob.sideOf(order.Side)
	key := order.Price.String()
	level, exists := levels[key]
	if !exists {
		return
	}
	level.remove(order)
	if level.orders.Len() == 0 {
		delete(levels, key)
		tree.Delete(level)
	}
}

// BidOrders returns a copy of every resting bid in book order:
// descending price, ascending arrival within a price.
func (ob *OrderBook) BidOrders() []RestingOrder {
	return collect(ob.bids)
}

// AskOrders returns a copy of every resting ask in book order:
// ascending price, ascending arrival within a price.
func (ob *OrderBook) AskOrders() []RestingOrder {
	return collect(ob.asks)
}

// Len returns the number of resting orders on both sides.
func (ob *OrderBook) Len() int {
	return len(ob.orders)
}

func collect(tree *btree.BTreeG[*priceLevel]) []RestingOrder {
	var out []RestingOrder
	tree.Ascend(func(level *priceLevel) bool {
		for e := level.orders.Front(); e != nil; e = e.Next() {
			order := *e.Value.(*RestingOrder)
			order.element = nil
			out = append(out, order)
		}
		return true
	})
	return out
}
