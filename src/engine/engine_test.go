package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup a new engine for each test
func setupEngine() *MatchingEngine {
	return NewMatchingEngine()
}

// Helper to build a CREATE intent. Order ids double as arrival order.
func createIntent(orderID, pair string, side Side, amount, price string) Intent {
	return Intent{
		Op:         OpCreate,
		AccountID:  "1",
		Amount:     amount,
		OrderID:    orderID,
		Pair:       pair,
		LimitPrice: price,
		Side:       side,
	}
}

func deleteIntent(orderID, pair string, side Side) Intent {
	return Intent{
		Op:        OpDelete,
		AccountID: "1",
		OrderID:   orderID,
		Pair:      pair,
		Side:      side,
	}
}

func TestSimplePartialFill(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	// Resting buy 1.5 @ 50000
	res, err := eng.Apply(createIntent("101", "BTC/USDC", Buy, "1.5", "50000"))
	assert.NoError(err)
	assert.Empty(res.Trades)
	assert.True(res.Rested)

	books := eng.SnapshotBooks()
	require.Len(t, books["BTC/USDC"].Bids, 1)
	assert.Empty(books["BTC/USDC"].Asks)
	assert.Equal("101", books["BTC/USDC"].Bids[0].OrderID)
	assert.Equal("1.50000000", Fixed8(books["BTC/USDC"].Bids[0].Remaining))

	// Incoming sell 1.0 @ 50000 crosses for a single trade
	res, err = eng.Apply(createIntent("102", "BTC/USDC", Sell, "1.0", "50000"))
	assert.NoError(err)
	require.Len(t, res.Trades, 1)
	assert.False(res.Rested)

	trade := res.Trades[0]
	assert.Equal(int64(1), trade.TradeID)
	assert.Equal("101", trade.BuyOrderID)
	assert.Equal("102", trade.SellOrderID)
	assert.Equal("1.00000000", Fixed8(trade.Amount))
	assert.Equal("50000", trade.Price.String())

	// Maker keeps the leftover 0.5 on the book
	books = eng.SnapshotBooks()
	require.Len(t, books["BTC/USDC"].Bids, 1)
	assert.Empty(books["BTC/USDC"].Asks)
	assert.Equal("0.50000000", Fixed8(books["BTC/USDC"].Bids[0].Remaining))
}

func TestBestPriceWinsFirst(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	// Two resting sells: 201 at the worse price, 202 at the better one
	_, _ = eng.Apply(createIntent("201", "BTC/USDC", Sell, "1.0", "51000"))
	_, _ = eng.Apply(createIntent("202", "BTC/USDC", Sell, "2.0", "50000"))

	books := eng.SnapshotBooks()
	require.Len(t, books["BTC/USDC"].Asks, 2)
	assert.Equal("202", books["BTC/USDC"].Asks[0].OrderID, "lowest ask must sort first")
	assert.Equal("201", books["BTC/USDC"].Asks[1].OrderID)

	// Incoming buy willing to pay up to 52000 fills against 202 only
	res, err := eng.Apply(createIntent("203", "BTC/USDC", Buy, "1.5", "52000"))
	assert.NoError(err)
	require.Len(t, res.Trades, 1)
	assert.Equal("203", res.Trades[0].BuyOrderID)
	assert.Equal("202", res.Trades[0].SellOrderID)
	assert.Equal("1.50000000", Fixed8(res.Trades[0].Amount))
	assert.Equal("50000", res.Trades[0].Price.String(), "execution price must be the resting order's price")

	books = eng.SnapshotBooks()
	require.Len(t, books["BTC/USDC"].Asks, 2)
	assert.Equal("202", books["BTC/USDC"].Asks[0].OrderID)
	assert.Equal("0.50000000", Fixed8(books["BTC/USDC"].Asks[0].Remaining))
	assert.Equal("1.00000000", Fixed8(books["BTC/USDC"].Asks[1].Remaining), "201 must be untouched")
}

func TestWalkingTheBook(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	_, _ = eng.Apply(createIntent("301", "BTC/USDC", Sell, "0.5", "50000"))
	_, _ = eng.Apply(createIntent("302", "BTC/USDC", Sell, "0.5", "50500"))
	_, _ = eng.Apply(createIntent("303", "BTC/USDC", Sell, "0.5", "51000"))

	// Crosses the two best levels, rests the remainder as a bid
	res, err := eng.Apply(createIntent("304", "BTC/USDC", Buy, "1.2", "50500"))
	assert.NoError(err)
	require.Len(t, res.Trades, 2)
	assert.True(res.Rested)

	assert.Equal("50000", res.Trades[0].Price.String())
	assert.Equal("0.50000000", Fixed8(res.Trades[0].Amount))
	assert.Equal("50500", res.Trades[1].Price.String())
	assert.Equal("0.50000000", Fixed8(res.Trades[1].Amount))

	books := eng.SnapshotBooks()
	require.Len(t, books["BTC/USDC"].Bids, 1)
	assert.Equal("304", books["BTC/USDC"].Bids[0].OrderID)
	assert.Equal("0.20000000", Fixed8(books["BTC/USDC"].Bids[0].Remaining))
	require.Len(t, books["BTC/USDC"].Asks, 1)
	assert.Equal("303", books["BTC/USDC"].Asks[0].OrderID)
}

func TestTimePriorityWithinPriceLevel(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	// Three sells at the same price; lower order id means earlier arrival
	_, _ = eng.Apply(createIntent("401", "BTC/USDC", Sell, "0.2", "50000"))
	_, _ = eng.Apply(createIntent("402", "BTC/USDC", Sell, "0.3", "50000"))
	_, _ = eng.Apply(createIntent("403", "BTC/USDC", Sell, "0.4", "50000"))

	res, err := eng.Apply(createIntent("404", "BTC/USDC", Buy, "0.5", "50000"))
	assert.NoError(err)
	require.Len(t, res.Trades, 2)

	assert.Equal("401", res.Trades[0].SellOrderID, "earliest arrival fills first")
	assert.Equal("0.20000000", Fixed8(res.Trades[0].Amount))
	assert.Equal("402", res.Trades[1].SellOrderID)
	assert.Equal("0.30000000", Fixed8(res.Trades[1].Amount))

	books := eng.SnapshotBooks()
	require.Len(t, books["BTC/USDC"].Asks, 1)
	assert.Equal("403", books["BTC/USDC"].Asks[0].OrderID)
}

func TestConservation(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	_, _ = eng.Apply(createIntent("501", "BTC/USDC", Sell, "0.7", "49000"))
	_, _ = eng.Apply(createIntent("502", "BTC/USDC", Sell, "0.4", "49500"))

	original := decimal.RequireFromString("1.3")
	res, err := eng.Apply(createIntent("503", "BTC/USDC", Buy, "1.3", "50000"))
	assert.NoError(err)

	filled := decimal.Zero
	for _, trade := range res.Trades {
		filled = filled.Add(trade.Amount)
	}
	rested := decimal.Zero
	for _, bid := range eng.SnapshotBooks()["BTC/USDC"].Bids {
		rested = rested.Add(bid.Remaining)
	}
	assert.True(filled.Add(rested).Equal(original),
		"filled %s + rested %s must equal original %s", filled, rested, original)
}

func TestDeleteRemovesRestingOrder(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	_, _ = eng.Apply(createIntent("601", "BTC/USDC", Buy, "1.0", "48000"))
	_, err := eng.Apply(deleteIntent("601", "BTC/USDC", Buy))
	assert.NoError(err)

	books := eng.SnapshotBooks()
	assert.Empty(books["BTC/USDC"].Bids)
	assert.Empty(books["BTC/USDC"].Asks)
}

func TestDeleteIsIdempotent(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	_, _ = eng.Apply(createIntent("701", "BTC/USDC", Buy, "1.0", "48000"))
	_, _ = eng.Apply(createIntent("702", "BTC/USDC", Buy, "2.0", "47000"))

	// First delete removes, the second and an unknown id are no-ops
	_, err := eng.Apply(deleteIntent("701", "BTC/USDC", Buy))
	assert.NoError(err)
	_, err = eng.Apply(deleteIntent("701", "BTC/USDC", Buy))
	assert.NoError(err)
	_, err = eng.Apply(deleteIntent("never-placed", "BTC/USDC", Sell))
	assert.NoError(err)

	books := eng.SnapshotBooks()
	require.Len(t, books["BTC/USDC"].Bids, 1)
	assert.Equal("702", books["BTC/USDC"].Bids[0].OrderID)
}

func TestPairIsolation(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	res1, _ := eng.Apply(createIntent("801", "BTC/USD", Sell, "1.0", "50000"))
	res2, _ := eng.Apply(createIntent("802", "ETH/USD", Sell, "1.0", "50000"))
	assert.Empty(res1.Trades)
	assert.Empty(res2.Trades)
	assert.Empty(eng.SnapshotTrades(), "orders on different pairs must never cross")

	// A buy on BTC/USD crossing both prices touches only its own book
	res, err := eng.Apply(createIntent("803", "BTC/USD", Buy, "1.0", "50000"))
	assert.NoError(err)
	require.Len(t, res.Trades, 1)
	assert.Equal("801", res.Trades[0].SellOrderID)

	books := eng.SnapshotBooks()
	assert.Empty(books["BTC/USD"].Asks)
	require.Len(t, books["ETH/USD"].Asks, 1)
	assert.Equal("802", books["ETH/USD"].Asks[0].OrderID)
}

func TestTradeIDsAreGlobalAndMonotonic(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	_, _ = eng.Apply(createIntent("901", "BTC/USD", Sell, "1.0", "50000"))
	_, _ = eng.Apply(createIntent("902", "ETH/USD", Sell, "1.0", "3000"))
	_, _ = eng.Apply(createIntent("903", "BTC/USD", Buy, "1.0", "50000"))
	_, _ = eng.Apply(createIntent("904", "ETH/USD", Buy, "1.0", "3000"))

	trades := eng.SnapshotTrades()
	require.Len(t, trades, 2)
	assert.Equal(int64(1), trades[0].TradeID)
	assert.Equal(int64(2), trades[1].TradeID, "counter spans all pairs")
}

func TestMalformedCreateIsRejectedWithoutMutation(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	cases := []Intent{
		createIntent("1001", "BTC/USDC", Buy, "abc", "50000"),
		createIntent("1002", "BTC/USDC", Buy, "1.0", "not-a-price"),
		createIntent("1003", "BTC/USDC", Buy, "0", "50000"),
		createIntent("1004", "BTC/USDC", Buy, "-1", "50000"),
		createIntent("1005", "BTC/USDC", Buy, "1.0", "0"),
	}
	for _, intent := range cases {
		_, err := eng.Apply(intent)
		assert.ErrorIs(err, ErrMalformedIntent, "order %s", intent.OrderID)
	}

	assert.Empty(eng.SnapshotBooks())
	assert.Empty(eng.SnapshotTrades())
}

func TestIngestSkipsMalformedAndContinues(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	stats := eng.Ingest([]Intent{
		createIntent("1101", "BTC/USDC", Sell, "1.0", "50000"),
		createIntent("1102", "BTC/USDC", Buy, "bogus", "50000"),
		createIntent("1103", "BTC/USDC", Buy, "1.0", "50000"),
	})

	assert.Equal(2, stats.Applied)
	assert.Equal(1, stats.Skipped)
	assert.Equal(1, stats.Trades)
	assert.Len(eng.SnapshotTrades(), 1)
}

func TestReset(t *testing.T) {
	eng := setupEngine()
	assert := assert.New(t)

	_, _ = eng.Apply(createIntent("1201", "BTC/USD", Sell, "1.0", "50000"))
	_, _ = eng.Apply(createIntent("1202", "ETH/USD", Buy, "2.0", "3000"))
	_, _ = eng.Apply(createIntent("1203", "BTC/USD", Buy, "1.0", "50000"))
	assert.NotEmpty(eng.SnapshotTrades())

	eng.Reset()
	assert.Empty(eng.SnapshotBooks())
	assert.Empty(eng.SnapshotTrades())

	// Trade ids restart at 1 after a reset
	_, _ = eng.Apply(createIntent("1204", "BTC/USD", Sell, "1.0", "50000"))
	res, err := eng.Apply(createIntent("1205", "BTC/USD", Buy, "1.0", "50000"))
	assert.NoError(err)
	require.Len(t, res.Trades, 1)
	assert.Equal(int64(1), res.Trades[0].TradeID)
}
