package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"orderflow/src/engine"
)

// bookEntry is the wire form of a resting order. Amounts are fixed to
// 8 fractional digits; prices keep their natural decimal rendering.
type bookEntry struct {
	OrderID    string      `json:"order_id"`
	AccountID  string      `json:"account_id"`
	Amount     string      `json:"amount"`
	LimitPrice string      `json:"limit_price"`
	Side       engine.Side `json:"side"`
	Pair       string      `json:"pair"`
}

type bookDocument struct {
	Bids []bookEntry `json:"bids"`
	Asks []bookEntry `json:"asks"`
}

type tradeRecord struct {
	TradeID     string `json:"trade_id"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Amount      string `json:"amount"`
	Price       string `json:"price"`
	Pair        string `json:"pair"`
	Timestamp   string `json:"timestamp"`
}

// Writer persists engine snapshots as pretty-printed JSON files under
// a single output directory: an aggregate orderbook.json, one
// orderbook_<PAIR>.json per pair, and trades.json.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteBooks writes the aggregate book document plus one file per
// pair. Failures propagate to the caller; engine state is untouched.
func (w *Writer) WriteBooks(books map[string]engine.BookSnapshot) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	aggregate := make(map[string]bookDocument, len(books))
	pairs := make([]string, 0, len(books))
	for pair, snap := range books {
		aggregate[pair] = bookDocument{
			Bids: toEntries(snap.Bids),
			Asks: toEntries(snap.Asks),
		}
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	if err := w.writeJSON("orderbook.json", aggregate); err != nil {
		return err
	}
	for _, pair := range pairs {
		if err := w.writeJSON(pairFileName(pair), aggregate[pair]); err != nil {
			return err
		}
	}
	return nil
}

// WriteTrades writes the full trade log, trade id ascending.
func (w *Writer) WriteTrades(trades []engine.Trade) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	records := make([]tradeRecord, 0, len(trades))
	for _, t := range trades {
		records = append(records, tradeRecord{
			TradeID:     strconv.FormatInt(t.TradeID, 10),
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Amount:      engine.Fixed8(t.Amount),
			Price:       t.Price.String(),
			Pair:        t.Pair,
			Timestamp:   t.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return w.writeJSON("trades.json", records)
}

func (w *Writer) writeJSON(name string, v any) error {
	path := filepath.Join(w.dir, name)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	slog.Info("snapshot written", slog.String("path", path))
	return nil
}

func toEntries(orders []engine.RestingOrder) []bookEntry {
	entries := make([]bookEntry, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, bookEntry{
			OrderID:    o.OrderID,
			AccountID:  o.AccountID,
			Amount:     engine.Fixed8(o.Remaining),
			LimitPrice: o.Price.String(),
			Side:       o.Side,
			Pair:       o.Pair,
		})
	}
	return entries
}

// pairFileName maps a pair like BTC/USDC to orderbook_BTC_USDC.json.
func pairFileName(pair string) string {
	return "orderbook_" + strings.ReplaceAll(pair, "/", "_") + ".json"
}
