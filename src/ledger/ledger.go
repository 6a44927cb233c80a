// Package ledger implements FIFO lot tracking and cost-basis accounting for
// stock transactions. A LotLedger owns an append-only list of buy lots,
// consumes them oldest-first on sells, and derives per-ticker position
// summaries with realized and unrealized P&L. The ledger performs no I/O;
// persistence and price fetching are the caller's concern.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the ISO-8601 date format used for buy and sell dates.
// Lexicographic order of dates in this layout matches chronological order,
// which the FIFO walk relies on.
const DateLayout = "2006-01-02"

// TransactionRecord represents one buy lot, potentially partially or fully
// consumed by a later sell. SellQty is always within [0, BuyQty]: zero means
// the lot is open, equal to BuyQty means fully closed, anything in between
// is a partially closed lot.
type TransactionRecord struct {
	ID           string  `json:"id"`
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name,omitempty"`
	BuyDate      string  `json:"buy_date"`
	BuyPrice     float64 `json:"buy_price"`
	BuyQty       int     `json:"buy_qty"`
	Reason       string  `json:"reason,omitempty"`
	SellDate     string  `json:"sell_date,omitempty"`
	SellPrice    float64 `json:"sell_price,omitempty"`
	SellQty      int     `json:"sell_qty,omitempty"`
	CurrentPrice float64 `json:"current_price,omitempty"`
}

// Remaining returns the still-open share count of the lot.
func (r *TransactionRecord) Remaining() int {
	return r.BuyQty - r.SellQty
}

// LotLedger owns the transaction records of a single user session. It is not
// safe for concurrent use; callers are expected to serialize access
// (single-writer assumption).
type LotLedger struct {
	records []*TransactionRecord
	newID   func() string
}

// New constructs a ledger from previously persisted records. The slice is
// copied; the caller keeps ownership of its input.
func New(records []TransactionRecord) *LotLedger {
	l := &LotLedger{newID: uuid.NewString}
	for i := range records {
		rec := records[i]
		rec.Ticker = NormalizeTicker(rec.Ticker)
		l.records = append(l.records, &rec)
	}
	return l
}

// Records returns a copy of the current record list, suitable for
// handing to a persistence layer.
func (l *LotLedger) Records() []TransactionRecord {
	out := make([]TransactionRecord, len(l.records))
	for i, rec := range l.records {
		out[i] = *rec
	}
	return out
}

// NormalizeTicker trims and upper-cases a raw ticker so that inputs differing
// only in case or surrounding whitespace refer to the same position.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// RecordBuy appends a new open lot and returns it. CurrentPrice is seeded
// with the buy price; refreshing it with a live quote is an external concern.
func (l *LotLedger) RecordBuy(ticker, name, date string, price float64, qty int, reason string) (TransactionRecord, error) {
	t := NormalizeTicker(ticker)
	if err := validateIntent(t, date, price, qty); err != nil {
		return TransactionRecord{}, err
	}
	rec := &TransactionRecord{
		ID:           l.newID(),
		Ticker:       t,
		Name:         strings.TrimSpace(name),
		BuyDate:      date,
		BuyPrice:     price,
		BuyQty:       qty,
		Reason:       reason,
		CurrentPrice: price,
	}
	l.records = append(l.records, rec)
	return *rec, nil
}

// RecordSell consumes qty shares of ticker from the oldest open lots first.
// The sell is atomic: if the open inventory cannot cover qty, it fails with
// an InsufficientSharesError and no record is touched.
func (l *LotLedger) RecordSell(ticker, date string, price float64, qty int) (SellOutcome, error) {
	t := NormalizeTicker(ticker)
	if err := validateIntent(t, date, price, qty); err != nil {
		return SellOutcome{}, err
	}
	records, fills, err := applyFifoSell(l.records, t, date, price, qty, l.newID)
	if err != nil {
		return SellOutcome{}, err
	}
	l.records = records

	outcome := SellOutcome{Ticker: t, SellDate: date, SellPrice: price, Qty: qty, Fills: fills}
	for _, f := range fills {
		outcome.RealizedPL += f.RealizedPL
	}
	return outcome, nil
}

// RemoveRecord deletes a record by id regardless of its open/closed state.
// Removing an unknown or already-removed id is a no-op.
func (l *LotLedger) RemoveRecord(id string) {
	for i, rec := range l.records {
		if rec.ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return
		}
	}
}

// OpenQuantity returns the total still-open share count for a ticker.
func (l *LotLedger) OpenQuantity(ticker string) int {
	t := NormalizeTicker(ticker)
	total := 0
	for _, rec := range l.records {
		if rec.Ticker == t {
			total += rec.Remaining()
		}
	}
	return total
}

func validateIntent(ticker, date string, price float64, qty int) error {
	if ticker == "" {
		return &ValidationError{Field: "ticker", Reason: "must not be empty"}
	}
	if qty <= 0 {
		return &ValidationError{Field: "qty", Reason: fmt.Sprintf("must be a positive integer, got %d", qty)}
	}
	if price < 0 {
		return &ValidationError{Field: "price", Reason: fmt.Sprintf("must not be negative, got %g", price)}
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return &ValidationError{Field: "date", Reason: fmt.Sprintf("must be an ISO-8601 date (%s), got %q", DateLayout, date)}
	}
	return nil
}
