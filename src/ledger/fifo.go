package ledger

import "sort"

// LotFill records the consumption of shares from one lot during a sell.
type LotFill struct {
	RecordID   string  `json:"record_id"`
	BuyDate    string  `json:"buy_date"`
	BuyPrice   float64 `json:"buy_price"`
	Qty        int     `json:"qty"`
	RealizedPL float64 `json:"realized_pl"`
}

// SellOutcome describes a fully applied sell: the intent that was executed
// plus the per-lot fills it produced, giving an auditable realized-P&L trail.
type SellOutcome struct {
	Ticker     string    `json:"ticker"`
	SellDate   string    `json:"sell_date"`
	SellPrice  float64   `json:"sell_price"`
	Qty        int       `json:"qty"`
	Fills      []LotFill `json:"fills"`
	RealizedPL float64   `json:"realized_pl"`
}

// applyFifoSell walks the open lots of a ticker oldest-first and consumes qty
// shares at the given sell price. It returns the updated record list and the
// fills, or an InsufficientSharesError with nothing mutated when the open
// inventory cannot cover the request.
//
// Consumption rules:
//   - A fully open lot whose entire remainder is consumed is closed in place.
//   - Any other consumption splits the lot: a new fully closed record is
//     appended for the consumed shares (same ticker, name, buy date and buy
//     price, fresh id), and the original lot's BuyQty shrinks by the consumed
//     amount. A lot with prior partial-sale bookkeeping keeps its SellQty, so
//     realized P&L already locked in survives the split unchanged.
func applyFifoSell(records []*TransactionRecord, ticker, date string, price float64, qty int, newID func() string) ([]*TransactionRecord, []LotFill, error) {
	var open []*TransactionRecord
	available := 0
	for _, rec := range records {
		if rec.Ticker == ticker && rec.Remaining() > 0 {
			open = append(open, rec)
			available += rec.Remaining()
		}
	}
	if available < qty {
		return nil, nil, &InsufficientSharesError{Ticker: ticker, Requested: qty, Available: available}
	}

	// Oldest lot first. The stable sort keeps insertion order for lots
	// bought on the same date, so repeated runs consume identically.
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].BuyDate < open[j].BuyDate
	})

	var fills []LotFill
	left := qty
	for _, lot := range open {
		if left == 0 {
			break
		}
		take := lot.Remaining()
		if take > left {
			take = left
		}

		fill := LotFill{
			BuyDate:    lot.BuyDate,
			BuyPrice:   lot.BuyPrice,
			Qty:        take,
			RealizedPL: (price - lot.BuyPrice) * float64(take),
		}

		if take == lot.Remaining() && lot.SellQty == 0 {
			// Whole lot gone and no prior bookkeeping: close in place.
			lot.SellQty = lot.BuyQty
			lot.SellDate = date
			lot.SellPrice = price
			fill.RecordID = lot.ID
		} else {
			// Split: the consumed shares become their own closed record,
			// the original keeps the leftover (and any prior SellQty).
			closed := &TransactionRecord{
				ID:           newID(),
				Ticker:       lot.Ticker,
				Name:         lot.Name,
				BuyDate:      lot.BuyDate,
				BuyPrice:     lot.BuyPrice,
				BuyQty:       take,
				SellDate:     date,
				SellPrice:    price,
				SellQty:      take,
				CurrentPrice: lot.CurrentPrice,
			}
			records = append(records, closed)
			lot.BuyQty -= take
			fill.RecordID = closed.ID
		}

		fills = append(fills, fill)
		left -= take
	}

	return records, fills, nil
}
