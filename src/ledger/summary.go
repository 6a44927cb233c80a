package ledger

import "sort"

// PositionSummary aggregates all records of one ticker into the figures the
// dashboard displays. It is derived on demand and never stored.
type PositionSummary struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name,omitempty"`
	TotalShares  int     `json:"total_shares"`
	TotalCost    float64 `json:"total_cost"`
	AvgCost      float64 `json:"avg_cost"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	UnrealizedPL float64 `json:"unrealized_pl"`
	RealizedPL   float64 `json:"realized_pl"`
}

// Summarize computes one PositionSummary per ticker from the current record
// list. It is a pure function of the records and the supplied price map:
// calling it twice without an intervening mutation yields identical output.
//
// The price used per ticker is, most-authoritative first: the supplied map's
// value, the latest CurrentPrice stored on any of the ticker's records, the
// most recent BuyPrice. Output is ordered by MarketValue descending; equal
// values fall back to ticker order so the result stays deterministic.
func (l *LotLedger) Summarize(prices map[string]float64) []PositionSummary {
	groups := make(map[string][]*TransactionRecord)
	var order []string
	for _, rec := range l.records {
		t := NormalizeTicker(rec.Ticker)
		if _, seen := groups[t]; !seen {
			order = append(order, t)
		}
		groups[t] = append(groups[t], rec)
	}

	summaries := make([]PositionSummary, 0, len(order))
	for _, t := range order {
		recs := groups[t]
		s := PositionSummary{Ticker: t}
		for _, rec := range recs {
			remaining := rec.Remaining()
			s.TotalShares += remaining
			s.TotalCost += rec.BuyPrice * float64(remaining)
			if rec.SellQty > 0 {
				s.RealizedPL += (rec.SellPrice - rec.BuyPrice) * float64(rec.SellQty)
			}
			if rec.Name != "" {
				s.Name = rec.Name
			}
		}
		if s.TotalShares > 0 {
			s.AvgCost = s.TotalCost / float64(s.TotalShares)
		}
		s.CurrentPrice = resolvePrice(t, recs, prices)
		s.MarketValue = float64(s.TotalShares) * s.CurrentPrice
		s.UnrealizedPL = s.MarketValue - s.TotalCost
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].MarketValue != summaries[j].MarketValue {
			return summaries[i].MarketValue > summaries[j].MarketValue
		}
		return summaries[i].Ticker < summaries[j].Ticker
	})
	return summaries
}

// resolvePrice applies the fallback chain for a ticker's current price. For
// the record-based fallbacks the value on the latest BuyDate wins; a later
// record breaks ties so the choice is reproducible.
func resolvePrice(ticker string, recs []*TransactionRecord, prices map[string]float64) float64 {
	if p, ok := prices[ticker]; ok {
		return p
	}
	var price float64
	var bestDate string
	found := false
	for _, rec := range recs {
		if rec.CurrentPrice > 0 && (!found || rec.BuyDate >= bestDate) {
			price = rec.CurrentPrice
			bestDate = rec.BuyDate
			found = true
		}
	}
	if found {
		return price
	}
	for _, rec := range recs {
		if !found || rec.BuyDate >= bestDate {
			price = rec.BuyPrice
			bestDate = rec.BuyDate
			found = true
		}
	}
	return price
}
