package services

import (
	"context"
	"errors"

	"github.com/username/lotfolio/src/ledger"
)

// Define common service errors
var (
	ErrAnalysisUnavailable = errors.New("ai analysis unavailable")
	ErrRecordNotFound      = errors.New("record not found")
)

// BuyRequest carries a buy intent from the API layer to the ledger.
type BuyRequest struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Qty    int     `json:"qty"`
	Reason string  `json:"reason"`
}

// SellRequest carries a sell intent from the API layer to the ledger.
type SellRequest struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Qty    int     `json:"qty"`
}

// PortfolioService owns one ledger per user: it loads records from the store
// on first touch, applies ledger operations synchronously, and persists the
// record list afterwards.
type PortfolioService interface {
	AddBuy(userID string, req BuyRequest) (ledger.TransactionRecord, error)
	AddSell(userID string, req SellRequest) (ledger.SellOutcome, error)
	RemoveRecord(userID, recordID string) error
	ListRecords(userID string) ([]ledger.TransactionRecord, error)

	// GetSummary returns the per-ticker position summary valued with live
	// quotes. refresh bypasses the quote cache.
	GetSummary(userID string, refresh bool) ([]ledger.PositionSummary, error)

	InvalidateUserCache(userID string)
}

type PriceInfo struct {
	Status   string  // "OK" or "UNAVAILABLE"
	Price    float64
	Currency string
}

// PriceService defines the interface for fetching current market prices.
// Individual ticker failures never fail the whole batch: unavailable tickers
// come back with Status "UNAVAILABLE" and the summary falls back to the
// prices stored on the records.
type PriceService interface {
	GetCurrentPrices(tickers []string) (map[string]PriceInfo, error)
}

// Valuation is the optional AI-estimated overlay for one ticker. It lives
// entirely outside the ledger's data model and is merged only at
// presentation time.
type Valuation struct {
	Ticker         string  `json:"ticker"`
	CheapPrice     float64 `json:"cheap_price"`
	FairPrice      float64 `json:"fair_price"`
	ExpensivePrice float64 `json:"expensive_price"`
	TargetPrice    float64 `json:"target_price"`
	Rationale      string  `json:"rationale,omitempty"`
}

// AnalysisService produces AI-generated content from position summaries.
// It is purely a consumer of the ledger's output.
type AnalysisService interface {
	AnalyzePortfolio(ctx context.Context, summaries []ledger.PositionSummary) (string, error)
	EstimateValuations(ctx context.Context, summaries []ledger.PositionSummary) (map[string]Valuation, error)
}
