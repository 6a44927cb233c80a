package services

import (
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/lotfolio/src/database"
	"github.com/username/lotfolio/src/ledger"
	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/model"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE transaction_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ticker TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			buy_date TEXT NOT NULL,
			buy_price REAL NOT NULL,
			buy_qty INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			sell_date TEXT NOT NULL DEFAULT '',
			sell_price REAL NOT NULL DEFAULT 0,
			sell_qty INTEGER NOT NULL DEFAULT 0,
			current_price REAL NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE daily_prices (
			ticker_symbol TEXT NOT NULL,
			date TEXT NOT NULL,
			price REAL NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (ticker_symbol, date)
		);`); err != nil {
		panic(err)
	}
	database.DB = db

	code := m.Run()
	db.Close()
	os.Exit(code)
}

// fakePriceService serves canned quotes and counts how often it is asked,
// so tests can observe summary caching.
type fakePriceService struct {
	mu     sync.Mutex
	calls  int
	prices map[string]PriceInfo
}

func (f *fakePriceService) GetCurrentPrices(tickers []string) (map[string]PriceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]PriceInfo, len(tickers))
	for _, t := range tickers {
		if info, ok := f.prices[t]; ok {
			out[t] = info
		} else {
			out[t] = PriceInfo{Status: "UNAVAILABLE"}
		}
	}
	return out, nil
}

func (f *fakePriceService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestPortfolioService(prices map[string]PriceInfo) (PortfolioService, *fakePriceService) {
	fake := &fakePriceService{prices: prices}
	return NewPortfolioService(fake, cache.New(DefaultCacheExpiration, CacheCleanupInterval), time.Minute), fake
}

func TestAddBuyThenListRecords(t *testing.T) {
	svc, _ := newTestPortfolioService(nil)

	rec, err := svc.AddBuy("user-buy", BuyRequest{
		Ticker: "aapl", Name: "Apple", Date: "2024-01-01", Price: 100, Qty: 10, Reason: "entry",
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", rec.Ticker)
	assert.NotEmpty(t, rec.ID)

	records, err := svc.ListRecords("user-buy")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec, records[0])
}

func TestAddSellSurfacesInsufficientShares(t *testing.T) {
	svc, _ := newTestPortfolioService(nil)

	_, err := svc.AddBuy("user-short", BuyRequest{Ticker: "AAPL", Date: "2024-01-01", Price: 100, Qty: 5})
	require.NoError(t, err)

	_, err = svc.AddSell("user-short", SellRequest{Ticker: "AAPL", Date: "2024-02-01", Price: 110, Qty: 10})
	var insErr *ledger.InsufficientSharesError
	require.ErrorAs(t, err, &insErr)
	assert.Equal(t, 10, insErr.Requested)
	assert.Equal(t, 5, insErr.Available)

	// The rejected sell left the ledger untouched.
	records, err := svc.ListRecords("user-short")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].SellQty)
}

func TestGetSummaryUsesLiveQuotes(t *testing.T) {
	svc, _ := newTestPortfolioService(map[string]PriceInfo{
		"AAPL": {Status: "OK", Price: 150, Currency: "USD"},
	})

	_, err := svc.AddBuy("user-quotes", BuyRequest{Ticker: "AAPL", Date: "2024-01-01", Price: 100, Qty: 10})
	require.NoError(t, err)

	summaries, err := svc.GetSummary("user-quotes", false)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 150.0, summaries[0].CurrentPrice)
	assert.Equal(t, 1500.0, summaries[0].MarketValue)
	assert.Equal(t, 500.0, summaries[0].UnrealizedPL)
}

func TestGetSummaryFallsBackWhenQuoteUnavailable(t *testing.T) {
	svc, _ := newTestPortfolioService(nil)

	// RecordBuy seeds CurrentPrice with the buy price, which becomes the
	// fallback when no live quote arrives.
	_, err := svc.AddBuy("user-fallback", BuyRequest{Ticker: "MSFT", Date: "2024-01-01", Price: 300, Qty: 2})
	require.NoError(t, err)

	summaries, err := svc.GetSummary("user-fallback", false)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 300.0, summaries[0].CurrentPrice)
	assert.Equal(t, 600.0, summaries[0].MarketValue)
}

func TestGetSummaryIsCached(t *testing.T) {
	svc, fake := newTestPortfolioService(map[string]PriceInfo{
		"AAPL": {Status: "OK", Price: 150},
	})

	_, err := svc.AddBuy("user-cache", BuyRequest{Ticker: "AAPL", Date: "2024-01-01", Price: 100, Qty: 10})
	require.NoError(t, err)

	_, err = svc.GetSummary("user-cache", false)
	require.NoError(t, err)
	_, err = svc.GetSummary("user-cache", false)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount(), "second summary is served from cache")

	_, err = svc.GetSummary("user-cache", true)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount(), "refresh bypasses the cache")
}

func TestMutationsInvalidateSummaryCache(t *testing.T) {
	svc, fake := newTestPortfolioService(map[string]PriceInfo{
		"AAPL": {Status: "OK", Price: 150},
	})

	_, err := svc.AddBuy("user-inval", BuyRequest{Ticker: "AAPL", Date: "2024-01-01", Price: 100, Qty: 10})
	require.NoError(t, err)

	summaries, err := svc.GetSummary("user-inval", false)
	require.NoError(t, err)
	assert.Equal(t, 10, summaries[0].TotalShares)

	_, err = svc.AddBuy("user-inval", BuyRequest{Ticker: "AAPL", Date: "2024-02-01", Price: 120, Qty: 5})
	require.NoError(t, err)

	summaries, err = svc.GetSummary("user-inval", false)
	require.NoError(t, err)
	assert.Equal(t, 15, summaries[0].TotalShares, "the buy invalidated the cached summary")
	assert.Equal(t, 2, fake.callCount())
}

func TestLedgerLoadsFromStoreOnFirstTouch(t *testing.T) {
	require.NoError(t, model.SaveRecords(database.DB, "user-preload", []ledger.TransactionRecord{
		{ID: "pre-1", Ticker: "NVDA", BuyDate: "2024-01-01", BuyPrice: 500, BuyQty: 4, CurrentPrice: 500},
	}))

	svc, _ := newTestPortfolioService(nil)
	records, err := svc.ListRecords("user-preload")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pre-1", records[0].ID)
	assert.Equal(t, "NVDA", records[0].Ticker)
}

func TestRemoveRecordIsIdempotent(t *testing.T) {
	svc, _ := newTestPortfolioService(nil)

	rec, err := svc.AddBuy("user-remove", BuyRequest{Ticker: "AAPL", Date: "2024-01-01", Price: 100, Qty: 10})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveRecord("user-remove", rec.ID))
	require.NoError(t, svc.RemoveRecord("user-remove", rec.ID))
	require.NoError(t, svc.RemoveRecord("user-remove", "no-such-id"))

	records, err := svc.ListRecords("user-remove")
	require.NoError(t, err)
	assert.Empty(t, records)
}
