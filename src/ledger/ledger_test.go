package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBuyAppendsOpenLot(t *testing.T) {
	l := New(nil)

	rec, err := l.RecordBuy("  2330.tw ", "TSMC", "2024-01-15", 580, 100, "long-term hold")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "2330.TW", rec.Ticker)
	assert.Equal(t, "TSMC", rec.Name)
	assert.Equal(t, "2024-01-15", rec.BuyDate)
	assert.Equal(t, 580.0, rec.BuyPrice)
	assert.Equal(t, 100, rec.BuyQty)
	assert.Equal(t, 0, rec.SellQty)
	assert.Equal(t, 580.0, rec.CurrentPrice, "current price seeds from the buy price")

	records := l.Records()
	require.Len(t, records, 1)
	assert.Equal(t, rec, records[0])
}

func TestRecordBuyValidation(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		date   string
		price  float64
		qty    int
	}{
		{"empty ticker", "", "2024-01-01", 10, 5},
		{"whitespace ticker", "   ", "2024-01-01", 10, 5},
		{"zero qty", "AAPL", "2024-01-01", 10, 0},
		{"negative qty", "AAPL", "2024-01-01", 10, -3},
		{"negative price", "AAPL", "2024-01-01", -0.01, 5},
		{"bad date", "AAPL", "01-02-2024", 10, 5},
		{"empty date", "AAPL", "", 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(nil)
			_, err := l.RecordBuy(tt.ticker, "", tt.date, tt.price, tt.qty, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, l.Records(), "failed buy must not mutate the ledger")
		})
	}
}

func TestRecordSellValidation(t *testing.T) {
	l := New(nil)
	_, err := l.RecordBuy("AAPL", "", "2024-01-01", 100, 10, "")
	require.NoError(t, err)

	before := l.Records()

	_, err = l.RecordSell("AAPL", "2024-02-01", 120, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = l.RecordSell("AAPL", "2024-02-01", -1, 5)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = l.RecordSell("", "2024-02-01", 120, 5)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, before, l.Records(), "failed sells must not mutate the ledger")
}

// Conservation: the open remainder per ticker always equals total bought
// minus total successfully sold, regardless of how sells split the lots.
func TestOpenQuantityConservation(t *testing.T) {
	l := New(nil)
	mustBuy(t, l, "NVDA", "2024-01-01", 500, 30)
	mustBuy(t, l, "NVDA", "2024-02-01", 600, 20)
	mustBuy(t, l, "NVDA", "2024-03-01", 700, 50)

	bought := 100
	sold := 0
	for _, qty := range []int{7, 23, 30, 15} {
		_, err := l.RecordSell("NVDA", "2024-04-01", 800, qty)
		require.NoError(t, err)
		sold += qty

		open := 0
		for _, rec := range l.Records() {
			open += rec.BuyQty - rec.SellQty
		}
		assert.Equal(t, bought-sold, open)
		assert.Equal(t, bought-sold, l.OpenQuantity("NVDA"))
	}
}

func TestOversellRejectedAndLedgerUntouched(t *testing.T) {
	l := New(nil)
	mustBuy(t, l, "AAPL", "2024-01-01", 100, 10)
	mustBuy(t, l, "AAPL", "2024-02-01", 110, 5)
	before := l.Records()

	_, err := l.RecordSell("AAPL", "2024-03-01", 120, 16)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientShares)

	var insufficient *InsufficientSharesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "AAPL", insufficient.Ticker)
	assert.Equal(t, 16, insufficient.Requested)
	assert.Equal(t, 15, insufficient.Available)

	assert.Equal(t, before, l.Records(), "rejected sell must leave every record unchanged")
}

func TestSellUnknownTickerFails(t *testing.T) {
	l := New(nil)
	mustBuy(t, l, "AAPL", "2024-01-01", 100, 10)

	_, err := l.RecordSell("MSFT", "2024-02-01", 200, 1)
	require.ErrorIs(t, err, ErrInsufficientShares)

	var insufficient *InsufficientSharesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Available)
}

func TestRemoveRecordIsIdempotent(t *testing.T) {
	l := New(nil)
	rec, err := l.RecordBuy("AAPL", "", "2024-01-01", 100, 10, "")
	require.NoError(t, err)
	mustBuy(t, l, "MSFT", "2024-01-02", 300, 5)

	require.NotPanics(t, func() { l.RemoveRecord(rec.ID) })
	require.Len(t, l.Records(), 1)

	// Second removal of the same id and removal of an unknown id are no-ops.
	require.NotPanics(t, func() { l.RemoveRecord(rec.ID) })
	require.NotPanics(t, func() { l.RemoveRecord("no-such-id") })
	assert.Len(t, l.Records(), 1)
	assert.Equal(t, "MSFT", l.Records()[0].Ticker)
}

func TestNewNormalizesLoadedTickers(t *testing.T) {
	l := New([]TransactionRecord{
		{ID: "a", Ticker: " 2330.tw", BuyDate: "2024-01-01", BuyPrice: 500, BuyQty: 10},
		{ID: "b", Ticker: "2330.TW", BuyDate: "2024-02-01", BuyPrice: 600, BuyQty: 5},
	})

	assert.Equal(t, 15, l.OpenQuantity("2330.tw"))

	summaries := l.Summarize(nil)
	require.Len(t, summaries, 1, "case-variant tickers merge into one position")
	assert.Equal(t, "2330.TW", summaries[0].Ticker)
	assert.Equal(t, 15, summaries[0].TotalShares)
}

func TestRecordsReturnsCopy(t *testing.T) {
	l := New(nil)
	mustBuy(t, l, "AAPL", "2024-01-01", 100, 10)

	records := l.Records()
	records[0].BuyQty = 9999

	assert.Equal(t, 10, l.Records()[0].BuyQty, "mutating the snapshot must not affect the ledger")
}

func TestValidationErrorMessageNamesField(t *testing.T) {
	l := New(nil)
	_, err := l.RecordBuy("AAPL", "", "2024-01-01", 10, -2, "")
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "qty", verr.Field)
	assert.Contains(t, err.Error(), "qty")
}

func mustBuy(t *testing.T, l *LotLedger, ticker, date string, price float64, qty int) TransactionRecord {
	t.Helper()
	rec, err := l.RecordBuy(ticker, "", date, price, qty, "")
	require.NoError(t, err)
	return rec
}
