package model

import (
	"database/sql"
	"strings"
	"time"
)

// DailyPrice represents a cached price for a ticker on a specific day.
type DailyPrice struct {
	TickerSymbol string
	Date         string // YYYY-MM-DD
	Price        float64
	Currency     string
	UpdatedAt    time.Time
}

// GetLatestPrices retrieves the most recent cached price per ticker in a
// single query. The key of the returned map is the ticker symbol; tickers
// without a cached price are simply absent.
func GetLatestPrices(db *sql.DB, tickers []string) (map[string]DailyPrice, error) {
	prices := make(map[string]DailyPrice)
	if len(tickers) == 0 {
		return prices, nil
	}
	query := `SELECT ticker_symbol, date, price, currency, updated_at
		FROM daily_prices
		WHERE ticker_symbol IN (?` + strings.Repeat(",?", len(tickers)-1) + `)
		ORDER BY date ASC`
	args := make([]interface{}, len(tickers))
	for i, t := range tickers {
		args[i] = t
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.TickerSymbol, &p.Date, &p.Price, &p.Currency, &p.UpdatedAt); err != nil {
			return nil, err
		}
		// Rows arrive date-ascending, so the last row per ticker wins.
		prices[p.TickerSymbol] = p
	}
	return prices, rows.Err()
}

// UpsertDailyPrice stores or refreshes the cached price for a ticker on a day.
func UpsertDailyPrice(db *sql.DB, p DailyPrice) error {
	_, err := db.Exec(`
		INSERT INTO daily_prices (ticker_symbol, date, price, currency, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ticker_symbol, date) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			updated_at = CURRENT_TIMESTAMP`,
		p.TickerSymbol, p.Date, p.Price, p.Currency)
	return err
}
