package model

import (
	"database/sql"
	"fmt"

	"github.com/username/lotfolio/src/ledger"
)

// LoadRecords retrieves a user's full transaction record list in insertion
// order. The returned slice is what ledger.New expects: the ledger's entire
// state round-trips through LoadRecords/SaveRecords.
func LoadRecords(db *sql.DB, userID string) ([]ledger.TransactionRecord, error) {
	rows, err := db.Query(`
		SELECT id, ticker, name, buy_date, buy_price, buy_qty, reason,
		       sell_date, sell_price, sell_qty, current_price
		FROM transaction_records
		WHERE user_id = ?
		ORDER BY seq ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying records for user %s: %w", userID, err)
	}
	defer rows.Close()

	var records []ledger.TransactionRecord
	for rows.Next() {
		var rec ledger.TransactionRecord
		if err := rows.Scan(
			&rec.ID, &rec.Ticker, &rec.Name, &rec.BuyDate, &rec.BuyPrice, &rec.BuyQty, &rec.Reason,
			&rec.SellDate, &rec.SellPrice, &rec.SellQty, &rec.CurrentPrice,
		); err != nil {
			return nil, fmt.Errorf("error scanning record row for user %s: %w", userID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over record rows for user %s: %w", userID, err)
	}
	return records, nil
}

// SaveRecords replaces a user's stored record list with the given one
// (set semantics: delete-and-insert inside a single transaction). The seq
// column preserves insertion order across round trips.
func SaveRecords(db *sql.DB, userID string, records []ledger.TransactionRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("error beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM transaction_records WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("error clearing records for user %s: %w", userID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO transaction_records
		(id, user_id, seq, ticker, name, buy_date, buy_price, buy_qty, reason,
		 sell_date, sell_price, sell_qty, current_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.Exec(
			rec.ID, userID, i, rec.Ticker, rec.Name, rec.BuyDate, rec.BuyPrice, rec.BuyQty, rec.Reason,
			rec.SellDate, rec.SellPrice, rec.SellQty, rec.CurrentPrice,
		); err != nil {
			return fmt.Errorf("error inserting record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing record save: %w", err)
	}
	return nil
}
