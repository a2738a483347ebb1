package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"pharmaledger/m/domain"
)

// SQLiteStore keeps the ledger in a stock_batches table while preserving the
// whole-table Load/Replace contract: Replace deletes every row and inserts
// the given set inside one transaction. Column types mirror the CSV table
// (prices and dates stay text) so the two backends round-trip identically.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore returns a store over the given database, creating the
// stock_batches table if needed.
func NewSQLiteStore(db *sqlx.DB) (*SQLiteStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS stock_batches (
        item_name TEXT NOT NULL,
        batch_id TEXT NOT NULL,
        quantity INTEGER NOT NULL,
        price TEXT NOT NULL,
        expiration_date TEXT NOT NULL,
        date_added TEXT NOT NULL DEFAULT '',
        date_updated TEXT NOT NULL DEFAULT '',
        date_removed TEXT NOT NULL DEFAULT ''
    );`)
	if err != nil {
		return nil, fmt.Errorf("create stock_batches table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns every batch, tombstoned rows included, in insertion order.
func (s *SQLiteStore) Load() ([]domain.StockBatch, error) {
	batches := []domain.StockBatch{}
	err := s.db.Select(&batches, `SELECT item_name, batch_id, quantity, price,
        expiration_date, date_added, date_updated, date_removed
        FROM stock_batches ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load stock batches: %w", err)
	}
	return batches, nil
}

// Replace rewrites the table to hold exactly the given batches.
func (s *SQLiteStore) Replace(batches []domain.StockBatch) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin stock replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM stock_batches`); err != nil {
		return fmt.Errorf("clear stock batches: %w", err)
	}
	stmt, err := tx.Preparex(`INSERT INTO stock_batches (item_name, batch_id,
        quantity, price, expiration_date, date_added, date_updated, date_removed)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stock insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range batches {
		if _, err := stmt.Exec(b.ItemName, b.BatchID, b.Quantity, b.Price,
			b.ExpirationDate, b.DateAdded, b.DateUpdated, b.DateRemoved); err != nil {
			return fmt.Errorf("insert stock batch %s/%s: %w", b.ItemName, b.BatchID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stock replace: %w", err)
	}
	return nil
}
