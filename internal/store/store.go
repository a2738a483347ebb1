// Package store persists the stock ledger as a flat, row-oriented table.
//
// The contract is deliberately blunt: Load returns the entire table and
// Replace discards whatever the table held and writes exactly the given
// record set. Every caller that wants to change one field of one record
// reads the whole table, mutates the in-memory copy, and replaces the whole
// table. There is no partial-row update and no locking here; callers that
// may race must serialize the load-mutate-replace cycle themselves.
package store

import "pharmaledger/m/domain"

// Header is the backing-table column order.
var Header = []string{
	"item_name", "batch_id", "quantity", "price",
	"expiration_date", "date_added", "date_updated", "date_removed",
}

// Store is the whole-table read/replace contract over the stock ledger.
type Store interface {
	// Load returns every batch in the table, tombstoned rows included.
	// A missing backing table yields an empty slice, not an error.
	Load() ([]domain.StockBatch, error)
	// Replace rewrites the table to hold exactly the given batches.
	Replace(batches []domain.StockBatch) error
}
