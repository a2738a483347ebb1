package domain

import (
	"strings"
	"time"
)

// DateLayout is the calendar format used everywhere in the backing table.
const DateLayout = "2006-01-02"

// NoExpiration is the literal stored in expiration_date for batches that do
// not track an expiration. It is exempt from all expiration checks.
const NoExpiration = "No Expiration Date"

// StockBatch is one purchased lot of one medication.
type StockBatch struct {
	ItemName       string `db:"item_name" json:"item_name"`
	BatchID        string `db:"batch_id" json:"batch_id"`
	Quantity       int64  `db:"quantity" json:"quantity"`
	Price          string `db:"price" json:"price"`
	ExpirationDate string `db:"expiration_date" json:"expiration_date"`
	DateAdded      string `db:"date_added" json:"date_added"`
	DateUpdated    string `db:"date_updated" json:"date_updated"`
	DateRemoved    string `db:"date_removed" json:"date_removed"`
}

// Active reports whether the batch has not been tombstoned.
func (b StockBatch) Active() bool {
	return b.DateRemoved == ""
}

// Matches reports whether the batch belongs to the given item. Item names
// compare case-insensitively with surrounding whitespace ignored.
func (b StockBatch) Matches(item string) bool {
	return strings.EqualFold(strings.TrimSpace(b.ItemName), strings.TrimSpace(item))
}

// Expires returns the batch expiration date, or ok=false when the batch
// carries the NoExpiration sentinel or an unparseable date.
func (b StockBatch) Expires() (time.Time, bool) {
	if strings.TrimSpace(b.ExpirationDate) == NoExpiration {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(b.ExpirationDate))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExpiredBy reports whether the batch expiration is strictly before the
// given day (a midnight date). Sentinel batches never expire.
func (b StockBatch) ExpiredBy(day time.Time) bool {
	exp, ok := b.Expires()
	if !ok {
		return false
	}
	return exp.Before(day)
}
