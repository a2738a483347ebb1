// Package inventory is the stock ledger and allocation engine: it depletes
// batches in first-expired-first-out order when prescriptions are filled or
// sales complete, watches low-stock and near-expiration conditions, and tops
// up under-threshold batches on reorder.
//
// Every operation is a fresh snapshot-modify-write cycle against the record
// store; there is no long-lived cache. A single mutex serializes mutations so
// two concurrent cycles cannot silently overwrite each other's rewrite.
package inventory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pharmaledger/m/domain"
	"pharmaledger/m/internal/store"
)

// Service runs all ledger operations against an injected record store.
type Service struct {
	store store.Store
	mu    sync.Mutex
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// today returns the current calendar day at midnight UTC, the form every
// stored date parses back to.
func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) todayString() string {
	return s.today().Format(domain.DateLayout)
}

// Report returns the full table, tombstoned rows included. Reporting and
// audit reads go through here; nothing is ever physically deleted from the
// table, so historical rows stay visible.
func (s *Service) Report() ([]domain.StockBatch, error) {
	return s.store.Load()
}

// CheckStock returns every active entry for the given item.
func (s *Service) CheckStock(item string) ([]domain.StockBatch, error) {
	batches, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	var matches []domain.StockBatch
	for _, b := range batches {
		if b.Active() && b.Matches(item) {
			matches = append(matches, b)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrItemNotFound, strings.TrimSpace(item))
	}
	return matches, nil
}

// Allocate depletes stock for the requested item across one or more batches,
// soonest expiration first; batches without an expiration are depleted only
// after every dated batch is exhausted. The allocation is all-or-nothing: if
// the active batches cannot cover the request, the table is left untouched
// and ErrInsufficientStock is returned.
func (s *Service) Allocate(item string, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("%w: %d is negative", ErrInvalidQuantity, quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.store.Load()
	if err != nil {
		return err
	}

	var matching []int
	for i, b := range batches {
		if b.Active() && b.Matches(item) {
			matching = append(matching, i)
		}
	}
	if len(matching) == 0 {
		return fmt.Errorf("%w: %q", ErrItemNotFound, strings.TrimSpace(item))
	}
	if quantity == 0 {
		return nil
	}

	// FEFO: soonest expiration first, sentinel-dated batches last. The sort
	// is stable so equal dates keep table order.
	sort.SliceStable(matching, func(i, j int) bool {
		ei, oki := batches[matching[i]].Expires()
		ej, okj := batches[matching[j]].Expires()
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return ei.Before(ej)
	})

	remaining := quantity
	stamp := s.todayString()
	for _, idx := range matching {
		b := &batches[idx]
		if b.Quantity == 0 {
			continue
		}
		if b.Quantity >= remaining {
			b.Quantity -= remaining
			b.DateUpdated = stamp
			remaining = 0
			break
		}
		remaining -= b.Quantity
		b.Quantity = 0
		b.DateUpdated = stamp
	}
	if remaining > 0 {
		// Discard the in-memory deductions; the persisted table is unchanged.
		return fmt.Errorf("%w: %q short by %d", ErrInsufficientStock, strings.TrimSpace(item), remaining)
	}
	return s.store.Replace(batches)
}

// LowStock returns every active batch with quantity under the threshold.
func (s *Service) LowStock(threshold int64) ([]domain.StockBatch, error) {
	batches, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	var low []domain.StockBatch
	for _, b := range batches {
		if b.Active() && b.Quantity < threshold {
			low = append(low, b)
		}
	}
	return low, nil
}

// NearExpiration returns every active batch expiring within the window,
// already-expired batches included. Sentinel-dated batches never appear.
func (s *Service) NearExpiration(windowDays int) ([]domain.StockBatch, error) {
	batches, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	cutoff := s.today().AddDate(0, 0, windowDays)
	var expiring []domain.StockBatch
	for _, b := range batches {
		if !b.Active() {
			continue
		}
		exp, ok := b.Expires()
		if ok && !exp.After(cutoff) {
			expiring = append(expiring, b)
		}
	}
	return expiring, nil
}

// IsExpired reports whether any active batch of the item has already passed
// its expiration date. Sale and fill paths use this as a hard gate before
// allocating; Allocate itself does not refuse expired batches.
func (s *Service) IsExpired(item string) (bool, error) {
	batches, err := s.store.Load()
	if err != nil {
		return false, err
	}
	today := s.today()
	for _, b := range batches {
		if b.Active() && b.Matches(item) && b.ExpiredBy(today) {
			return true, nil
		}
	}
	return false, nil
}

// AutoReorder adds amount to every active batch under the threshold and
// returns how many batches were topped up. When nothing is under threshold
// no write happens.
func (s *Service) AutoReorder(threshold, amount int64) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: reorder amount %d is negative", ErrInvalidQuantity, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.store.Load()
	if err != nil {
		return 0, err
	}
	stamp := s.todayString()
	count := 0
	for i := range batches {
		b := &batches[i]
		if b.Active() && b.Quantity < threshold {
			b.Quantity += amount
			b.DateUpdated = stamp
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.store.Replace(batches); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateOrUpdate validates the raw field values, then updates the matching
// active batch in place or appends a new one when no active batch carries
// the (item, batch id) pair. Returns the batch as persisted.
func (s *Service) CreateOrUpdate(item, batchID, rawQuantity, rawPrice, rawExpiration string) (domain.StockBatch, error) {
	quantity, err := ParseQuantity(rawQuantity)
	if err != nil {
		return domain.StockBatch{}, err
	}
	price, err := ParsePrice(rawPrice)
	if err != nil {
		return domain.StockBatch{}, err
	}
	expiration, err := ParseExpiration(rawExpiration)
	if err != nil {
		return domain.StockBatch{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.store.Load()
	if err != nil {
		return domain.StockBatch{}, err
	}

	stamp := s.todayString()
	batchID = strings.TrimSpace(batchID)
	for i := range batches {
		b := &batches[i]
		if !b.Active() || !b.Matches(item) || b.BatchID != batchID {
			continue
		}
		b.Quantity = quantity
		b.Price = price
		b.ExpirationDate = expiration
		b.DateUpdated = stamp
		if err := s.store.Replace(batches); err != nil {
			return domain.StockBatch{}, err
		}
		return *b, nil
	}

	created := domain.StockBatch{
		ItemName:       strings.TrimSpace(item),
		BatchID:        batchID,
		Quantity:       quantity,
		Price:          price,
		ExpirationDate: expiration,
		DateAdded:      stamp,
	}
	batches = append(batches, created)
	if err := s.store.Replace(batches); err != nil {
		return domain.StockBatch{}, err
	}
	return created, nil
}

// Remove tombstones the active batch with the given id, keeping the row in
// the table for audit and reporting. Removing an id that was already
// tombstoned reports ErrBatchNotFound.
func (s *Service) Remove(batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.store.Load()
	if err != nil {
		return err
	}
	batchID = strings.TrimSpace(batchID)
	for i := range batches {
		b := &batches[i]
		if b.Active() && b.BatchID == batchID {
			b.DateRemoved = s.todayString()
			return s.store.Replace(batches)
		}
	}
	return fmt.Errorf("%w: id %q", ErrBatchNotFound, batchID)
}
