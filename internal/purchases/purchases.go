// Package purchases records completed point-of-sale purchases. Each line is
// gated on expiration and allocated through the stock ledger before the
// receipt rows are written to the purchase log.
package purchases

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"pharmaledger/m/domain"
	"pharmaledger/m/internal/inventory"
)

var (
	ErrMissingCustomer = errors.New("first and last name are required")
	ErrNoItems         = errors.New("a purchase needs at least one item")
	ErrExpiredItem     = errors.New("item has expired stock and cannot be sold")
)

// itemKey normalizes an item name the same way batch matching does, so
// aggregate availability checks line up with what allocation will see.
func itemKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Line is one row of the purchase table as keyed in at the register.
type Line struct {
	ItemName  string
	Quantity  int64
	UnitPrice float64
}

// Service completes purchases against the ledger and the purchase log.
type Service struct {
	db  *sqlx.DB
	inv *inventory.Service
}

// NewService constructs a Service.
func NewService(db *sqlx.DB, inv *inventory.Service) *Service {
	return &Service{db: db, inv: inv}
}

// Complete gates every line on expiration and availability, depletes stock
// through the allocation engine, then records the receipt. The pre-checks
// run against the same single-writer ledger the allocations use, so under
// the one-active-caller model a purchase either books every line or reports
// a structured failure before any stock moved.
func (s *Service) Complete(cashier, firstName, lastName, paymentMethod string, lines []Line) (domain.Purchase, error) {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return domain.Purchase{}, ErrMissingCustomer
	}
	if len(lines) == 0 {
		return domain.Purchase{}, ErrNoItems
	}

	// Expired stock must never be the source of a completed sale line, and a
	// short line must surface before any sibling line depletes stock. Lines
	// naming the same item are checked as one aggregate, so two lines that
	// individually fit cannot jointly overdraw the item.
	requested := make(map[string]int64)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return domain.Purchase{}, fmt.Errorf("%w: quantity for %q", inventory.ErrInvalidQuantity, line.ItemName)
		}
		requested[itemKey(line.ItemName)] += line.Quantity
	}
	checked := make(map[string]bool)
	for _, line := range lines {
		key := itemKey(line.ItemName)
		if checked[key] {
			continue
		}
		checked[key] = true
		expired, err := s.inv.IsExpired(line.ItemName)
		if err != nil {
			return domain.Purchase{}, err
		}
		if expired {
			return domain.Purchase{}, fmt.Errorf("%w: %q", ErrExpiredItem, strings.TrimSpace(line.ItemName))
		}
		entries, err := s.inv.CheckStock(line.ItemName)
		if err != nil {
			return domain.Purchase{}, err
		}
		var available int64
		for _, e := range entries {
			available += e.Quantity
		}
		if available < requested[key] {
			return domain.Purchase{}, fmt.Errorf("%w: %q short by %d",
				inventory.ErrInsufficientStock, strings.TrimSpace(line.ItemName), requested[key]-available)
		}
	}

	var grandTotal float64
	for _, line := range lines {
		if err := s.inv.Allocate(line.ItemName, line.Quantity); err != nil {
			return domain.Purchase{}, err
		}
		grandTotal += float64(line.Quantity) * line.UnitPrice
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("start purchase: %w", err)
	}
	defer tx.Rollback()

	purchase := domain.Purchase{
		FirstName:     strings.TrimSpace(firstName),
		LastName:      strings.TrimSpace(lastName),
		PaymentMethod: paymentMethod,
		Cashier:       cashier,
		GrandTotal:    grandTotal,
	}
	err = tx.QueryRowx(`INSERT INTO purchases (first_name, last_name, payment_method, cashier, grand_total)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		purchase.FirstName, purchase.LastName, purchase.PaymentMethod, purchase.Cashier, purchase.GrandTotal).
		Scan(&purchase.ID, &purchase.CreatedAt)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("record purchase: %w", err)
	}

	for _, line := range lines {
		subtotal := float64(line.Quantity) * line.UnitPrice
		if _, err := tx.Exec(`INSERT INTO purchase_items (purchase_id, item_name, quantity, unit_price, subtotal)
            VALUES ($1, $2, $3, $4, $5)`,
			purchase.ID, strings.TrimSpace(line.ItemName), line.Quantity, line.UnitPrice, subtotal); err != nil {
			return domain.Purchase{}, fmt.Errorf("record purchase line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Purchase{}, fmt.Errorf("finalize purchase: %w", err)
	}
	return purchase, nil
}

// History returns the purchase log, newest first, with line items attached.
type Receipt struct {
	domain.Purchase
	Items []domain.PurchaseItem `json:"items"`
}

// List returns every recorded purchase with its items.
func (s *Service) List() ([]Receipt, error) {
	var purchases []domain.Purchase
	if err := s.db.Select(&purchases, `SELECT id, first_name, last_name, payment_method, cashier, grand_total, created_at
        FROM purchases ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	if len(purchases) == 0 {
		return []Receipt{}, nil
	}

	ids := make([]int64, len(purchases))
	for i, p := range purchases {
		ids[i] = p.ID
	}
	query, args, err := sqlx.In(`SELECT id, purchase_id, item_name, quantity, unit_price, subtotal
        FROM purchase_items WHERE purchase_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare purchase items query: %w", err)
	}
	query = s.db.Rebind(query)

	var items []domain.PurchaseItem
	if err := s.db.Select(&items, query, args...); err != nil {
		return nil, fmt.Errorf("load purchase items: %w", err)
	}
	byPurchase := make(map[int64][]domain.PurchaseItem)
	for _, item := range items {
		byPurchase[item.PurchaseID] = append(byPurchase[item.PurchaseID], item)
	}

	receipts := make([]Receipt, len(purchases))
	for i, p := range purchases {
		receipts[i] = Receipt{Purchase: p, Items: byPurchase[p.ID]}
	}
	return receipts, nil
}
