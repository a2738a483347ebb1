package domain

type Purchase struct {
	ID            int64   `db:"id" json:"id"`
	FirstName     string  `db:"first_name" json:"first_name"`
	LastName      string  `db:"last_name" json:"last_name"`
	PaymentMethod string  `db:"payment_method" json:"payment_method"`
	Cashier       string  `db:"cashier" json:"cashier"`
	GrandTotal    float64 `db:"grand_total" json:"grand_total"`
	CreatedAt     string  `db:"created_at" json:"created_at"`
}

type PurchaseItem struct {
	ID         int64   `db:"id" json:"id"`
	PurchaseID int64   `db:"purchase_id" json:"purchase_id"`
	ItemName   string  `db:"item_name" json:"item_name"`
	Quantity   int64   `db:"quantity" json:"quantity"`
	UnitPrice  float64 `db:"unit_price" json:"unit_price"`
	Subtotal   float64 `db:"subtotal" json:"subtotal"`
}
