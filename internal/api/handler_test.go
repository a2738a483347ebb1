package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"pharmaledger/m/domain"
	"pharmaledger/m/internal/config"
	"pharmaledger/m/internal/inventory"
	"pharmaledger/m/internal/migrations"
	"pharmaledger/m/internal/purchases"
	"pharmaledger/m/internal/roles"
	"pharmaledger/m/internal/store"
)

func testHandler(t *testing.T) *Handler {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	migrations.Run(db)

	cfg := config.Config{
		Secret:            "test_secret",
		LowStockThreshold: 120,
		ReorderThreshold:  120,
		ReorderAmount:     120,
		ExpiryWindowDays:  30,
	}
	inv := inventory.NewService(store.NewCSVStore(filepath.Join(t.TempDir(), "db_inventory.csv")))
	return New(inv, purchases.NewService(db, inv), roles.NewService(db), cfg)
}

func do(t *testing.T, h *Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, h *Handler, username, password string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s: status %d, body %s", username, rec.Code, rec.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func adminToken(t *testing.T, h *Handler) string {
	return loginAs(t, h, "admin", "password")
}

func TestHealth(t *testing.T) {
	h := testHandler(t)
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestInventoryRequiresAuth(t *testing.T) {
	h := testHandler(t)
	rec := do(t, h, http.MethodGet, "/inventory/", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated inventory read: status %d, want 401", rec.Code)
	}
}

func TestStockLifecycleOverHTTP(t *testing.T) {
	h := testHandler(t)
	token := adminToken(t, h)

	rec := do(t, h, http.MethodPost, "/inventory/", token, map[string]string{
		"item_name": "Amoxicillin", "batch_id": "B1", "quantity": "10",
		"price": "4.5", "expiration_date": "2099-01-01",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create batch: status %d, body %s", rec.Code, rec.Body)
	}
	var batch domain.StockBatch
	if err := json.NewDecoder(rec.Body).Decode(&batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if batch.Price != "4.50" {
		t.Errorf("price = %q, want normalized 4.50", batch.Price)
	}

	rec = do(t, h, http.MethodPost, "/inventory/allocate", token, map[string]any{
		"item_name": "Amoxicillin", "quantity": 4,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("allocate: status %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/inventory/stock?item=amoxicillin", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check stock: status %d", rec.Code)
	}
	var entries []domain.StockBatch
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Quantity != 6 {
		t.Errorf("stock after allocation = %+v, want quantity 6", entries)
	}

	rec = do(t, h, http.MethodDelete, "/inventory/B1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove batch: status %d, body %s", rec.Code, rec.Body)
	}
	// Tombstoned row still shows in the full report.
	rec = do(t, h, http.MethodGet, "/inventory/", token, nil)
	var report []domain.StockBatch
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report) != 1 || report[0].DateRemoved == "" {
		t.Errorf("report after remove = %+v, want one tombstoned row", report)
	}
}

func TestOutcomeStatusMapping(t *testing.T) {
	h := testHandler(t)
	token := adminToken(t, h)

	if rec := do(t, h, http.MethodPost, "/inventory/", token, map[string]string{
		"item_name": "Aspirin", "batch_id": "A1", "quantity": "3",
		"price": "1.00", "expiration_date": "2099-01-01",
	}); rec.Code != http.StatusOK {
		t.Fatalf("seed batch: status %d", rec.Code)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"invalid quantity", http.MethodPost, "/inventory/",
			map[string]string{"item_name": "Aspirin", "batch_id": "A1", "quantity": "-2", "price": "1.00", "expiration_date": "2099-01-01"},
			http.StatusBadRequest},
		{"invalid price", http.MethodPost, "/inventory/",
			map[string]string{"item_name": "Aspirin", "batch_id": "A1", "quantity": "2", "price": "free", "expiration_date": "2099-01-01"},
			http.StatusBadRequest},
		{"invalid date", http.MethodPost, "/inventory/",
			map[string]string{"item_name": "Aspirin", "batch_id": "A1", "quantity": "2", "price": "1.00", "expiration_date": "tomorrow"},
			http.StatusBadRequest},
		{"item not found", http.MethodPost, "/inventory/allocate",
			map[string]any{"item_name": "Nothing", "quantity": 1},
			http.StatusNotFound},
		{"insufficient stock", http.MethodPost, "/inventory/allocate",
			map[string]any{"item_name": "Aspirin", "quantity": 99},
			http.StatusConflict},
		{"batch not found", http.MethodDelete, "/inventory/missing", nil,
			http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRoleGates(t *testing.T) {
	h := testHandler(t)
	admin := adminToken(t, h)

	if rec := do(t, h, http.MethodPost, "/auth/register", admin, map[string]string{
		"username": "carl", "password": "pw", "role": domain.RoleCashier,
	}); rec.Code != http.StatusCreated {
		t.Fatalf("register cashier: status %d, body %s", rec.Code, rec.Body)
	}
	cashier := loginAs(t, h, "carl", "pw")

	// Cashiers cannot trigger reorders, remove batches, or create accounts.
	if rec := do(t, h, http.MethodPost, "/inventory/reorder", cashier, nil); rec.Code != http.StatusForbidden {
		t.Errorf("cashier reorder: status %d, want 403", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/inventory/B1", cashier, nil); rec.Code != http.StatusForbidden {
		t.Errorf("cashier remove: status %d, want 403", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/auth/register", cashier, map[string]string{
		"username": "eve", "password": "pw", "role": domain.RoleManager,
	}); rec.Code != http.StatusForbidden {
		t.Errorf("cashier register: status %d, want 403", rec.Code)
	}

	// But a cashier completes purchases.
	if rec := do(t, h, http.MethodPost, "/inventory/", admin, map[string]string{
		"item_name": "Saline", "batch_id": "S1", "quantity": "20",
		"price": "1.00", "expiration_date": "2099-01-01",
	}); rec.Code != http.StatusOK {
		t.Fatalf("seed batch: status %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/purchases/", cashier, map[string]any{
		"first_name": "Ada", "last_name": "Lovelace", "payment_method": "cash",
		"items": []map[string]any{{"item_name": "Saline", "quantity": 2, "unit_price": 1.00}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("cashier purchase: status %d, body %s", rec.Code, rec.Body)
	}
	var purchase domain.Purchase
	if err := json.NewDecoder(rec.Body).Decode(&purchase); err != nil {
		t.Fatalf("decode purchase: %v", err)
	}
	if purchase.Cashier != "carl" {
		t.Errorf("cashier on receipt = %q, want carl", purchase.Cashier)
	}

	// Purchase log is manager-only.
	if rec := do(t, h, http.MethodGet, "/purchases/", cashier, nil); rec.Code != http.StatusForbidden {
		t.Errorf("cashier purchase log: status %d, want 403", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/purchases/", admin, nil); rec.Code != http.StatusOK {
		t.Errorf("manager purchase log: status %d, want 200", rec.Code)
	}
}

func TestAutoReorderEndpoint(t *testing.T) {
	h := testHandler(t)
	token := adminToken(t, h)

	if rec := do(t, h, http.MethodPost, "/inventory/", token, map[string]string{
		"item_name": "Omeprazole", "batch_id": "O1", "quantity": "50",
		"price": "5.25", "expiration_date": "2099-01-01",
	}); rec.Code != http.StatusOK {
		t.Fatalf("seed batch: status %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/inventory/reorder", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder: status %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		Status    string `json:"status"`
		Reordered int    `json:"reordered"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode reorder response: %v", err)
	}
	if resp.Reordered != 1 || resp.Status != "reorder placed" {
		t.Errorf("reorder response = %+v", resp)
	}

	rec = do(t, h, http.MethodPost, "/inventory/reorder", token, nil)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode second reorder response: %v", err)
	}
	if resp.Reordered != 0 || resp.Status != "no reorder needed" {
		t.Errorf("second reorder response = %+v", resp)
	}
}

func TestExpiryAlertEndpoint(t *testing.T) {
	h := testHandler(t)
	token := adminToken(t, h)

	seedRows := []map[string]string{
		{"item_name": "Insulin", "batch_id": "N1", "quantity": "10", "price": "40.00", "expiration_date": "2020-01-01"},
		{"item_name": "Insulin", "batch_id": "N2", "quantity": "10", "price": "40.00", "expiration_date": "2099-01-01"},
		{"item_name": "Saline", "batch_id": "S1", "quantity": "10", "price": "1.00", "expiration_date": domain.NoExpiration},
	}
	for _, row := range seedRows {
		if rec := do(t, h, http.MethodPost, "/inventory/", token, row); rec.Code != http.StatusOK {
			t.Fatalf("seed %s: status %d", row["batch_id"], rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/inventory/expiry-alert", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expiry alert: status %d", rec.Code)
	}
	var alerts []domain.StockBatch
	if err := json.NewDecoder(rec.Body).Decode(&alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].BatchID != "N1" {
		t.Errorf("alerts = %+v, want only the expired N1", alerts)
	}

	rec = do(t, h, http.MethodGet, "/inventory/expired?item=Insulin", token, nil)
	var check struct {
		Expired bool `json:"expired"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&check); err != nil {
		t.Fatalf("decode expired check: %v", err)
	}
	if !check.Expired {
		t.Error("expired check = false, want true")
	}
}
