package migrations

import (
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"pharmaledger/m/domain"
)

// Run creates the database schema for accounts and the purchase log.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            failed_attempts INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS purchases (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            payment_method TEXT,
            cashier TEXT NOT NULL,
            grand_total REAL NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS purchase_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            purchase_id INTEGER NOT NULL,
            item_name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            unit_price REAL NOT NULL,
            subtotal REAL NOT NULL,
            FOREIGN KEY(purchase_id) REFERENCES purchases(id)
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}

	seedAdmin(db)
}

// seedAdmin inserts the default manager account on first run so the system
// is reachable before any other account exists.
func seedAdmin(db *sqlx.DB) {
	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM users WHERE username = 'admin'`); err != nil {
		log.Fatalf("admin lookup failed: %v", err)
	}
	if count > 0 {
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("unable to hash admin password: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO users (username, password, role) VALUES ('admin', $1, $2)`,
		hashed, domain.RoleManager); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}
	log.Printf("seeded default admin account")
}
