package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"pharmaledger/m/internal/api"
	"pharmaledger/m/internal/config"
	"pharmaledger/m/internal/database"
	"pharmaledger/m/internal/inventory"
	"pharmaledger/m/internal/migrations"
	"pharmaledger/m/internal/purchases"
	"pharmaledger/m/internal/roles"
	"pharmaledger/m/internal/seed"
	"pharmaledger/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)

	var ledger store.Store
	switch cfg.StockBackend {
	case "sqlite":
		s, err := store.NewSQLiteStore(db)
		if err != nil {
			log.Fatalf("stock store init failed: %v", err)
		}
		ledger = s
	default:
		s := store.NewCSVStore(cfg.StockFile)
		if err := s.EnsureFile(); err != nil {
			log.Fatalf("stock table init failed: %v", err)
		}
		ledger = s
	}

	inv := inventory.NewService(ledger)
	if cfg.StockSeedFile != "" {
		seed.LoadStock(inv, cfg.StockSeedFile)
	}

	handler := api.New(inv, purchases.NewService(db, inv), roles.NewService(db), cfg)

	log.Printf("pharmacy ledger server starting on :%s (stock backend: %s)", cfg.HTTPPort, cfg.StockBackend)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
