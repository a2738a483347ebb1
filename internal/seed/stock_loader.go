package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strings"

	"pharmaledger/m/internal/inventory"
)

// LoadStock ingests a receiving CSV (item_name, batch_id, quantity, price,
// expiration_date) into the stock ledger through the engine, so every row
// passes the same validation as a hand-keyed receipt. Bad rows are logged
// and skipped.
func LoadStock(inv *inventory.Service, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load stock seed %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read stock seed header: %v", err)
		return
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read stock seed row: %v", err)
			continue
		}
		if len(record) < 5 {
			continue
		}
		item := strings.TrimSpace(record[0])
		batchID := strings.TrimSpace(record[1])
		if item == "" || batchID == "" {
			continue
		}
		if _, err := inv.CreateOrUpdate(item, batchID, record[2], record[3], record[4]); err != nil {
			log.Printf("unable to seed batch %s/%s: %v", item, batchID, err)
		} else {
			rows++
		}
	}
	log.Printf("seeded stock ledger with %d batches", rows)
}
