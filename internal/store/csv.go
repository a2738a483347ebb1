package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pharmaledger/m/domain"
)

// CSVStore keeps the ledger in a comma-delimited text file with a header row.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store over the given file path. The file is created
// lazily on first write; reads tolerate its absence.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// EnsureFile creates the backing file with its header row if it does not
// exist yet. Mutation paths call this before their first write.
func (s *CSVStore) EnsureFile() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat inventory table: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create inventory directory: %w", err)
		}
	}
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create inventory table: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write inventory header: %w", err)
	}
	writer.Flush()
	return writer.Error()
}

// Load reads the whole table. A missing file is an empty table.
func (s *CSVStore) Load() ([]domain.StockBatch, error) {
	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return []domain.StockBatch{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open inventory table: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read inventory table: %w", err)
	}
	if len(rows) == 0 {
		return []domain.StockBatch{}, nil
	}

	batches := make([]domain.StockBatch, 0, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		if len(row) < len(Header) {
			continue
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(row[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad quantity %q for batch %q: %w", row[2], row[1], err)
		}
		batches = append(batches, domain.StockBatch{
			ItemName:       row[0],
			BatchID:        row[1],
			Quantity:       qty,
			Price:          row[3],
			ExpirationDate: row[4],
			DateAdded:      row[5],
			DateUpdated:    row[6],
			DateRemoved:    row[7],
		})
	}
	return batches, nil
}

// Replace rewrites the table to hold exactly the given batches. The write
// goes to a temp file first and is renamed over the table so a failed write
// never leaves a half-written ledger behind.
func (s *CSVStore) Replace(batches []domain.StockBatch) error {
	if err := s.EnsureFile(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".inventory-*.csv")
	if err != nil {
		return fmt.Errorf("create temp inventory table: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("write inventory header: %w", err)
	}
	for _, b := range batches {
		row := []string{
			b.ItemName, b.BatchID, strconv.FormatInt(b.Quantity, 10), b.Price,
			b.ExpirationDate, b.DateAdded, b.DateUpdated, b.DateRemoved,
		}
		if err := writer.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write inventory row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush inventory table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp inventory table: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace inventory table: %w", err)
	}
	return nil
}
