package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fundtracker/internal/holdings"
	"fundtracker/internal/snapshot"
)

// Store persists pipeline artifacts on disk:
// one holdings file per fund, one consolidated stocks file and the summary report.
type Store struct {
	HoldingsDir string
	StocksFile  string
	ReportFile  string
}

// NewStore creates a Store and makes sure the holdings directory exists
func NewStore(holdingsDir, stocksFile, reportFile string) (*Store, error) {
	if err := os.MkdirAll(holdingsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create holdings dir: %w", err)
	}
	return &Store{
		HoldingsDir: holdingsDir,
		StocksFile:  stocksFile,
		ReportFile:  reportFile,
	}, nil
}

// HoldingsPath is the file a fund's holdings are written to
func (s *Store) HoldingsPath(fund string) string {
	return filepath.Join(s.HoldingsDir, fund+".json")
}

// SaveHoldings writes the fund's full holdings table as extracted
func (s *Store) SaveHoldings(fund string, records []holdings.Record) error {
	if records == nil {
		records = []holdings.Record{}
	}
	return writeJSON(s.HoldingsPath(fund), records)
}

// LoadHoldings reads a fund's holdings. The error wraps os.ErrNotExist when
// the fund was never collected.
func (s *Store) LoadHoldings(fund string) ([]holdings.Record, error) {
	var records []holdings.Record
	if err := readJSON(s.HoldingsPath(fund), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveStocks writes the enriched stocks keyed by identifier
func (s *Store) SaveStocks(stocks map[string]snapshot.EnrichedStock) error {
	return writeJSON(s.StocksFile, stocks)
}

// LoadStocks reads the enriched stocks file
func (s *Store) LoadStocks() (map[string]snapshot.EnrichedStock, error) {
	stocks := make(map[string]snapshot.EnrichedStock)
	if err := readJSON(s.StocksFile, &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
