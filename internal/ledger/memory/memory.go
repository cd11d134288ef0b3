// Package memory provides an in-process ledger source seeded from CSV files
// or a small built-in sample.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"

	"variaciones/internal/core"
	"variaciones/internal/ledger"
)

// Seed file names looked up by NewFromFiles.
const (
	RealFile   = "real.csv"
	BudgetFile = "budget.csv"
)

type Store struct {
	mu      sync.RWMutex
	ledgers core.Ledgers
}

var _ ledger.Source = (*Store)(nil)

func New(l core.Ledgers) *Store {
	return &Store{ledgers: copyLedgers(l)}
}

// NewFromFiles reads base/real.csv and base/budget.csv. When neither file
// exists the built-in sample is used; a single missing file is an error.
func NewFromFiles(base string, cols ledger.Columns) (*Store, error) {
	realRows, realErr := readCSV(filepath.Join(base, RealFile))
	budgetRows, budgetErr := readCSV(filepath.Join(base, BudgetFile))

	if errors.Is(realErr, fs.ErrNotExist) && errors.Is(budgetErr, fs.ErrNotExist) {
		return New(Sample()), nil
	}
	if realErr != nil {
		return nil, fmt.Errorf("read %s: %w", RealFile, realErr)
	}
	if budgetErr != nil {
		return nil, fmt.Errorf("read %s: %w", BudgetFile, budgetErr)
	}

	actual, err := ledger.ParseTable(core.TableReal, realRows, cols)
	if err != nil {
		return nil, err
	}
	budget, err := ledger.ParseTable(core.TableBudget, budgetRows, cols)
	if err != nil {
		return nil, err
	}
	return New(core.Ledgers{Real: actual, Budget: budget}), nil
}

func (s *Store) Name() string { return "memory" }

// Load returns a copy of both tables.
func (s *Store) Load(_ context.Context) (core.Ledgers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLedgers(s.ledgers), nil
}

// Replace swaps both tables after validating them.
func (s *Store) Replace(_ context.Context, l core.Ledgers) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers = copyLedgers(l)
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func copyLedgers(l core.Ledgers) core.Ledgers {
	return core.Ledgers{
		Real:   append([]core.Record(nil), l.Real...),
		Budget: append([]core.Record(nil), l.Budget...),
	}
}

// Sample returns a small two-period dataset covering the interesting
// cases: overspend, underspend, unbudgeted spend and an unspent budget.
func Sample() core.Ledgers {
	r := func(period, category, costCenter string, amount int64) core.Record {
		return core.Record{Period: period, Category: category, CostCenter: costCenter, Amount: decimal.NewFromInt(amount)}
	}
	return core.Ledgers{
		Real: []core.Record{
			r("2024-01", "Nómina", "Ventas", 120000),
			r("2024-01", "Nómina", "TI", 95000),
			r("2024-01", "Viajes", "Ventas", 18500),
			r("2024-01", "Software", "TI", 7200),
			r("2024-01", "Consultoría", "TI", 4000),
			r("2024-02", "Nómina", "Ventas", 121000),
			r("2024-02", "Nómina", "TI", 95000),
			r("2024-02", "Viajes", "Ventas", 9800),
			r("2024-02", "Software", "TI", 7600),
			r("2024-02", "Marketing", "Ventas", 15000),
		},
		Budget: []core.Record{
			r("2024-01", "Nómina", "Ventas", 118000),
			r("2024-01", "Nómina", "TI", 96000),
			r("2024-01", "Viajes", "Ventas", 15000),
			r("2024-01", "Software", "TI", 8000),
			r("2024-01", "Formación", "TI", 3000),
			r("2024-02", "Nómina", "Ventas", 118000),
			r("2024-02", "Nómina", "TI", 96000),
			r("2024-02", "Viajes", "Ventas", 12000),
			r("2024-02", "Software", "TI", 8000),
			r("2024-02", "Marketing", "Ventas", 12000),
			r("2024-02", "Marketing", "Dirección", 5000),
		},
	}
}
