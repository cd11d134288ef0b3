// Package ledger loads the REAL and BUDGET tables from a tabular source and
// keeps a time-bounded snapshot of them for the view builder.
package ledger

import (
	"context"
	"time"

	"variaciones/internal/core"
)

// Ports for outbound adapters.
type (
	// Source produces both ledgers in one call. A source either returns both
	// tables or an error; it never returns one table alone.
	Source interface {
		Name() string
		Load(ctx context.Context) (core.Ledgers, error)
	}

	// Snapshot is one consistent read of a source.
	Snapshot struct {
		Ledgers   core.Ledgers `json:"ledgers"`
		Source    string       `json:"source"`
		FetchedAt time.Time    `json:"fetched_at"`
	}

	// Columns maps ledger dimensions to header names in the source tables.
	Columns struct {
		Period     string
		Category   string
		CostCenter string
		Amount     string
	}
)

// Default header names used by the finance workbook.
const (
	DefaultPeriodColumn     = "MES"
	DefaultCategoryColumn   = "GASTO"
	DefaultCostCenterColumn = "CECO"
	DefaultAmountColumn     = "IMPORTE"
)

// DefaultColumns returns the workbook's standard header names.
func DefaultColumns() Columns {
	return Columns{
		Period:     DefaultPeriodColumn,
		Category:   DefaultCategoryColumn,
		CostCenter: DefaultCostCenterColumn,
		Amount:     DefaultAmountColumn,
	}
}

// WithDefaults fills empty names from DefaultColumns.
func (c Columns) WithDefaults() Columns {
	d := DefaultColumns()
	if c.Period == "" {
		c.Period = d.Period
	}
	if c.Category == "" {
		c.Category = d.Category
	}
	if c.CostCenter == "" {
		c.CostCenter = d.CostCenter
	}
	if c.Amount == "" {
		c.Amount = d.Amount
	}
	return c
}
