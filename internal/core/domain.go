package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Table names used by the two ledgers.
const (
	TableReal   = "REAL"
	TableBudget = "BUDGET"
)

const (
	DimPeriod     Dimension = "PERIOD"
	DimCategory   Dimension = "CATEGORY"
	DimCostCenter Dimension = "COST_CENTER"
	DimAmount     Dimension = "AMOUNT"
)

type (
	// Dimension names a field of a ledger record.
	Dimension string

	// Record is one ledger row. Records are produced by a source and never
	// mutated by this package.
	Record struct {
		Period     string
		Category   string
		CostCenter string
		Amount     decimal.Decimal
	}

	// Ledgers holds the actual (REAL) and planned (BUDGET) tables.
	Ledgers struct {
		Real   []Record
		Budget []Record
	}

	// Key identifies an aggregated group. Dimensions outside the grouping
	// are left empty.
	Key struct {
		Period     string
		Category   string
		CostCenter string
	}

	// Selection is the period / cost center picked by the presentation layer.
	Selection struct {
		Period     string
		CostCenter string
	}
)

var (
	ErrSourceUnavailable = errors.New("ledger source unavailable")
	ErrMissingDimension  = errors.New("missing dimension")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidGrouping   = errors.New("invalid grouping dimensions")
)

// IsGroupable reports whether d can be used as a grouping key.
func (d Dimension) IsGroupable() bool {
	switch d {
	case DimPeriod, DimCategory, DimCostCenter:
		return true
	default:
		return false
	}
}

func (d Dimension) String() string { return string(d) }

// Validate fails closed on any empty dimension.
func (r Record) Validate() error {
	if f := r.missingField(); f != "" {
		return fmt.Errorf("%w: %s", ErrMissingDimension, f)
	}
	return nil
}

// missingField returns the first empty dimension of r, or "".
func (r Record) missingField() Dimension {
	switch {
	case strings.TrimSpace(r.Period) == "":
		return DimPeriod
	case strings.TrimSpace(r.Category) == "":
		return DimCategory
	case strings.TrimSpace(r.CostCenter) == "":
		return DimCostCenter
	}
	return ""
}

// ValidateTable checks every record of a table. Row numbers in the returned
// error are 1-based positions in records.
func ValidateTable(table string, records []Record) error {
	for i, r := range records {
		if f := r.missingField(); f != "" {
			return &MissingDimensionError{Table: table, Row: i + 1, Field: f}
		}
	}
	return nil
}

// Validate checks both tables.
func (l Ledgers) Validate() error {
	if err := ValidateTable(TableReal, l.Real); err != nil {
		return err
	}
	return ValidateTable(TableBudget, l.Budget)
}

// Less orders keys by period, then category, then cost center.
func (k Key) Less(o Key) bool {
	if k.Period != o.Period {
		return k.Period < o.Period
	}
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	return k.CostCenter < o.CostCenter
}

func (k Key) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{k.Period, k.Category, k.CostCenter} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// MissingDimensionError reports a record or header without a required field.
// Row 0 means the header row.
type MissingDimensionError struct {
	Table string
	Row   int
	Field Dimension
}

func (e *MissingDimensionError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("%s: column %s not found in header", e.Table, e.Field)
	}
	return fmt.Sprintf("%s row %d: empty %s", e.Table, e.Row, e.Field)
}

func (e *MissingDimensionError) Unwrap() error { return ErrMissingDimension }

// InvalidAmountError reports an amount cell that is not a number.
type InvalidAmountError struct {
	Table string
	Row   int
	Value string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("%s row %d: invalid amount %q", e.Table, e.Row, e.Value)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }
