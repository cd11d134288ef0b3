package backend

import (
	"context"

	"variaciones/internal/ledger"
)

// Backend is the ledger source selected by DATA_BACKEND.
type Backend = ledger.Source

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Table layout, shared by every tabular backend
	RealSheet   string
	BudgetSheet string
	Columns     ledger.Columns

	// Memory backend specific
	DataDirectory string

	// xlsx specific
	SourceURL string

	// Google Sheets specific
	GoogleSpreadsheetID string

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	XLSXBackend   BackendType = "xlsx"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, XLSXBackend, SheetsBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
