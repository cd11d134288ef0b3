package backend

import (
	"fmt"

	"variaciones/internal/config"
	"variaciones/internal/ledger"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:        backendType,
		RealSheet:   appConfig.RealSheetName,
		BudgetSheet: appConfig.BudgetSheetName,
		Columns: ledger.Columns{
			Period:     appConfig.ColumnPeriod,
			Category:   appConfig.ColumnCategory,
			CostCenter: appConfig.ColumnCostCenter,
			Amount:     appConfig.ColumnAmount,
		},
		DataDirectory:       appConfig.DataDirectory,
		SourceURL:           appConfig.SourceURL,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		SQLiteDBPath:        appConfig.SQLiteDBPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case XLSXBackend:
		if c.SourceURL == "" {
			return fmt.Errorf("workbook location is required for xlsx backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"; missing seed files fall back to the sample.
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, XLSXBackend, SheetsBackend, SQLiteBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
