package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Supported values for the enumerated settings.
var (
	DataBackends  = []string{"memory", "xlsx", "sheets", "sqlite"}
	CacheBackends = []string{"memory", "redis"}
	LogLevels     = []string{"debug", "info", "warn", "error"}
	LogFormats    = []string{"text", "json"}
	PageLayouts   = []string{"wide", "centered"}
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend   string
	DataDirectory string

	// Workbook over HTTP or on disk
	SourceURL string

	// Table layout shared by every tabular backend
	RealSheetName    string
	BudgetSheetName  string
	ColumnPeriod     string
	ColumnCategory   string
	ColumnCostCenter string
	ColumnAmount     string

	// Google Sheets
	GoogleSpreadsheetID string

	// Database
	SQLiteDBPath string

	// Snapshot cache
	CacheBackend    string
	CacheTTL        time.Duration
	CacheMaxEntries int
	RedisAddr       string
	FetchTimeout    time.Duration

	// AMQP, disabled when AMQPURL is empty
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Logging
	LogLevel  string
	LogFormat string

	// Presentation
	PageTitle    string
	PageSubtitle string
	PageLayout   string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		DataDirectory: getEnv("DATA_DIRECTORY", "./data"),

		SourceURL: getEnv("SOURCE_URL", ""),

		RealSheetName:    getEnv("REAL_SHEET_NAME", "REAL"),
		BudgetSheetName:  getEnv("BUDGET_SHEET_NAME", "BUDGET"),
		ColumnPeriod:     getEnv("COLUMN_PERIOD", "MES"),
		ColumnCategory:   getEnv("COLUMN_CATEGORY", "GASTO"),
		ColumnCostCenter: getEnv("COLUMN_COST_CENTER", "CECO"),
		ColumnAmount:     getEnv("COLUMN_AMOUNT", "IMPORTE"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/variaciones.db"),

		CacheBackend:    getEnv("CACHE_BACKEND", "memory"),
		CacheTTL:        getEnvDuration("CACHE_TTL", 60*time.Second),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 8),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 30*time.Second),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "variaciones"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "ledger_invalidations"),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		PageTitle:    getEnv("PAGE_TITLE", "Análisis de Variaciones"),
		PageSubtitle: getEnv("PAGE_SUBTITLE", "Real vs Presupuesto"),
		PageLayout:   getEnv("PAGE_LAYOUT", "wide"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	checkOneOf := func(name, value string, valid []string) {
		if !slices.Contains(valid, value) {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be one of %v", name, value, valid))
		}
	}
	checkOneOf("data backend", c.DataBackend, DataBackends)
	checkOneOf("cache backend", c.CacheBackend, CacheBackends)
	checkOneOf("log level", c.LogLevel, LogLevels)
	checkOneOf("log format", c.LogFormat, LogFormats)
	checkOneOf("page layout", c.PageLayout, PageLayouts)

	switch c.DataBackend {
	case "xlsx":
		if c.SourceURL == "" {
			errors = append(errors, "SOURCE_URL is required when using xlsx backend")
		} else if strings.HasPrefix(c.SourceURL, "http") {
			if u, err := url.Parse(c.SourceURL); err != nil || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid SOURCE_URL '%s'", c.SourceURL))
			}
		} else if _, err := os.Stat(c.SourceURL); err != nil {
			errors = append(errors, fmt.Sprintf("workbook file does not exist: %s", c.SourceURL))
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "xlsx" || c.DataBackend == "sheets" {
		if strings.TrimSpace(c.RealSheetName) == "" || strings.TrimSpace(c.BudgetSheetName) == "" {
			errors = append(errors, "REAL_SHEET_NAME and BUDGET_SHEET_NAME cannot be empty")
		} else if strings.EqualFold(c.RealSheetName, c.BudgetSheetName) {
			errors = append(errors, fmt.Sprintf("REAL_SHEET_NAME and BUDGET_SHEET_NAME must differ, both are '%s'", c.RealSheetName))
		}
	}

	columns := []string{c.ColumnPeriod, c.ColumnCategory, c.ColumnCostCenter, c.ColumnAmount}
	seen := map[string]bool{}
	for _, col := range columns {
		key := strings.ToLower(strings.TrimSpace(col))
		if key == "" {
			errors = append(errors, "column names cannot be empty")
			break
		}
		if seen[key] {
			errors = append(errors, fmt.Sprintf("duplicate column name '%s'", col))
		}
		seen[key] = true
	}

	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}
	if c.CacheMaxEntries < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache max entries %d: must be at least 1", c.CacheMaxEntries))
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		errors = append(errors, "REDIS_ADDR is required when using redis cache backend")
	}
	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// AMQPEnabled reports whether invalidation messaging is configured.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
