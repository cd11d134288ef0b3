// Package google reads the REAL and BUDGET ledgers from a Google
// Spreadsheet with the Sheets API.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"variaciones/internal/core"
	"variaciones/internal/ledger"
)

// Config selects the spreadsheet and its layout.
type Config struct {
	SpreadsheetID string
	RealSheet     string
	BudgetSheet   string
	Columns       ledger.Columns
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	realSheet     string
	budgetSheet   string
	cols          ledger.Columns
}

var _ ledger.Source = (*Client)(nil)

// New creates a client authenticated with service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService builds a client around an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	c := &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		realSheet:     cfg.RealSheet,
		budgetSheet:   cfg.BudgetSheet,
		cols:          cfg.Columns.WithDefaults(),
	}
	if c.realSheet == "" {
		c.realSheet = core.TableReal
	}
	if c.budgetSheet == "" {
		c.budgetSheet = core.TableBudget
	}
	return c
}

func (c *Client) Name() string { return "sheets" }

// Load reads both tabs concurrently. Either failure fails the load.
func (c *Client) Load(ctx context.Context) (core.Ledgers, error) {
	if c.svc == nil {
		return core.Ledgers{}, errors.New("sheets service not initialized")
	}

	var l core.Ledgers
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := c.readTable(gctx, c.realSheet, core.TableReal)
		l.Real = records
		return err
	})
	g.Go(func() error {
		records, err := c.readTable(gctx, c.budgetSheet, core.TableBudget)
		l.Budget = records
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Ledgers{}, err
	}
	return l, nil
}

func (c *Client) readTable(ctx context.Context, sheet, table string) ([]core.Record, error) {
	start := time.Now()
	rng := fmt.Sprintf("%s!A:Z", quoteSheet(sheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%s: read range %s: %w", table, rng, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, v := range resp.Values {
		rows[i] = ledger.ToStrings(v)
	}
	records, err := ledger.ParseTable(table, rows, c.cols)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Sheet read",
		"component", "sheets",
		"sheet", sheet,
		"rows", len(records),
		"duration", time.Since(start))
	return records, nil
}

// quoteSheet wraps a sheet title in single quotes for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// newSheetsService initializes a read-only Sheets service using service
// account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials", "component", "sheets")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "component", "sheets", "path", serviceAccountFile)
		var err error
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "component", "sheets")
	return service, nil
}
