// Package xlsx reads the REAL and BUDGET ledgers from an Excel workbook
// fetched over HTTP or opened from disk.
package xlsx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"variaciones/internal/core"
	"variaciones/internal/ledger"
)

// maxWorkbookBytes bounds downloads.
const maxWorkbookBytes = 32 << 20

// Config selects the workbook and its layout.
type Config struct {
	// Location is an http(s) URL or a local file path.
	Location    string
	RealSheet   string
	BudgetSheet string
	Columns     ledger.Columns
	HTTPClient  *http.Client
}

type Source struct {
	location    string
	realSheet   string
	budgetSheet string
	cols        ledger.Columns
	client      *http.Client
}

var _ ledger.Source = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	loc := strings.TrimSpace(cfg.Location)
	if loc == "" {
		return nil, errors.New("missing workbook location")
	}
	s := &Source{
		location:    loc,
		realSheet:   cfg.RealSheet,
		budgetSheet: cfg.BudgetSheet,
		cols:        cfg.Columns.WithDefaults(),
		client:      cfg.HTTPClient,
	}
	if s.realSheet == "" {
		s.realSheet = core.TableReal
	}
	if s.budgetSheet == "" {
		s.budgetSheet = core.TableBudget
	}
	if s.client == nil {
		s.client = newHTTPClient()
	}
	return s, nil
}

func (s *Source) Name() string { return "xlsx" }

// Load fetches the workbook once and parses both sheets from it.
func (s *Source) Load(ctx context.Context) (core.Ledgers, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		return core.Ledgers{}, err
	}
	return Parse(bytes.NewReader(data), s.realSheet, s.budgetSheet, s.cols)
}

// Parse reads both ledgers from a workbook stream.
func Parse(r io.Reader, realSheet, budgetSheet string, cols ledger.Columns) (core.Ledgers, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return core.Ledgers{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	actual, err := readSheet(f, realSheet, core.TableReal, cols)
	if err != nil {
		return core.Ledgers{}, err
	}
	budget, err := readSheet(f, budgetSheet, core.TableBudget, cols)
	if err != nil {
		return core.Ledgers{}, err
	}
	return core.Ledgers{Real: actual, Budget: budget}, nil
}

// readSheet uses displayed text for the dimensions and the stored value for
// amounts, so a "0 decimals" number format cannot round the figures.
func readSheet(f *excelize.File, sheet, table string, cols ledger.Columns) ([]core.Record, error) {
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		return nil, fmt.Errorf("%s: sheet %q not found in workbook (sheets: %v)", table, sheet, f.GetSheetList())
	}
	display, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", table, sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", table, sheet, err)
	}
	if len(display) > 0 {
		mergeColumn(display, raw, ledger.ColumnIndex(display[0], cols.Amount))
	}
	return ledger.ParseTable(table, display, cols)
}

// mergeColumn overwrites column col of every data row in dst with src.
func mergeColumn(dst, src [][]string, col int) {
	if col < 0 {
		return
	}
	for i := 1; i < len(dst) && i < len(src); i++ {
		v := ""
		if col < len(src[i]) {
			v = src[i][col]
		}
		for len(dst[i]) <= col {
			dst[i] = append(dst[i], "")
		}
		dst[i][col] = v
	}
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(s.location, "http://") && !strings.HasPrefix(s.location, "https://") {
		data, err := os.ReadFile(s.location)
		if err != nil {
			return nil, fmt.Errorf("read workbook: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download workbook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download workbook: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWorkbookBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download workbook: %w", err)
	}
	if len(data) > maxWorkbookBytes {
		return nil, fmt.Errorf("download workbook: larger than %d bytes", maxWorkbookBytes)
	}

	slog.DebugContext(ctx, "Workbook downloaded",
		"component", "xlsx",
		"bytes", len(data),
		"duration", time.Since(start))
	return data, nil
}

// newHTTPClient returns a client with pooled connections and bounded
// handshake and header timeouts. The overall deadline comes from ctx.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport}
}
