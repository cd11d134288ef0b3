package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"variaciones/internal/core"
	"variaciones/internal/ledger"

	_ "modernc.org/sqlite"
)

// ImportBatch records one successful ReplaceLedgers call.
type ImportBatch struct {
	ID         string
	Source     string
	RealRows   int
	BudgetRows int
	ImportedAt time.Time
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ ledger.Source = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Name() string { return "sqlite" }

// Load reads both ledgers inside one transaction so an import running
// concurrently is seen entirely or not at all.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Ledgers, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Ledgers{}, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	actual, err := r.loadTable(ctx, q, core.TableReal)
	if err != nil {
		return core.Ledgers{}, err
	}
	budget, err := r.loadTable(ctx, q, core.TableBudget)
	if err != nil {
		return core.Ledgers{}, err
	}
	return core.Ledgers{Real: actual, Budget: budget}, nil
}

func (r *SQLiteRepository) loadTable(ctx context.Context, q *Queries, table string) ([]core.Record, error) {
	entries, err := q.ListLedgerEntries(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", table, err)
	}
	records := make([]core.Record, 0, len(entries))
	for _, e := range entries {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, &core.InvalidAmountError{Table: table, Row: int(e.Position), Value: e.Amount}
		}
		records = append(records, core.Record{
			Period:     e.Period,
			Category:   e.Category,
			CostCenter: e.CostCenter,
			Amount:     amount,
		})
	}
	return records, nil
}

// ReplaceLedgers swaps the stored ledgers for l in a single transaction.
// Invalid ledgers are rejected before anything is written.
func (r *SQLiteRepository) ReplaceLedgers(ctx context.Context, l core.Ledgers, source string) (ImportBatch, error) {
	if err := l.Validate(); err != nil {
		return ImportBatch{}, fmt.Errorf("validate ledgers: %w", err)
	}

	batch := ImportBatch{
		ID:         uuid.NewString(),
		Source:     source,
		RealRows:   len(l.Real),
		BudgetRows: len(l.Budget),
		ImportedAt: r.now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportBatch{}, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteLedgerEntries(ctx); err != nil {
		return ImportBatch{}, fmt.Errorf("clear ledger entries: %w", err)
	}
	if err := q.DeleteImportBatches(ctx); err != nil {
		return ImportBatch{}, fmt.Errorf("clear import batches: %w", err)
	}
	if err := q.CreateImportBatch(ctx, ImportBatchRow{
		ID:         batch.ID,
		Source:     batch.Source,
		RealRows:   int64(batch.RealRows),
		BudgetRows: int64(batch.BudgetRows),
		ImportedAt: batch.ImportedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return ImportBatch{}, fmt.Errorf("create import batch: %w", err)
	}

	for table, records := range map[string][]core.Record{core.TableReal: l.Real, core.TableBudget: l.Budget} {
		for i, rec := range records {
			if err := q.InsertLedgerEntry(ctx, InsertLedgerEntryParams{
				BatchID:    batch.ID,
				Ledger:     table,
				Position:   int64(i + 1),
				Period:     rec.Period,
				Category:   rec.Category,
				CostCenter: rec.CostCenter,
				Amount:     rec.Amount.String(),
			}); err != nil {
				return ImportBatch{}, fmt.Errorf("insert %s row %d: %w", table, i+1, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportBatch{}, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Ledgers imported to SQLite",
		"component", "storage",
		"batch_id", batch.ID,
		"source", source,
		"real_rows", batch.RealRows,
		"budget_rows", batch.BudgetRows)
	return batch, nil
}

// LatestBatch returns the batch currently stored. ok is false before the
// first import.
func (r *SQLiteRepository) LatestBatch(ctx context.Context) (batch ImportBatch, ok bool, err error) {
	row, err := r.queries.GetLatestImportBatch(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportBatch{}, false, nil
	}
	if err != nil {
		return ImportBatch{}, false, fmt.Errorf("get latest import batch: %w", err)
	}
	importedAt, err := time.Parse(time.RFC3339Nano, row.ImportedAt)
	if err != nil {
		return ImportBatch{}, false, fmt.Errorf("parse imported_at %q: %w", row.ImportedAt, err)
	}
	return ImportBatch{
		ID:         row.ID,
		Source:     row.Source,
		RealRows:   int(row.RealRows),
		BudgetRows: int(row.BudgetRows),
		ImportedAt: importedAt,
	}, true, nil
}
