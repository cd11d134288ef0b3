package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type ImportBatchRow struct {
	ID         string
	Source     string
	RealRows   int64
	BudgetRows int64
	ImportedAt string
}

type LedgerEntry struct {
	ID         int64
	BatchID    string
	Ledger     string
	Position   int64
	Period     string
	Category   string
	CostCenter string
	Amount     string
}

const createImportBatch = `
INSERT INTO import_batches (id, source, real_rows, budget_rows, imported_at)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateImportBatch(ctx context.Context, arg ImportBatchRow) error {
	_, err := q.db.ExecContext(ctx, createImportBatch,
		arg.ID, arg.Source, arg.RealRows, arg.BudgetRows, arg.ImportedAt)
	return err
}

const deleteImportBatches = `DELETE FROM import_batches`

func (q *Queries) DeleteImportBatches(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteImportBatches)
	return err
}

const deleteLedgerEntries = `DELETE FROM ledger_entries`

func (q *Queries) DeleteLedgerEntries(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteLedgerEntries)
	return err
}

const insertLedgerEntry = `
INSERT INTO ledger_entries (batch_id, ledger, position, period, category, cost_center, amount)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type InsertLedgerEntryParams struct {
	BatchID    string
	Ledger     string
	Position   int64
	Period     string
	Category   string
	CostCenter string
	Amount     string
}

func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) error {
	_, err := q.db.ExecContext(ctx, insertLedgerEntry,
		arg.BatchID, arg.Ledger, arg.Position, arg.Period, arg.Category, arg.CostCenter, arg.Amount)
	return err
}

const listLedgerEntries = `
SELECT id, batch_id, ledger, position, period, category, cost_center, amount
FROM ledger_entries
WHERE ledger = ?
ORDER BY position
`

func (q *Queries) ListLedgerEntries(ctx context.Context, ledger string) ([]LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, listLedgerEntries, ledger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LedgerEntry
	for rows.Next() {
		var i LedgerEntry
		if err := rows.Scan(
			&i.ID,
			&i.BatchID,
			&i.Ledger,
			&i.Position,
			&i.Period,
			&i.Category,
			&i.CostCenter,
			&i.Amount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLatestImportBatch = `
SELECT id, source, real_rows, budget_rows, imported_at
FROM import_batches
ORDER BY imported_at DESC
LIMIT 1
`

func (q *Queries) GetLatestImportBatch(ctx context.Context) (ImportBatchRow, error) {
	row := q.db.QueryRowContext(ctx, getLatestImportBatch)
	var i ImportBatchRow
	err := row.Scan(&i.ID, &i.Source, &i.RealRows, &i.BudgetRows, &i.ImportedAt)
	return i, err
}
