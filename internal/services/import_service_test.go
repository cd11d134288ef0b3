package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variaciones/internal/amqp"
	"variaciones/internal/core"
	"variaciones/internal/ledger/memory"
	"variaciones/internal/storage"
)

type fakeWriter struct {
	stored core.Ledgers
	err    error
}

func (w *fakeWriter) ReplaceLedgers(_ context.Context, l core.Ledgers, source string) (storage.ImportBatch, error) {
	if w.err != nil {
		return storage.ImportBatch{}, w.err
	}
	w.stored = l
	return storage.ImportBatch{ID: "batch-1", Source: source, RealRows: len(l.Real), BudgetRows: len(l.Budget)}, nil
}

type fakePublisher struct {
	msgs   []*amqp.LedgerInvalidatedMessage
	err    error
	closed bool
}

func (p *fakePublisher) PublishInvalidation(_ context.Context, msg *amqp.LedgerInvalidatedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestImportStoresAndPublishes(t *testing.T) {
	w := &fakeWriter{}
	p := &fakePublisher{}
	svc := NewImportService(w, p)

	batch, err := svc.Import(context.Background(), memory.New(memory.Sample()), "book.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "batch-1", batch.ID)
	assert.Equal(t, "book.xlsx", batch.Source)
	assert.Len(t, w.stored.Real, len(memory.Sample().Real))

	require.Len(t, p.msgs, 1)
	assert.Equal(t, "batch-1", p.msgs[0].BatchID)
	assert.Equal(t, "import", p.msgs[0].Reason)

	require.NoError(t, svc.Close())
	assert.True(t, p.closed)
}

func TestImportSurvivesPublishFailure(t *testing.T) {
	w := &fakeWriter{}
	svc := NewImportService(w, &fakePublisher{err: errors.New("broker down")})

	_, err := svc.Import(context.Background(), memory.New(memory.Sample()), "book.xlsx")
	require.NoError(t, err)
	assert.NotEmpty(t, w.stored.Budget)
}

func TestImportWithoutPublisher(t *testing.T) {
	svc := NewImportService(&fakeWriter{}, nil)
	_, err := svc.Import(context.Background(), memory.New(memory.Sample()), "x")
	require.NoError(t, err)
	assert.NoError(t, svc.Close())
}

func TestImportStopsOnStorageError(t *testing.T) {
	p := &fakePublisher{}
	svc := NewImportService(&fakeWriter{err: errors.New("disk full")}, p)

	_, err := svc.Import(context.Background(), memory.New(memory.Sample()), "x")
	require.Error(t, err)
	assert.Empty(t, p.msgs)
}
