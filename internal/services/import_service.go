package services

import (
	"context"
	"fmt"
	"log/slog"

	"variaciones/internal/amqp"
	"variaciones/internal/core"
	"variaciones/internal/ledger"
	"variaciones/internal/storage"
)

// LedgerWriter persists a complete pair of ledgers.
type LedgerWriter interface {
	ReplaceLedgers(ctx context.Context, l core.Ledgers, source string) (storage.ImportBatch, error)
}

// InvalidationPublisher announces that stored ledgers changed.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, msg *amqp.LedgerInvalidatedMessage) error
	Close() error
}

// ImportService stores imported ledgers and tells running servers to drop
// their cached snapshots.
type ImportService struct {
	storage   LedgerWriter
	publisher InvalidationPublisher
}

// NewImportService creates the service. publisher may be nil when AMQP is
// not configured.
func NewImportService(storage LedgerWriter, publisher InvalidationPublisher) *ImportService {
	return &ImportService{
		storage:   storage,
		publisher: publisher,
	}
}

// Import loads src, stores the result and publishes an invalidation. A
// failed publish is logged; the stored ledgers stay in place.
func (s *ImportService) Import(ctx context.Context, src ledger.Source, location string) (storage.ImportBatch, error) {
	ledgers, err := src.Load(ctx)
	if err != nil {
		return storage.ImportBatch{}, fmt.Errorf("load %s: %w", src.Name(), err)
	}

	batch, err := s.storage.ReplaceLedgers(ctx, ledgers, location)
	if err != nil {
		return storage.ImportBatch{}, fmt.Errorf("store ledgers: %w", err)
	}

	if err := s.publishInvalidation(ctx, batch); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger invalidation",
			"component", "import",
			"batch_id", batch.ID,
			"error", err)
	}
	return batch, nil
}

func (s *ImportService) publishInvalidation(ctx context.Context, batch storage.ImportBatch) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping invalidation message", "component", "import")
		return nil
	}
	return s.publisher.PublishInvalidation(ctx, amqp.NewLedgerInvalidatedMessage("sqlite", "import", batch.ID))
}

// Close releases the publisher.
func (s *ImportService) Close() error {
	if s.publisher != nil {
		return s.publisher.Close()
	}
	return nil
}
