package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"playbox/internal/amqp"
	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/metrics"
	"playbox/internal/sheets"
	"playbox/internal/storage"
)

// JournalStore is the part of the journal repository the worker uses.
type JournalStore interface {
	Get(ctx context.Context, id int64) (core.JournalEntry, error)
	PendingSync(ctx context.Context, limit int) ([]core.JournalEntry, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64, cause error) error
}

// SyncWorker copies journal entries from SQLite to Google Sheets.
type SyncWorker struct {
	store     JournalStore
	exporter  sheets.JournalExporter
	batchSize int
	logger    *log.Logger
	metrics   *metrics.Collector
}

func NewSyncWorker(store JournalStore, exporter sheets.JournalExporter, batchSize int, logger *log.Logger, collector *metrics.Collector) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
		metrics:   collector,
	}
}

// HandleSyncMessage processes one journal sync message from AMQP. Returning
// an error requeues the message, so entries past storage.MaxSyncAttempts are
// acknowledged without another export.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.JournalSyncMessage) error {
	entry, err := w.store.Get(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Dropping sync message for unknown entry", log.FieldJournalID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get journal entry: %w", err)
	}
	if entry.SyncStatus == core.SyncDone {
		w.logger.DebugContext(ctx, "Entry already synced", log.FieldJournalID, msg.ID)
		return nil
	}
	if entry.SyncStatus == core.SyncError && entry.SyncAttempts >= storage.MaxSyncAttempts {
		w.logger.WarnContext(ctx, "Entry exhausted its sync attempts, leaving it in error",
			log.FieldJournalID, msg.ID,
			"attempts", entry.SyncAttempts)
		return nil
	}
	return w.syncEntry(ctx, entry)
}

// ProcessPending syncs one batch of entries that were never exported. It
// recovers entries whose AMQP message was lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		log.FieldOperation, log.OpStartup,
		"synced", synced,
		"errors", failed)
	return nil
}

// RunPeriodic sweeps pending entries every interval until ctx is done.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			synced, failed, err := w.ProcessPending(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err.Error())
				continue
			}
			if synced+failed > 0 {
				w.logger.InfoContext(ctx, "Periodic sync completed", "synced", synced, "errors", failed)
			}
		}
	}
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending entries: %w", err)
	}
	for _, entry := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.syncEntry(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync entry", log.FieldJournalID, entry.ID, log.FieldError, err.Error())
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncEntry(ctx context.Context, entry core.JournalEntry) error {
	ref, err := w.exporter.AppendEntry(ctx, entry)
	if err != nil {
		w.metrics.RecordJournal("sync_failed")
		if markErr := w.store.MarkSyncError(ctx, entry.ID, err); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldJournalID, entry.ID, log.FieldError, markErr.Error())
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row exists in the sheet; a failed mark only means a possible duplicate later.
	if err := w.store.MarkSynced(ctx, entry.ID); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldJournalID, entry.ID, log.FieldError, err.Error())
	}
	w.metrics.RecordJournal("synced")

	w.logger.InfoContext(ctx, "Synced journal entry",
		log.FieldOperation, log.OpSync,
		log.FieldJournalID, entry.ID,
		log.FieldSheetsRef, ref,
		log.FieldTxType, string(entry.Kind),
		log.FieldAmount, entry.Amount)
	return nil
}
