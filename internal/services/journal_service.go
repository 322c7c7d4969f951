package services

import (
	"context"
	"fmt"
	"io"

	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/metrics"
)

type (
	// JournalStore persists operator activity locally.
	JournalStore interface {
		Record(ctx context.Context, e core.JournalEntry) (core.JournalEntry, error)
		ListRecent(ctx context.Context, limit int) ([]core.JournalEntry, error)
	}

	// SyncPublisher announces new journal entries to the sync worker.
	SyncPublisher interface {
		PublishJournalSync(ctx context.Context, id int64) error
	}
)

// JournalService orchestrates journal writes across SQLite and AMQP.
type JournalService struct {
	store     JournalStore
	publisher SyncPublisher
	logger    *log.Logger
	metrics   *metrics.Collector
}

// NewJournalService accepts a nil publisher; entries then wait for the
// worker's pending sweep.
func NewJournalService(store JournalStore, publisher SyncPublisher, logger *log.Logger, collector *metrics.Collector) *JournalService {
	if logger == nil {
		logger = log.Discard()
	}
	return &JournalService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentJournal),
		metrics:   collector,
	}
}

// Record saves e locally and publishes a sync message.
func (s *JournalService) Record(ctx context.Context, e core.JournalEntry) (core.JournalEntry, error) {
	// Save to SQLite first
	saved, err := s.store.Record(ctx, e)
	if err != nil {
		s.metrics.RecordJournal("record_failed")
		return core.JournalEntry{}, fmt.Errorf("record journal entry: %w", err)
	}
	s.metrics.RecordJournal("recorded")

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping sync message", log.FieldJournalID, saved.ID)
		return saved, nil
	}
	if err := s.publisher.PublishJournalSync(ctx, saved.ID); err != nil {
		// the entry is saved; the worker sweep picks it up later
		s.metrics.RecordJournal("publish_failed")
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldJournalID, saved.ID,
			log.FieldError, err.Error())
	}
	return saved, nil
}

func (s *JournalService) Recent(ctx context.Context, limit int) ([]core.JournalEntry, error) {
	entries, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	return entries, nil
}

// Close closes the store and the publisher when they hold resources.
func (s *JournalService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close journal service: %v", errs)
	}
	return nil
}
