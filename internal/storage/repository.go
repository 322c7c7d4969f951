package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"playbox/internal/core"
	"playbox/internal/log"

	_ "modernc.org/sqlite"
)

// MaxSyncAttempts bounds how often a failed entry is retried by the sweep.
const MaxSyncAttempts = 5

type JournalRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewJournalRepository(dbPath string, logger *log.Logger) (*JournalRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLite away from SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &JournalRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentJournal),
		now:     time.Now,
	}, nil
}

func (r *JournalRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Record stores e as a pending entry and returns it with ID and CreatedAt set.
func (r *JournalRepository) Record(ctx context.Context, e core.JournalEntry) (core.JournalEntry, error) {
	if _, ok := core.ParseTransactionType(string(e.Kind)); !ok {
		return core.JournalEntry{}, fmt.Errorf("invalid journal kind %q", e.Kind)
	}
	if strings.TrimSpace(e.CardUID) == "" {
		return core.JournalEntry{}, core.ErrEmptyCardUID
	}
	if e.Amount < 0 {
		return core.JournalEntry{}, core.ErrInvalidAmount
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	row, err := r.queries.CreateJournalEntry(ctx, CreateJournalEntryParams{
		Kind:         string(e.Kind),
		CardUID:      e.CardUID,
		UserName:     e.UserName,
		Amount:       e.Amount,
		AdminName:    e.AdminName,
		Description:  e.Description,
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    formatTime(e.CreatedAt),
	})
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("create journal entry: %w", err)
	}

	r.logger.DebugContext(ctx, "Journal entry recorded",
		log.FieldJournalID, row.ID,
		log.FieldTxType, row.Kind,
		log.FieldAmount, row.Amount)

	return toEntry(row), nil
}

func (r *JournalRepository) Get(ctx context.Context, id int64) (core.JournalEntry, error) {
	row, err := r.queries.GetJournalEntry(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.JournalEntry{}, fmt.Errorf("journal entry %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("get journal entry: %w", err)
	}
	return toEntry(row), nil
}

// ListRecent returns up to limit entries, newest first.
func (r *JournalRepository) ListRecent(ctx context.Context, limit int) ([]core.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.queries.ListRecentJournalEntries(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return toEntries(rows), nil
}

// PendingSync returns entries not yet exported, oldest first. Failed entries
// are included until they reach MaxSyncAttempts.
func (r *JournalRepository) PendingSync(ctx context.Context, limit int) ([]core.JournalEntry, error) {
	rows, err := r.queries.GetPendingSyncJournalEntries(ctx, MaxSyncAttempts, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	return toEntries(rows), nil
}

func (r *JournalRepository) MarkSynced(ctx context.Context, id int64) error {
	n, err := r.queries.MarkJournalEntrySynced(ctx, formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("mark journal entry synced: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("journal entry %d: %w", id, core.ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Journal entry marked as synced", log.FieldJournalID, id)
	return nil
}

func (r *JournalRepository) MarkSyncError(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := r.queries.MarkJournalEntrySyncError(ctx, msg, id); err != nil {
		return fmt.Errorf("mark journal entry sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Journal entry marked with sync error", log.FieldJournalID, id, log.FieldError, msg)
	return nil
}

func toEntries(rows []JournalRow) []core.JournalEntry {
	out := make([]core.JournalEntry, len(rows))
	for i, row := range rows {
		out[i] = toEntry(row)
	}
	return out
}

func toEntry(row JournalRow) core.JournalEntry {
	created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	return core.JournalEntry{
		ID:           row.ID,
		Kind:         core.TransactionType(row.Kind),
		CardUID:      row.CardUID,
		UserName:     row.UserName,
		Amount:       row.Amount,
		AdminName:    row.AdminName,
		Description:  row.Description,
		BalanceAfter: row.BalanceAfter,
		CreatedAt:    created,
		SyncStatus:   core.SyncStatus(row.SyncStatus),
		SyncAttempts: int(row.SyncAttempts),
		SyncError:    row.SyncError,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
