package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
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

// JournalRow mirrors the journal_entries table.
type JournalRow struct {
	ID           int64
	Kind         string
	CardUID      string
	UserName     string
	Amount       int64
	AdminName    string
	Description  string
	BalanceAfter int64
	CreatedAt    string
	SyncStatus   string
	SyncAttempts int64
	SyncError    string
	SyncedAt     sql.NullString
}

const journalColumns = `id, kind, card_uid, user_name, amount, admin_name, description,
       balance_after, created_at, sync_status, sync_attempts, sync_error, synced_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJournalRow(s scanner) (JournalRow, error) {
	var i JournalRow
	err := s.Scan(
		&i.ID,
		&i.Kind,
		&i.CardUID,
		&i.UserName,
		&i.Amount,
		&i.AdminName,
		&i.Description,
		&i.BalanceAfter,
		&i.CreatedAt,
		&i.SyncStatus,
		&i.SyncAttempts,
		&i.SyncError,
		&i.SyncedAt,
	)
	return i, err
}

const createJournalEntry = `INSERT INTO journal_entries (
    kind, card_uid, user_name, amount, admin_name, description, balance_after, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + journalColumns

type CreateJournalEntryParams struct {
	Kind         string
	CardUID      string
	UserName     string
	Amount       int64
	AdminName    string
	Description  string
	BalanceAfter int64
	CreatedAt    string
}

func (q *Queries) CreateJournalEntry(ctx context.Context, arg CreateJournalEntryParams) (JournalRow, error) {
	row := q.db.QueryRowContext(ctx, createJournalEntry,
		arg.Kind,
		arg.CardUID,
		arg.UserName,
		arg.Amount,
		arg.AdminName,
		arg.Description,
		arg.BalanceAfter,
		arg.CreatedAt,
	)
	return scanJournalRow(row)
}

const getJournalEntry = `SELECT ` + journalColumns + ` FROM journal_entries WHERE id = ?`

func (q *Queries) GetJournalEntry(ctx context.Context, id int64) (JournalRow, error) {
	return scanJournalRow(q.db.QueryRowContext(ctx, getJournalEntry, id))
}

const listRecentJournalEntries = `SELECT ` + journalColumns + ` FROM journal_entries ORDER BY id DESC LIMIT ?`

func (q *Queries) ListRecentJournalEntries(ctx context.Context, limit int64) ([]JournalRow, error) {
	return q.list(ctx, listRecentJournalEntries, limit)
}

const getPendingSyncJournalEntries = `SELECT ` + journalColumns + ` FROM journal_entries
WHERE sync_status = 'pending' OR (sync_status = 'error' AND sync_attempts < ?)
ORDER BY id ASC
LIMIT ?`

func (q *Queries) GetPendingSyncJournalEntries(ctx context.Context, maxAttempts, limit int64) ([]JournalRow, error) {
	return q.list(ctx, getPendingSyncJournalEntries, maxAttempts, limit)
}

const markJournalEntrySynced = `UPDATE journal_entries
SET sync_status = 'synced', sync_error = '', synced_at = ?
WHERE id = ?`

func (q *Queries) MarkJournalEntrySynced(ctx context.Context, syncedAt string, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markJournalEntrySynced, syncedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markJournalEntrySyncError = `UPDATE journal_entries
SET sync_status = 'error', sync_error = ?, sync_attempts = sync_attempts + 1
WHERE id = ? AND sync_status != 'synced'`

func (q *Queries) MarkJournalEntrySyncError(ctx context.Context, syncError string, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markJournalEntrySyncError, syncError, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) list(ctx context.Context, query string, args ...interface{}) ([]JournalRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []JournalRow
	for rows.Next() {
		i, err := scanJournalRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
