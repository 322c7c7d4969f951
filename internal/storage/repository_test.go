package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbox/internal/core"
)

func newTestRepo(t *testing.T) *JournalRepository {
	t.Helper()
	repo, err := NewJournalRepository(filepath.Join(t.TempDir(), "data", "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRecordAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	e, err := repo.Record(ctx, core.JournalEntry{
		Kind:         core.TxAdd,
		CardUID:      "ABC123",
		UserName:     "John Doe",
		Amount:       500,
		AdminName:    "anita",
		Description:  "Balance top-up",
		BalanceAfter: 2000,
		CreatedAt:    at,
	})
	require.NoError(t, err)
	assert.Positive(t, e.ID)
	assert.Equal(t, core.SyncPending, e.SyncStatus)

	got, err := repo.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", got.UserName)
	assert.Equal(t, int64(2000), got.BalanceAfter)
	assert.True(t, got.CreatedAt.Equal(at))

	_, err = repo.Get(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecordValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry core.JournalEntry
	}{
		{"bad kind", core.JournalEntry{Kind: "REFUND", CardUID: "C1", AdminName: "a"}},
		{"blank card", core.JournalEntry{Kind: core.TxAdd, CardUID: " ", AdminName: "a"}},
		{"negative amount", core.JournalEntry{Kind: core.TxDeduct, CardUID: "C1", Amount: -1, AdminName: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Record(ctx, tt.entry)
			assert.Error(t, err)
		})
	}
}

func TestSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []int64
	for _, kind := range []core.TransactionType{core.TxNewUser, core.TxAdd, core.TxDeduct} {
		e, err := repo.Record(ctx, core.JournalEntry{Kind: kind, CardUID: "C1", AdminName: "ravi", Amount: 100})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	pending, err := repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, ids[0], pending[0].ID, "oldest first")

	require.NoError(t, repo.MarkSynced(ctx, ids[0]))
	require.NoError(t, repo.MarkSyncError(ctx, ids[1], errors.New("quota exceeded")))

	got, err := repo.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, core.SyncError, got.SyncStatus)
	assert.Equal(t, 1, got.SyncAttempts)
	assert.Equal(t, "quota exceeded", got.SyncError)

	pending, err = repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "failed entries are retried")

	for range MaxSyncAttempts {
		require.NoError(t, repo.MarkSyncError(ctx, ids[1], errors.New("still failing")))
	}
	pending, err = repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].ID)

	assert.ErrorIs(t, repo.MarkSynced(ctx, 999), core.ErrNotFound)
}

func TestListRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := repo.Record(ctx, core.JournalEntry{Kind: core.TxAdd, CardUID: "C1", AdminName: "a", Amount: int64(i + 1)})
		require.NoError(t, err)
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(4), recent[0].Amount)
	assert.Equal(t, int64(3), recent[1].Amount)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	repo, err := NewJournalRepository(path, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, RunMigrations(path))
}
