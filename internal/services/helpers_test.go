package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"playbox/internal/core"
	"playbox/internal/ports/memory"
	"playbox/internal/session"
	"playbox/internal/storage"
)

var fixedNow = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func newStore() *memory.Store {
	return memory.New(memory.DefaultSeeds, memory.WithClock(func() time.Time { return fixedNow }))
}

func newSession(t *testing.T, role core.Role) *session.Session {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	ops, err := session.ParseOperators(fmt.Sprintf("anita:%s:%s", role, hash))
	require.NoError(t, err)
	m, err := session.NewManager(session.Config{
		Secret:    "0123456789abcdef0123456789abcdef",
		TTL:       time.Hour,
		Operators: ops,
	})
	require.NoError(t, err)
	s, _, err := m.Login("anita", "secret")
	require.NoError(t, err)
	return s
}

func newJournalRepo(t *testing.T) *storage.JournalRepository {
	t.Helper()
	repo, err := storage.NewJournalRepository(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (p *fakePublisher) PublishJournalSync(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, id)
	return nil
}

func (p *fakePublisher) published() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.ids...)
}

// flakyBackend wraps the memory store and lets tests break or block calls.
type flakyBackend struct {
	*memory.Store

	mu          sync.Mutex
	filterErr   error
	revenueErr  error
	listErr     error
	listBlock   chan struct{}
	listStarted chan struct{}
	userBlock   chan struct{}
	userStarted chan struct{}
	userCalls   int
}

var errDown = fmt.Errorf("playbox list: %w", core.ErrBackendUnavailable)

func (b *flakyBackend) FilterTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	b.mu.Lock()
	err := b.filterErr
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return b.Store.FilterTransactions(ctx, f)
}

func (b *flakyBackend) TodayRevenue(ctx context.Context) (core.DailyRevenue, error) {
	if b.revenueErr != nil {
		return core.DailyRevenue{}, b.revenueErr
	}
	return b.Store.TodayRevenue(ctx)
}

func (b *flakyBackend) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	b.mu.Lock()
	block, started, err := b.listBlock, b.listStarted, b.listErr
	b.listBlock, b.listStarted = nil, nil
	b.mu.Unlock()
	if block != nil {
		close(started)
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return b.Store.ListTransactions(ctx)
}

func (b *flakyBackend) ListUsers(ctx context.Context) ([]core.User, error) {
	b.mu.Lock()
	b.userCalls++
	block, started := b.userBlock, b.userStarted
	b.userBlock, b.userStarted = nil, nil
	b.mu.Unlock()
	if block != nil {
		close(started)
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.Store.ListUsers(ctx)
}

func (b *flakyBackend) userCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userCalls
}

func (b *flakyBackend) setFilterErr(err error) {
	b.mu.Lock()
	b.filterErr = err
	b.mu.Unlock()
}

