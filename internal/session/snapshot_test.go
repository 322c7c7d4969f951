package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotLastRequestWins(t *testing.T) {
	var snap Snapshot[string]

	ctx1, first := snap.Begin(context.Background())
	ctx2, second := snap.Begin(context.Background())

	assert.ErrorIs(t, ctx1.Err(), context.Canceled, "older load is cancelled")
	assert.NoError(t, ctx2.Err())

	assert.True(t, snap.Commit(second, "new"))
	assert.False(t, snap.Commit(first, "old"), "late result of an older load is dropped")
	snap.Finish(first)
	snap.Finish(second)

	v, ok := snap.Get()
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.False(t, snap.UpdatedAt().IsZero())
}

func TestSnapshotSetSupersedesInflight(t *testing.T) {
	var snap Snapshot[int]

	ctx, ticket := snap.Begin(context.Background())
	snap.Set(7)
	assert.Error(t, ctx.Err())
	assert.False(t, snap.Current(ticket))
	assert.False(t, snap.Commit(ticket, 1))

	v, _ := snap.Get()
	assert.Equal(t, 7, v)
}

func TestSnapshotEmpty(t *testing.T) {
	var snap Snapshot[[]int]
	v, ok := snap.Get()
	assert.False(t, ok)
	assert.Nil(t, v)

	_, ticket := snap.Begin(context.Background())
	snap.Finish(ticket)
	snap.Finish(ticket)
	assert.True(t, snap.Current(ticket))
}

func TestSessionCloseCancelsLoads(t *testing.T) {
	s := &Session{}
	ctx, _ := s.Users.Begin(context.Background())
	s.close()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
