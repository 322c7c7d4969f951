package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbox/internal/core"
)

func TestJournalService_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes saved id", func(t *testing.T) {
		pub := &fakePublisher{}
		s := NewJournalService(newJournalRepo(t), pub, nil, nil)
		e, err := s.Record(ctx, core.JournalEntry{Kind: core.TxAdd, CardUID: "C1", AdminName: "ravi", Amount: 700})
		require.NoError(t, err)
		assert.Positive(t, e.ID)
		assert.Equal(t, []int64{e.ID}, pub.published())
	})

	t.Run("without publisher", func(t *testing.T) {
		s := NewJournalService(newJournalRepo(t), nil, nil, nil)
		_, err := s.Record(ctx, core.JournalEntry{Kind: core.TxAdd, CardUID: "C1", AdminName: "ravi", Amount: 700})
		assert.NoError(t, err)
	})

	t.Run("invalid entry", func(t *testing.T) {
		pub := &fakePublisher{}
		s := NewJournalService(newJournalRepo(t), pub, nil, nil)
		_, err := s.Record(ctx, core.JournalEntry{Kind: core.TxAdd, CardUID: "", AdminName: "ravi"})
		assert.ErrorIs(t, err, core.ErrEmptyCardUID)
		assert.Empty(t, pub.published())
	})
}

func TestJournalService_Close(t *testing.T) {
	s := NewJournalService(newJournalRepo(t), &fakePublisher{}, nil, nil)
	assert.NoError(t, s.Close())
}
