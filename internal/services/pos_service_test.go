package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbox/internal/core"
)

var staff = core.Admin{Username: "ravi", Role: core.RoleStaff}

func newPOS(t *testing.T, pub SyncPublisher) (*POSService, *JournalService) {
	t.Helper()
	journal := NewJournalService(newJournalRepo(t), pub, nil, nil)
	return NewPOSService(newStore(), POSConfig{Journal: journal}), journal
}

func TestScan(t *testing.T) {
	pos, _ := newPOS(t, nil)
	ctx := context.Background()

	out, err := pos.Scan(ctx, "ABC123DEF456")
	require.NoError(t, err)
	assert.Equal(t, core.ScanExistingUser, out.Result.Status)
	assert.Equal(t, core.BannerSuccess, out.Banner.Type)
	assert.Equal(t, "Welcome back, John Doe. Balance ₹1,500", out.Banner.Text)

	out, err = pos.Scan(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.Equal(t, core.ScanNewCard, out.Result.Status)
	assert.Equal(t, core.BannerInfo, out.Banner.Type)

	out, err = pos.Scan(ctx, "   ")
	assert.ErrorIs(t, err, core.ErrEmptyCardUID)
	assert.Equal(t, core.BannerError, out.Banner.Type)
}

func TestAddBalance(t *testing.T) {
	pub := &fakePublisher{}
	pos, journal := newPOS(t, pub)
	ctx := context.Background()

	tests := []struct {
		name    string
		card    string
		amount  int64
		wantErr error
		banner  string
	}{
		{"below minimum", "ABC123DEF456", 499, core.ErrAmountBelowMinimum, "Minimum amount is ₹500"},
		{"zero", "ABC123DEF456", 0, core.ErrInvalidAmount, "Please enter a valid amount"},
		{"blank card", "", 500, core.ErrEmptyCardUID, "Please scan a card first"},
		{"unknown card", "NOPE", 500, core.ErrNotFound, "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := pos.AddBalance(ctx, staff, tt.card, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.banner, out.Banner.Text)
		})
	}

	out, err := pos.AddBalance(ctx, staff, "ABC123DEF456", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), out.User.Balance)
	assert.Equal(t, "Added ₹500. New balance ₹2,000", out.Banner.Text)

	entries, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, core.TxAdd, entries[0].Kind)
	assert.Equal(t, "ravi", entries[0].AdminName)
	assert.Equal(t, int64(2000), entries[0].BalanceAfter)
	assert.Equal(t, []int64{entries[0].ID}, pub.published())
}

func TestDeductBalance(t *testing.T) {
	pos, journal := newPOS(t, &fakePublisher{})
	ctx := context.Background()

	out, err := pos.DeductBalance(ctx, staff, "DEF456GHI789", 300, "", "Trampoline 30m")
	require.NoError(t, err)
	assert.Equal(t, int64(2200), out.User.Balance)

	entries, err := journal.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ravi", entries[0].AdminName, "deductor defaults to the operator")
	assert.Equal(t, "Trampoline 30m", entries[0].Description)

	out, err = pos.DeductBalance(ctx, staff, "GHI789JKL012", 9000, "meena", "Arcade")
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Equal(t, "Insufficient balance", out.Banner.Text)

	_, err = pos.DeductBalance(ctx, staff, "GHI789JKL012", 100, "meena", " ")
	assert.ErrorIs(t, err, core.ErrEmptyDescription)

	entries, err = journal.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed operations are not journaled")
}

func TestCreateUser(t *testing.T) {
	pos, journal := newPOS(t, nil)
	ctx := context.Background()

	_, err := pos.CreateUser(ctx, staff, core.NewUser{CardUID: "NEW1", Name: " ", Phone: "1"})
	assert.ErrorIs(t, err, core.ErrEmptyName)

	out, err := pos.CreateUser(ctx, staff, core.NewUser{CardUID: "NEW1", Name: "Meena", Phone: "9000000001"})
	require.NoError(t, err)
	assert.Equal(t, "User Meena created", out.Banner.Text)

	_, err = pos.CreateUser(ctx, staff, core.NewUser{CardUID: "NEW1", Name: "Other", Phone: "2"})
	assert.ErrorIs(t, err, core.ErrCardAlreadyLinked)

	entries, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, core.TxNewUser, entries[0].Kind)
	assert.Zero(t, entries[0].Amount)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	pos, journal := newPOS(t, pub)
	ctx := context.Background()

	_, err := pos.AddBalance(ctx, staff, "ABC123DEF456", 1000)
	require.NoError(t, err)

	entries, err := journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, core.SyncPending, entries[0].SyncStatus)
}

func TestFindByPhoneAndRecent(t *testing.T) {
	pos, _ := newPOS(t, nil)
	ctx := context.Background()

	h, err := pos.FindByPhone(ctx, "9876543211")
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", h.Name)

	_, err = pos.FindByPhone(ctx, "0000")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = pos.FindByPhone(ctx, "")
	assert.ErrorIs(t, err, core.ErrEmptyPhone)

	txs, err := pos.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestBannerFor(t *testing.T) {
	assert.Equal(t, core.Banner{}, BannerFor(nil))
	assert.Equal(t, "PlayBox server is unavailable. Please try again.", BannerFor(errDown).Text)
	assert.Equal(t, core.BannerError, BannerFor(errors.New("boom")).Type)
}
