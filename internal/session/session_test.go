package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"playbox/internal/core"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testOperators(t *testing.T) map[string]Operator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	ops, err := ParseOperators(fmt.Sprintf("anita:owner:%s, ravi:staff:%s", hash, hash))
	require.NoError(t, err)
	return ops
}

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:    testSecret,
		TTL:       time.Hour,
		Operators: testOperators(t),
		Now:       clock.Now,
	})
	require.NoError(t, err)
	return m
}

func TestParseOperators(t *testing.T) {
	ops := testOperators(t)
	require.Len(t, ops, 2)
	assert.Equal(t, core.RoleOwner, ops["anita"].Role)
	assert.Equal(t, core.RoleStaff, ops["ravi"].Role)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", " , "},
		{"missing hash", "anita:owner"},
		{"bad role", "anita:manager:$2a$04$abcdefghijklmnopqrstuu1234567890123456789012345678901"},
		{"bad hash", "anita:owner:plaintext"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOperators(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestNewManagerValidation(t *testing.T) {
	ops := testOperators(t)
	_, err := NewManager(Config{Secret: "short", TTL: time.Hour, Operators: ops})
	assert.Error(t, err)
	_, err = NewManager(Config{Secret: testSecret, Operators: ops})
	assert.Error(t, err)
	_, err = NewManager(Config{Secret: testSecret, TTL: time.Hour})
	assert.Error(t, err)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	_, _, err := m.Login("anita", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = m.Login("nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	s, token, err := m.Login("anita", "secret")
	require.NoError(t, err)
	assert.Equal(t, core.Admin{Username: "anita", Role: core.RoleOwner}, s.Admin)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, m.Len())

	got, err := m.Authenticate(token)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Logout(token))
	_, err = m.Authenticate(token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Logout(token), ErrSessionNotFound)
}

func TestUnknownOperatorPaysForCompare(t *testing.T) {
	m := newTestManager(t, &fakeClock{t: time.Now()})
	cost, err := bcrypt.Cost(m.dummyHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost, "dummy hash matches the operators' cost")

	var compared [][]byte
	m.compare = func(hash, password []byte) error {
		compared = append(compared, hash)
		return bcrypt.CompareHashAndPassword(hash, password)
	}
	_, _, err = m.Login("nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = m.Login("anita", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.Len(t, compared, 2)
	assert.Equal(t, m.dummyHash, compared[0])
	assert.Equal(t, m.operators["anita"].PasswordHash, compared[1])
}

func TestSessionsAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	a, _, err := m.Login("anita", "secret")
	require.NoError(t, err)
	b, _, err := m.Login("ravi", "secret")
	require.NoError(t, err)

	a.Transactions.Set([]core.Transaction{{ID: 1}})
	_, loaded := b.Transactions.Get()
	assert.False(t, loaded)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTokenExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	_, token, err := m.Login("ravi", "secret")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = m.Authenticate(token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, m.CleanExpired())
	assert.Zero(t, m.Len())
}

func TestRejectsForeignTokens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)
	other, err := NewManager(Config{
		Secret:    "ffffffffffffffffffffffffffffffff",
		TTL:       time.Hour,
		Operators: testOperators(t),
		Now:       clock.Now,
	})
	require.NoError(t, err)

	_, token, err := other.Login("anita", "secret")
	require.NoError(t, err)

	_, err = m.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Authenticate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := newSession("id", core.Admin{Username: "a", Role: core.RoleStaff}, time.Now(), time.Now())
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
