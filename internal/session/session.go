// Package session keeps the state of a logged-in operator: who they are and
// the dashboard views they loaded.
package session

import (
	"context"
	"time"

	"playbox/internal/analytics"
	"playbox/internal/core"
)

// TransactionView is what the dashboard currently shows.
type TransactionView struct {
	Items    []core.Transaction `json:"transactions"`
	Criteria analytics.Criteria `json:"criteria"`
	Query    string             `json:"query,omitempty"`
}

// UserView is the last loaded users list with its summary.
type UserView struct {
	Users []core.User    `json:"users"`
	Stats core.UserStats `json:"stats"`
}

type Session struct {
	ID        string
	Admin     core.Admin
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Transactions is the full list as last fetched.
	Transactions Snapshot[[]core.Transaction]
	View         Snapshot[TransactionView]
	Users        Snapshot[UserView]
}

func newSession(id string, admin core.Admin, issued, expires time.Time) *Session {
	return &Session{ID: id, Admin: admin, IssuedAt: issued, ExpiresAt: expires}
}

// close aborts every load still running for the session.
func (s *Session) close() {
	s.Transactions.cancel()
	s.View.cancel()
	s.Users.cancel()
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
