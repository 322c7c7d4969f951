package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"playbox/internal/cache"
	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/metrics"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

const (
	minSecretLength    = 32
	defaultMaxSessions = 256
)

type Config struct {
	Secret      string
	TTL         time.Duration
	Operators   map[string]Operator
	MaxSessions int
	Logger      *log.Logger
	Metrics     *metrics.Collector
	// Now replaces time.Now in tests.
	Now func() time.Time
}

type claims struct {
	SessionID string    `json:"sid"`
	Role      core.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues signed session tokens and keeps the live sessions in an
// LRU bounded by MaxSessions and expiring after TTL.
type Manager struct {
	secret    []byte
	ttl       time.Duration
	operators map[string]Operator
	sessions  *cache.LRU[*Session]
	now       func() time.Time
	logger    *log.Logger
	metrics   *metrics.Collector
	// dummyHash is compared for unknown usernames so both rejections cost
	// one bcrypt round at the operators' cost.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters", minSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if len(cfg.Operators) == 0 {
		return nil, fmt.Errorf("no operators configured")
	}
	m := &Manager{
		secret:    []byte(cfg.Secret),
		ttl:       cfg.TTL,
		operators: cfg.Operators,
		now:       cfg.Now,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = log.Discard()
	}
	m.logger = m.logger.WithComponent(log.ComponentSession)

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), operatorCost(cfg.Operators))
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	m.dummyHash = dummy
	m.compare = bcrypt.CompareHashAndPassword

	limit := cfg.MaxSessions
	if limit <= 0 {
		limit = defaultMaxSessions
	}
	m.sessions = cache.NewLRU[*Session](limit, cfg.TTL,
		cache.WithClock[*Session](m.now),
		cache.WithEvictHook(func(id string, s *Session) {
			s.close()
			m.logger.Debug("session ended", log.FieldSessionID, id, log.FieldAdmin, s.Admin.Username)
		}),
	)
	return m, nil
}

// operatorCost is the highest bcrypt cost among the configured hashes.
func operatorCost(ops map[string]Operator) int {
	cost := bcrypt.MinCost
	for _, op := range ops {
		if c, err := bcrypt.Cost(op.PasswordHash); err == nil && c > cost {
			cost = c
		}
	}
	return cost
}

// Login checks the operator's password and opens a new session.
func (m *Manager) Login(username, password string) (*Session, string, error) {
	op, ok := m.operators[username]
	if !ok {
		_ = m.compare(m.dummyHash, []byte(password))
		m.logger.Warn("login rejected", log.FieldAdmin, username, "reason", "unknown operator")
		return nil, "", ErrInvalidCredentials
	}
	if err := m.compare(op.PasswordHash, []byte(password)); err != nil {
		m.logger.Warn("login rejected", log.FieldAdmin, username, "reason", "bad password")
		return nil, "", ErrInvalidCredentials
	}
	admin := core.Admin{Username: op.Username, Role: op.Role}
	if err := admin.Validate(); err != nil {
		return nil, "", err
	}

	now := m.now()
	s := newSession(uuid.NewString(), admin, now, now.Add(m.ttl))
	token, err := m.sign(s)
	if err != nil {
		return nil, "", err
	}
	m.sessions.Set(s.ID, s)
	m.metrics.SetActiveSessions(m.sessions.Len())

	m.logger.Info("operator logged in", log.NewFields().
		WithOperation(log.OpLogin).
		WithAdmin(admin.Username, string(admin.Role)).
		ToSlice()...)
	return s, token, nil
}

// Authenticate resolves a token to its live session.
func (m *Manager) Authenticate(token string) (*Session, error) {
	c, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	s, ok := m.sessions.Get(c.SessionID)
	if !ok || s.Admin.Username != c.Subject {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Logout ends the session behind token.
func (m *Manager) Logout(token string) error {
	c, err := m.parse(token)
	if err != nil {
		return err
	}
	if !m.sessions.Delete(c.SessionID) {
		return ErrSessionNotFound
	}
	m.metrics.SetActiveSessions(m.sessions.Len())
	m.logger.Info("operator logged out", log.FieldOperation, log.OpLogout, log.FieldAdmin, c.Subject)
	return nil
}

// Len is the number of live sessions.
func (m *Manager) Len() int { return m.sessions.Len() }

// CleanExpired lets the cache manager sweep expired sessions.
func (m *Manager) CleanExpired() int {
	n := m.sessions.CleanExpired()
	if n > 0 {
		m.metrics.SetActiveSessions(m.sessions.Len())
	}
	return n
}

func (m *Manager) sign(s *Session) (string, error) {
	c := claims{
		SessionID: s.ID,
		Role:      s.Admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Admin.Username,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.SessionID == "" || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}
