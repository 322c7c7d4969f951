// Package playbox talks to the PlayBox backend REST API.
package playbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/metrics"
	"playbox/internal/ports"
)

var _ ports.Backend = (*Client)(nil)
var _ ports.Pinger = (*Client)(nil)

const (
	breakerName     = "playbox"
	maxErrorBody    = 4 << 10
	defaultTimeout  = 10 * time.Second
	defaultFailures = 5
)

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	HTTPClient      *http.Client
	Metrics         *metrics.Collector
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
	Logger         *log.Logger
}

type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Collector
	logger  *log.Logger
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid playbox base url %q", cfg.BaseURL)
	}
	c := &Client{
		base:    base,
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.logger == nil {
		c.logger = log.Discard()
	}
	c.logger = c.logger.WithComponent(log.ComponentBackend)

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultFailures
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			c.metrics.RecordCircuitState(name, state)
		},
		IsSuccessful: func(err error) bool {
			if err == nil || callerGone(err) {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.clientError()
		},
	})
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/api/dashboard/stats", nil, nil, nil)
}

func (c *Client) ScanCard(ctx context.Context, cardUID string) (core.ScanResult, error) {
	cardUID = strings.TrimSpace(cardUID)
	if cardUID == "" {
		return core.ScanResult{}, core.ErrEmptyCardUID
	}
	var res core.ScanResult
	body := map[string]string{"cardUid": cardUID}
	if err := c.do(ctx, "scan", http.MethodPost, "/api/rfid/scan", nil, body, &res); err != nil {
		return core.ScanResult{}, err
	}
	return res, nil
}

func (c *Client) CreateUser(ctx context.Context, u core.NewUser) (core.CardHolder, error) {
	if err := u.Validate(); err != nil {
		return core.CardHolder{}, err
	}
	var out core.CardHolder
	if err := c.do(ctx, "create_user", http.MethodPost, "/api/users/create", nil, u, &out); err != nil {
		return core.CardHolder{}, err
	}
	return out, nil
}

func (c *Client) AddBalance(ctx context.Context, cardUID string, amount int64, adminName string) (core.CardHolder, error) {
	if amount <= 0 {
		return core.CardHolder{}, core.ErrInvalidAmount
	}
	q := url.Values{}
	q.Set("cardUid", cardUID)
	q.Set("amount", strconv.FormatInt(amount, 10))
	if adminName != "" {
		q.Set("adminName", adminName)
	}
	var out core.CardHolder
	if err := c.do(ctx, "add", http.MethodPost, "/api/users/add", q, nil, &out); err != nil {
		return core.CardHolder{}, err
	}
	return out, nil
}

func (c *Client) DeductBalance(ctx context.Context, cardUID string, amount int64, deductor, description string) (core.CardHolder, error) {
	if err := core.ValidateDeduction(amount, deductor, description); err != nil {
		return core.CardHolder{}, err
	}
	q := url.Values{}
	q.Set("cardUid", cardUID)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("deductor", deductor)
	q.Set("description", description)
	var out core.CardHolder
	if err := c.do(ctx, "deduct", http.MethodPost, "/api/users/deduct", q, nil, &out); err != nil {
		return core.CardHolder{}, err
	}
	return out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]core.User, error) {
	var out []core.User
	if err := c.do(ctx, "list_users", http.MethodGet, "/api/users/all", nil, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (c *Client) FindByPhone(ctx context.Context, phone string) (core.CardHolder, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return core.CardHolder{}, core.ErrEmptyPhone
	}
	var out core.CardHolder
	if err := c.do(ctx, "find_by_phone", http.MethodGet, "/api/users/phone/"+url.PathEscape(phone), nil, nil, &out); err != nil {
		return core.CardHolder{}, err
	}
	return out, nil
}

func (c *Client) UserDetails(ctx context.Context, id int64) (core.UserDetails, error) {
	var out core.UserDetails
	path := "/api/users/" + strconv.FormatInt(id, 10) + "/details"
	if err := c.do(ctx, "user_details", http.MethodGet, path, nil, nil, &out); err != nil {
		return core.UserDetails{}, err
	}
	out.Transactions = nonNil(out.Transactions)
	return out, nil
}

func (c *Client) UserStats(ctx context.Context) (core.UserStats, error) {
	var out core.UserStats
	if err := c.do(ctx, "user_stats", http.MethodGet, "/api/users/stats", nil, nil, &out); err != nil {
		return core.UserStats{}, err
	}
	return out, nil
}

func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	if err := c.do(ctx, "list_transactions", http.MethodGet, "/api/transactions/all", nil, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// FilterTransactions sends only the criteria that are set.
func (c *Client) FilterTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	q := url.Values{}
	if f.UserID != nil {
		q.Set("userId", strconv.FormatInt(*f.UserID, 10))
	}
	if s := strings.TrimSpace(f.AdminName); s != "" {
		q.Set("adminName", s)
	}
	if s := strings.TrimSpace(f.StartDate); s != "" {
		q.Set("startDate", s)
	}
	if s := strings.TrimSpace(f.EndDate); s != "" {
		q.Set("endDate", s)
	}
	var out []core.Transaction
	if err := c.do(ctx, "filter_transactions", http.MethodGet, "/api/transactions/filter", q, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (c *Client) RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []core.Transaction
	if err := c.do(ctx, "recent_transactions", http.MethodGet, "/api/transactions/recent", q, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (c *Client) TodayRevenue(ctx context.Context) (core.DailyRevenue, error) {
	var out core.DailyRevenue
	if err := c.do(ctx, "today_revenue", http.MethodGet, "/api/dashboard/today-revenue", nil, nil, &out); err != nil {
		return core.DailyRevenue{}, err
	}
	out.MostActiveStaff = nonNil(out.MostActiveStaff)
	out.MostActiveUsers = nonNil(out.MostActiveUsers)
	return out, nil
}

// do runs one request through the breaker with the per-call timeout.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	start := time.Now()
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.cb.Execute(func() (interface{}, error) {
		err := c.roundTrip(ctx, op, method, path, query, body, out)
		if err != nil && parent.Err() != nil {
			// The caller gave up; the backend said nothing about its health.
			return nil, fmt.Errorf("playbox %s: %w", op, parent.Err())
		}
		return nil, err
	})

	outcome := "success"
	var apiErr *APIError
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "circuit_open"
		c.logger.WarnContext(ctx, "circuit breaker open, request rejected", log.FieldOperation, op)
		err = fmt.Errorf("playbox %s: %w", op, ErrUnavailable)
	case callerGone(err):
		outcome = "canceled"
		c.logger.DebugContext(ctx, "backend request abandoned by caller", log.FieldOperation, op)
	case errors.As(err, &apiErr) && apiErr.clientError():
		outcome = "client_error"
	default:
		outcome = "error"
		c.logger.ErrorContext(ctx, "backend request failed",
			log.FieldOperation, op,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldError, err.Error(),
		)
	}
	c.metrics.RecordBackendCall(op, outcome, time.Since(start))
	return err
}

// callerGone reports an error caused by the caller's own context ending.
// The per-call timeout surfaces as ErrUnavailable instead.
func callerGone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("playbox %s: %w: %v", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return fmt.Errorf("playbox %s: %w: %v", op, ErrUnavailable, err)
		}
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// errorMessage pulls a readable message out of an error body, which the
// backend sends either as JSON or as plain text.
func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
