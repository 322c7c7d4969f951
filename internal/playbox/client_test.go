package playbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbox/internal/core"
	"playbox/internal/metrics"
	"playbox/internal/session"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL, Timeout: time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "localhost"})
	assert.Error(t, err)
}

func TestScanCard(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rfid/scan", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ABC123", body["cardUid"])
		writeJSON(w, http.StatusOK, map[string]any{"status": "EXISTING_USER", "name": "John", "balance": 1500})
	}))

	res, err := c.ScanCard(context.Background(), " ABC123 ")
	require.NoError(t, err)
	assert.Equal(t, core.ScanExistingUser, res.Status)
	require.NotNil(t, res.Balance)
	assert.Equal(t, int64(1500), *res.Balance)

	_, err = c.ScanCard(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrEmptyCardUID)
}

func TestBalanceQueryParameters(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/api/users/add":
			assert.Equal(t, "C1", q.Get("cardUid"))
			assert.Equal(t, "500", q.Get("amount"))
			assert.Equal(t, "anita", q.Get("adminName"))
			writeJSON(w, http.StatusOK, core.CardHolder{ID: 1, CardUID: "C1", Balance: 2000})
		case "/api/users/deduct":
			assert.Equal(t, "Trampoline 30m", q.Get("description"))
			assert.Equal(t, "ravi", q.Get("deductor"))
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Insufficient balance"})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	h, err := c.AddBalance(ctx, "C1", 500, "anita")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), h.Balance)

	_, err = c.DeductBalance(ctx, "C1", 9000, "ravi", "Trampoline 30m")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	_, err = c.DeductBalance(ctx, "C1", 100, "ravi", "")
	assert.ErrorIs(t, err, core.ErrEmptyDescription)
}

func TestFilterSendsOnlySetCriteria(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		_, _ = w.Write([]byte("null"))
	}))

	uid := int64(7)
	txs, err := c.FilterTransactions(context.Background(), core.TransactionFilter{UserID: &uid, StartDate: "2024-01-01"})
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
	assert.Equal(t, "startDate=2024-01-01&userId=7", got)
}

func TestFindByPhoneNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/phone/98765", r.URL.Path)
		http.Error(w, "User not found", http.StatusNotFound)
	}))

	_, err := c.FindByPhone(context.Background(), "98765")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "User not found")
}

func TestServerErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int32
	collector := metrics.New()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), func(cfg *Config) {
		cfg.BreakerFailures = 2
		cfg.BreakerTimeout = time.Minute
		cfg.Metrics = collector
	})
	ctx := context.Background()

	for range 2 {
		_, err := c.ListTransactions(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	_, err := c.ListTransactions(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}), func(cfg *Config) { cfg.BreakerFailures = 1 })

	for range 3 {
		_, err := c.UserDetails(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestSupersededLoadsDoNotTripBreaker(t *testing.T) {
	arrived := make(chan struct{}, 8)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/rfid/scan" {
			writeJSON(w, http.StatusOK, map[string]any{"status": "NEW_CARD"})
			return
		}
		arrived <- struct{}{}
		<-r.Context().Done()
	}), func(cfg *Config) {
		cfg.BreakerFailures = 2
		cfg.BreakerTimeout = time.Minute
	})

	var snap session.Snapshot[[]core.Transaction]
	errs := make(chan error, 6)
	for range 6 {
		ctx, ticket := snap.Begin(context.Background())
		go func() {
			defer snap.Finish(ticket)
			_, err := c.ListTransactions(ctx)
			errs <- err
		}()
		<-arrived
	}
	// a seventh load supersedes the sixth
	_, last := snap.Begin(context.Background())
	snap.Finish(last)

	for range 6 {
		err := <-errs
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	res, err := c.ScanCard(context.Background(), "C9")
	require.NoError(t, err)
	assert.Equal(t, core.ScanNewCard, res.Status)
}

func TestCallerDeadlineDoesNotTripBreaker(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/users/all" {
			<-r.Context().Done()
			return
		}
		writeJSON(w, http.StatusOK, []core.Transaction{})
	}), func(cfg *Config) { cfg.BreakerFailures = 1 })

	for range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := c.ListUsers(ctx)
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	_, err := c.ListTransactions(context.Background())
	assert.NoError(t, err)
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTimeoutApplies(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), func(cfg *Config) { cfg.Timeout = 20 * time.Millisecond })

	_, err := c.TodayRevenue(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTodayRevenueNormalizesLists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dashboard/today-revenue", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"date": "2024-03-01", "totalDeposited": 1200})
	}))

	rev, err := c.TodayRevenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1200), rev.TotalDeposited)
	assert.NotNil(t, rev.MostActiveStaff)
	assert.NotNil(t, rev.MostActiveUsers)
}
