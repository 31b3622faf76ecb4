package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newAuthenticatorFor(ts *httptest.Server) Authenticator {
	cfg := DefaultConfig()
	cfg.AuthURL = ts.URL
	cfg.AuthRetryMin = time.Millisecond
	cfg.AuthRetryMax = 5 * time.Millisecond
	cfg.AuthMaxAttempts = 3
	return NewHTTPAuthenticator(cfg, discardLogger())
}

func TestHTTPAuthenticatorSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"abc123"}`))
	}))
	defer ts.Close()

	cred, err := newAuthenticatorFor(ts).Credential(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc123", cred.Token)
	require.False(t, cred.AcquiredAt.IsZero())
}

func TestHTTPAuthenticatorRejectionDoesNotRetry(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := newAuthenticatorFor(ts).Credential(context.Background())
	require.ErrorIs(t, err, ErrAuthRejected)
	require.Equal(t, int64(1), requests.Load(), "a rejected credential must not be retried")
}

func TestHTTPAuthenticatorRetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"token":"recovered"}`))
	}))
	defer ts.Close()

	cred, err := newAuthenticatorFor(ts).Credential(context.Background())
	require.NoError(t, err)
	require.Equal(t, "recovered", cred.Token)
	require.Equal(t, int64(3), requests.Load())
}

func TestHTTPAuthenticatorUnavailableAfterBudget(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := newAuthenticatorFor(ts).Credential(context.Background())
	require.ErrorIs(t, err, ErrAuthUnavailable)
	require.Equal(t, int64(3), requests.Load(), "every attempt in the budget is spent")
}

func TestHTTPAuthenticatorRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := newAuthenticatorFor(ts).Credential(context.Background())
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestHTTPAuthenticatorEmptyTokenIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":""}`))
	}))
	defer ts.Close()

	_, err := newAuthenticatorFor(ts).Credential(context.Background())
	require.ErrorIs(t, err, ErrAuthUnavailable)
}

func TestHTTPAuthenticatorHonoursContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	cfg := DefaultConfig()
	cfg.AuthURL = ts.URL
	cfg.AuthRetryMin = time.Hour
	cfg.AuthRetryMax = time.Hour
	cfg.AuthMaxAttempts = 5
	auth := NewHTTPAuthenticator(cfg, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := auth.Credential(ctx)
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second, "cancellation must interrupt the retry sleep")
}

func TestParseRetryAfter(t *testing.T) {
	require.Equal(t, 3*time.Second, parseRetryAfter("3"))
	require.Equal(t, time.Duration(0), parseRetryAfter(""))
	require.Equal(t, time.Duration(0), parseRetryAfter("not-a-number"))
	require.Equal(t, time.Duration(0), parseRetryAfter("-5"))

	// An HTTP-date in the future yields roughly the remaining wait.
	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(future)
	require.Greater(t, d, 8*time.Second)
	require.LessOrEqual(t, d, 10*time.Second)

	past := time.Now().Add(-10 * time.Second).UTC().Format(http.TimeFormat)
	require.Equal(t, time.Duration(0), parseRetryAfter(past))
}

func TestHTTPAuthenticatorRetryAfterOverridesBackoff(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"token":"after-wait"}`))
	}))
	defer ts.Close()

	start := time.Now()
	cred, err := newAuthenticatorFor(ts).Credential(context.Background())
	require.NoError(t, err)
	require.Equal(t, "after-wait", cred.Token)
	require.GreaterOrEqual(t, time.Since(start), time.Second, "the server-supplied delay is honoured")
}

func TestErrorIsWorksAcrossWrapping(t *testing.T) {
	err := errors.Wrapf(ErrAuthUnavailable, "status %d", 503)
	require.ErrorIs(t, err, ErrAuthUnavailable)
	require.NotErrorIs(t, err, ErrAuthRejected)
}
