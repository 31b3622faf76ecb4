package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
)

// Credential is an opaque short-lived token plus its acquisition time. It
// lives in process memory only; persisting it is the caller's business.
type Credential struct {
	Token      string
	AcquiredAt time.Time
}

// Authenticator acquires the credential used to establish the connection.
// It owns its own bounded retry policy, separate from the connection
// manager's reconnect budget.
type Authenticator interface {
	Credential(ctx context.Context) (Credential, error)
}

// httpAuthenticator fetches a credential from the REST endpoint. It is the
// only component allowed to call that endpoint.
//
// Failure contract:
//   - 401/403 responses surface ErrAuthRejected immediately, no retry, so a
//     bad credential cannot loop.
//   - 429 responses surface ErrRateLimited after the retry budget; each retry
//     honours a server-supplied Retry-After delay when present, otherwise the
//     exponential policy decides.
//   - anything else (network errors, 5xx) retries on the exponential policy
//     and surfaces ErrAuthUnavailable once the budget is spent.
type httpAuthenticator struct {
	endpoint    string
	client      *http.Client
	maxAttempts int
	retryMin    time.Duration
	retryMax    time.Duration
	logger      Logger
}

// NewHTTPAuthenticator builds the default Authenticator against the given
// credential endpoint.
func NewHTTPAuthenticator(cfg Config, logger Logger) Authenticator {
	return &httpAuthenticator{
		endpoint:    cfg.AuthURL,
		client:      &http.Client{Timeout: cfg.AuthRequestTimeout},
		maxAttempts: cfg.AuthMaxAttempts,
		retryMin:    cfg.AuthRetryMin,
		retryMax:    cfg.AuthRetryMax,
		logger:      logger.WithField("component", "authenticator"),
	}
}

func (a *httpAuthenticator) Credential(ctx context.Context) (Credential, error) {
	policy := &backoff.Backoff{
		Min:    a.retryMin,
		Max:    a.retryMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		token, retryAfter, err := a.fetch(ctx)
		if err == nil {
			return Credential{Token: token, AcquiredAt: time.Now()}, nil
		}
		if errors.Is(err, ErrAuthRejected) || ctx.Err() != nil {
			return Credential{}, err
		}
		lastErr = err

		delay := policy.Duration()
		if errors.Is(err, ErrRateLimited) && retryAfter > 0 {
			delay = retryAfter
		}
		a.logger.Warnf("credential fetch failed (attempt %d/%d), retrying in %s: %s",
			attempt+1, a.maxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	if errors.Is(lastErr, ErrRateLimited) {
		return Credential{}, lastErr
	}
	return Credential{}, errors.Wrapf(ErrAuthUnavailable, "%s", lastErr)
}

// fetch performs one request. retryAfter is non-zero only for rate-limit
// responses carrying a usable Retry-After header.
func (a *httpAuthenticator) fetch(ctx context.Context) (token string, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, errors.Wrap(ErrAuthUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", 0, errors.Wrapf(ErrAuthRejected, "status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", parseRetryAfter(resp.Header.Get("Retry-After")), errors.Wrapf(ErrRateLimited, "status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", 0, errors.Wrapf(ErrAuthUnavailable, "status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, errors.Wrap(ErrAuthUnavailable, err.Error())
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, errors.Wrap(ErrAuthUnavailable, err.Error())
	}
	if payload.Token == "" {
		return "", 0, errors.Wrap(ErrAuthUnavailable, "empty token in response")
	}
	return payload.Token, 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
