package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
)

// retrier re-sends idempotent requests on 429 and 5xx responses and on transport errors.
type retrier struct {
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	logger      *log.Logger
}

// do sends req up to maxRetries+1 times. Retry-After is honoured when present, otherwise
// the backoff doubles per attempt.
//
// The returned response is the last one received; callers must close its body.
func (r *retrier) do(req *http.Request) (*http.Response, error) {
	maxRetries := r.maxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := r.baseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		resp, err := r.httpClient.Do(req)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry || attempt >= maxRetries {
			return resp, err
		}

		if err != nil {
			r.logger.Warn("retrying request", "url", req.URL.Path, "attempt", attempt+1, "error", err)
		} else {
			r.logger.Warn("retrying request", "url", req.URL.Path, "attempt", attempt+1, "status", resp.StatusCode)
			resp.Body.Close()
		}

		delay := backoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			delay = retryAfter
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, isTransient(err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

// isTransient reports whether a transport error is worth retrying. Cancellation and
// token endpoint rejections are not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *oauth2.RetrieveError
	return !errors.As(err, &re)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

// sleepWithContext blocks for delay or until ctx is done.
func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
