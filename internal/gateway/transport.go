package gateway

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RetryPolicy retries a request on 5xx and 403 answers. 403 is in the list
// because the scraped sources hand it out under load and recover seconds
// later. Backoff is linear: attempt number times UnitDelay.
type RetryPolicy struct {
	MaxAttempts int
	UnitDelay   time.Duration
}

// Do runs the request, retrying per policy. newReq must build a fresh
// request each attempt since a consumed body cannot be replayed. The final
// response is returned even when its status is still bad so the caller can
// map it; cancellation aborts immediately without another attempt.
func (p RetryPolicy) Do(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		if !retryableStatus(resp.StatusCode) || attempt >= attempts {
			return resp, nil
		}

		// Drain before reuse so the connection can go back to the pool.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		_ = resp.Body.Close()

		delay := time.Duration(attempt) * p.UnitDelay
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusForbidden
}
