package calendar

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"

	"toolgate/pkg/logging"
)

const retryMaxTries = 4

// withRetry decorates one downstream Calendar API call with bounded
// exponential backoff. Only transient failures are retried; anything else is
// surfaced immediately so authorization and contract errors keep their
// meaning.
func withRetry[T any](ctx context.Context, operation string, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !isTransient(err) {
			return result, backoff.Permanent(err)
		}
		attempt++
		logging.Warn("CalendarTools", "Transient failure in %s (attempt %d): %v", operation, attempt, err)
		return result, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(retryMaxTries),
	)
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	return b
}

// isTransient reports whether a downstream failure is worth retrying:
// rate limiting, server-side errors and network failures. 4xx responses
// other than 429 indicate a request that will never succeed as-is.
func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}
