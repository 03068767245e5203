// SPDX-License-Identifier: MPL-2.0

package buildah

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// transientMarkers are stderr fragments buildah prints for failures that
// usually go away on a second attempt.
var transientMarkers = []string{
	"Temporary failure resolving",
	"Could not resolve host",
	"connection timed out",
	"connection refused",
	"connection reset by peer",
	"i/o timeout",
	"TLS handshake timeout",
	"502 Bad Gateway",
	"503 Service Unavailable",
	"429 Too Many Requests",
	"error creating overlay mount",
	"error mounting layer",
}

// RetryWithBackoff retries op up to maxAttempts times with exponential backoff.
// Cancelling ctx ends a backoff wait early. A non-nil sleep replaces the
// timer wait; ctx is checked again once it returns.
//
// op returns (shouldRetry bool, err error). If shouldRetry is false, err is
// returned immediately (nil on success, non-nil on permanent failure).
// On retry exhaustion, the last error is returned.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	sleep func(time.Duration),
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := backoff(ctx, baseBackoff*time.Duration(1<<(attempt-1)), sleep); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func backoff(ctx context.Context, d time.Duration, sleep func(time.Duration)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sleep != nil {
		sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether err is a buildah failure worth retrying.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	// 125 is buildah's generic internal error, typically storage or cgroup trouble.
	if cmdErr.ExitCode == 125 && len(cmdErr.Stderr) == 0 {
		return true
	}
	stderr := strings.Join(cmdErr.Stderr, "\n")
	for _, marker := range transientMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
