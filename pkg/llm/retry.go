package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxBackoff    = 10 * time.Second
	maxRetryAfter = time.Minute
)

// doWithRetry makes up to MaxRetries+1 attempts. Transient network errors,
// 408, 429 and 5xx are retried with full-jitter exponential backoff, or after
// the Retry-After delay when the provider sends one. The last retryable
// response is returned as-is so the caller can read the provider error.
func (c *client) doWithRetry(
	ctx context.Context,
	body []byte,
	do func(ctx context.Context, body []byte) (*http.Response, error),
) (*http.Response, error) {
	maxAttempts := c.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := do(ctx, body)
		last := attempt == maxAttempts-1

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.logger.Debug("llm upstream request",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		var wait time.Duration
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if !isTransientNetError(err) {
				return nil, fmt.Errorf("llmclient: transport: %w", err)
			}
			lastErr = err
		case !shouldRetryStatus(status) || last:
			return resp, nil
		default:
			wait = parseRetryAfter(resp)
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream status %d", status)
		}

		if last {
			break
		}
		if wait <= 0 {
			wait = computeBackoff(c.cfg.BaseBackoff, attempt)
		}
		c.logger.Debug("backing off before retry",
			zap.Duration("backoff", wait),
			zap.Int("next_attempt", attempt+2),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.Warn("llm request exhausted all retries",
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("llmclient: max retries (%d) exceeded: %w", maxAttempts, lastErr)
}

func isTransientNetError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial", "read", "write":
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection refused", "connection reset", "broken pipe", "unexpected eof"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func shouldRetryStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date. Zero means
// absent or unparseable.
func parseRetryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}

	var d time.Duration
	if seconds, err := strconv.Atoi(v); err == nil {
		d = time.Duration(seconds) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}

// computeBackoff returns a random delay in [0, base*2^attempt), capped.
func computeBackoff(base time.Duration, attempt int) time.Duration {
	ceiling := base << min(attempt, 10)
	if ceiling <= 0 || ceiling > maxBackoff {
		ceiling = maxBackoff
	}
	return time.Duration(rand.Int64N(int64(ceiling)))
}
