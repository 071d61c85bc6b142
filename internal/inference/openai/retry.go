package openai

import (
	"strings"
	"time"
)

// retryDelays are the waits before the second, third, and further attempts.
// Later attempts reuse the last step rather than growing without bound.
var retryDelays = []time.Duration{
	200 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

func escalatingDelay(attempt uint) time.Duration {
	if int(attempt) >= len(retryDelays) {
		return retryDelays[len(retryDelays)-1]
	}
	return retryDelays[attempt]
}

// isRetryableError determines if an error should trigger a retry.
// A reply that cannot be parsed is not retried: the provider answered, it just
// answered in the wrong shape, and asking again rarely changes that.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	if strings.Contains(errStr, "malformed response") {
		return false
	}

	// Retry when an attempt ran out of time
	if strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "i/o timeout") {
		return true
	}

	// Retry on network-related errors
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset") {
		return true
	}

	// Retry on 5xx errors (server errors)
	if strings.Contains(errStr, "response error 5") {
		return true
	}

	// Retry on rate limiting (429)
	if strings.Contains(errStr, "response error 429") {
		return true
	}

	return false
}
