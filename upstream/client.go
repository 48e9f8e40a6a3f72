// Package upstream talks to the two external collaborators of the comparison API:
// the search service that returns a medication with its alternatives, and the
// vote authority that owns the recommendation aggregates.
package upstream

import (
	"net/http"
	"strings"
	"time"

	"github.com/giygas/medcompare-api/logging"
	"github.com/sony/gobreaker"
)

// maxResponseBody bounds the bytes read from an upstream response
const maxResponseBody = 4 << 20

// BreakerSettings configures the circuit breaker in front of an upstream
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerSettings opens after five consecutive failures and retries after 30s
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

func newBreaker(name string, s BreakerSettings, isSuccessful func(error) bool) *gobreaker.CircuitBreaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultBreakerSettings().FailureThreshold
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logging.Warn("Circuit breaker state changed",
				"circuit_breaker", name,
				"from_state", from.String(),
				"to_state", to.String(),
			)
		},
		IsSuccessful: isSuccessful,
	})
}

// breakerState reports a breaker's state for health checks
type breakerState struct {
	cb *gobreaker.CircuitBreaker
}

func (b breakerState) Name() string {
	return b.cb.Name()
}

func (b breakerState) State() string {
	return b.cb.State().String()
}

func newHTTPClient(timeout time.Duration, client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: timeout}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
