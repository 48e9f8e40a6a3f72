// Package health provides health checking functionality for the medication comparison API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/medcompare-api/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	breakers  []interfaces.BreakerReporter
	now       func() time.Time
}

// Compile-time check to ensure HealthCheckerImpl implements HealthChecker
var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(dataStore interfaces.DataStore, breakers ...interfaces.BreakerReporter) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		breakers:  breakers,
		now:       time.Now,
	}
}

// HealthCheck reports the store statistics and upstream breaker states.
// The store is a cache that starts empty, so only upstream availability affects the status:
// every breaker open is unhealthy, some open is degraded.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	lastUpdate := h.dataStore.GetLastUpdated()
	startTime := h.dataStore.GetServerStartTime()
	now := h.now()

	upstreams := make(map[string]string, len(h.breakers))
	open := 0
	for _, b := range h.breakers {
		state := b.State()
		upstreams[b.Name()] = state
		if state == "open" {
			open++
		}
	}

	switch {
	case len(h.breakers) > 0 && open == len(h.breakers):
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case open > 0:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"medications":    h.dataStore.Len(),
		"comparisons":    h.dataStore.ComparisonCount(),
		"is_updating":    h.dataStore.IsUpdating(),
		"upstreams":      upstreams,
		"uptime_seconds": math.Round(now.Sub(startTime).Seconds()),
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["data_age_minutes"] = math.Round(now.Sub(lastUpdate).Minutes()*10) / 10
	}

	return status, data, httpStatus
}
