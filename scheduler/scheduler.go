// Package scheduler runs the store maintenance jobs: TTL eviction of medications
// and comparisons, and monitoring that the eviction job keeps running.
package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/medcompare-api/interfaces"
	"github.com/giygas/medcompare-api/logging"
	"github.com/giygas/medcompare-api/metrics"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// missedRunsBeforeWarning is how many eviction intervals may pass without a run
// before the monitor warns
const missedRunsBeforeWarning = 3

// Scheduler handles store eviction and health monitoring using dependency injection
type Scheduler struct {
	dataStore       interfaces.DataStore
	ttl             time.Duration
	interval        time.Duration
	monitorInterval time.Duration
	scheduler       *gocron.Scheduler

	lastEviction atomic.Value // time.Time
	now          func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler that evicts entries older than ttl every interval
func NewScheduler(dataStore interfaces.DataStore, ttl, interval time.Duration) *Scheduler {
	s := &Scheduler{
		dataStore:       dataStore,
		ttl:             ttl,
		interval:        interval,
		monitorInterval: time.Hour,
		scheduler:       gocron.NewScheduler(time.Local),
		now:             time.Now,
		stop:            make(chan struct{}),
	}
	s.lastEviction.Store(time.Time{})
	return s
}

// Start schedules the eviction job and starts health monitoring
func (s *Scheduler) Start() error {
	if s.ttl <= 0 || s.interval <= 0 {
		return fmt.Errorf("invalid eviction schedule: ttl=%s interval=%s", s.ttl, s.interval)
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.evict)
	if err != nil {
		logging.Error("Failed to schedule eviction", "error", err)
		return fmt.Errorf("failed to schedule eviction: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Store eviction scheduled", "ttl", s.ttl.String(), "interval", s.interval.String())

	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler and the monitor
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()
		close(s.stop)
	})
}

// evict removes stale entries. It is skipped when another maintenance pass holds the store.
func (s *Scheduler) evict() {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Eviction already in progress, skipping...")
		return
	}
	defer s.dataStore.EndUpdate()

	start := s.now()
	meds, comps := s.dataStore.EvictStale(s.ttl)
	s.lastEviction.Store(s.now())

	metrics.StoreEvictionsTotal.WithLabelValues("medication").Add(float64(meds))
	metrics.StoreEvictionsTotal.WithLabelValues("comparison").Add(float64(comps))
	metrics.SetStoreSize(s.dataStore.Len(), s.dataStore.ComparisonCount())

	if meds > 0 || comps > 0 {
		logging.Info("Store eviction completed",
			"duration", s.now().Sub(start).String(),
			"medications_evicted", meds,
			"comparisons_evicted", comps,
			"medications", s.dataStore.Len(),
			"comparisons", s.dataStore.ComparisonCount(),
		)
	}
}

// LastEviction returns when eviction last ran, zero if never
func (s *Scheduler) LastEviction() time.Time {
	t, _ := s.lastEviction.Load().(time.Time)
	return t
}

// checkHealth warns when eviction has stopped running. It returns false in that case.
func (s *Scheduler) checkHealth() bool {
	metrics.SetStoreSize(s.dataStore.Len(), s.dataStore.ComparisonCount())

	last := s.LastEviction()
	if last.IsZero() {
		return true
	}
	if s.now().Sub(last) > missedRunsBeforeWarning*s.interval {
		logging.Warn("Store eviction has not run recently",
			"last_eviction", last.Format(time.RFC3339),
			"interval", s.interval.String(),
		)
		return false
	}
	return true
}

func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(s.monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkHealth()
			case <-s.stop:
				return
			}
		}
	}()
}
