package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/giygas/medcompare-api/curation"
	"github.com/giygas/medcompare-api/data"
	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/interfaces"
)

// mockSchedulerDataStore records eviction calls
type mockSchedulerDataStore struct {
	mu          sync.Mutex
	updating    bool
	evictCalls  int
	lastMaxAge  time.Duration
	evictResult [2]int
	meds        int
	comps       int
}

var _ interfaces.DataStore = (*mockSchedulerDataStore)(nil)

func (m *mockSchedulerDataStore) Upsert(meds ...entities.Medication)           {}
func (m *mockSchedulerDataStore) Get(key string) (entities.Medication, bool) { return entities.Medication{}, false }
func (m *mockSchedulerDataStore) Update(key string, fn func(entities.Medication) (entities.Medication, error)) (entities.Medication, error) {
	return entities.Medication{}, nil
}
func (m *mockSchedulerDataStore) Len() int { return m.meds }
func (m *mockSchedulerDataStore) SaveComparison(name string, cmp curation.Comparison) error {
	return nil
}
func (m *mockSchedulerDataStore) Comparison(name string) (curation.Comparison, bool) {
	return curation.Comparison{}, false
}
func (m *mockSchedulerDataStore) ComparisonCount() int { return m.comps }

func (m *mockSchedulerDataStore) EvictStale(maxAge time.Duration) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictCalls++
	m.lastMaxAge = maxAge
	m.meds -= m.evictResult[0]
	m.comps -= m.evictResult[1]
	return m.evictResult[0], m.evictResult[1]
}

func (m *mockSchedulerDataStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictCalls
}

func (m *mockSchedulerDataStore) GetLastUpdated() time.Time { return time.Time{} }
func (m *mockSchedulerDataStore) IsUpdating() bool          { return m.updating }

func (m *mockSchedulerDataStore) BeginUpdate() bool {
	if m.updating {
		return false
	}
	m.updating = true
	return true
}

func (m *mockSchedulerDataStore) EndUpdate()                     { m.updating = false }
func (m *mockSchedulerDataStore) GetServerStartTime() time.Time { return time.Time{} }

func TestScheduler_Evict(t *testing.T) {
	store := &mockSchedulerDataStore{meds: 5, comps: 2, evictResult: [2]int{3, 1}}
	s := NewScheduler(store, 10*time.Minute, time.Minute)

	s.evict()

	if store.evictCalls != 1 {
		t.Fatalf("Expected 1 eviction, got %d", store.evictCalls)
	}
	if store.lastMaxAge != 10*time.Minute {
		t.Errorf("Expected ttl passed as max age, got %s", store.lastMaxAge)
	}
	if store.updating {
		t.Error("Expected EndUpdate after eviction")
	}
	if s.LastEviction().IsZero() {
		t.Error("Expected last eviction time to be recorded")
	}
}

func TestScheduler_ConcurrentEvictionPrevention(t *testing.T) {
	store := &mockSchedulerDataStore{}
	s := NewScheduler(store, time.Minute, time.Minute)

	// Simulate a pass in progress
	store.BeginUpdate()
	s.evict()

	if store.evictCalls != 0 {
		t.Errorf("Expected eviction to be skipped, got %d calls", store.evictCalls)
	}
	if !s.LastEviction().IsZero() {
		t.Error("Skipped eviction must not update the last run")
	}
}

func TestScheduler_StartRejectsInvalidSchedule(t *testing.T) {
	tests := []struct {
		name     string
		ttl      time.Duration
		interval time.Duration
	}{
		{"zero ttl", 0, time.Minute},
		{"zero interval", time.Minute, 0},
		{"negative interval", time.Minute, -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(&mockSchedulerDataStore{}, tt.ttl, tt.interval)
			if err := s.Start(); err == nil {
				s.Stop()
				t.Error("Expected error for invalid schedule")
			}
		})
	}
}

func TestScheduler_StartRunsEviction(t *testing.T) {
	store := &mockSchedulerDataStore{}
	s := NewScheduler(store, time.Minute, 50*time.Millisecond)

	if err := s.Start(); err != nil {
		t.Fatalf("Unexpected error during start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for store.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.calls() == 0 {
		t.Error("Expected the scheduled eviction to run")
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(&mockSchedulerDataStore{}, time.Minute, time.Minute)
	if err := s.Start(); err != nil {
		t.Fatalf("Unexpected error during start: %v", err)
	}
	s.Stop()
	s.Stop()
}

func TestScheduler_CheckHealth(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base

	s := NewScheduler(&mockSchedulerDataStore{}, time.Hour, time.Minute)
	s.now = func() time.Time { return current }

	if !s.checkHealth() {
		t.Error("Expected healthy before the first run")
	}

	s.evict()

	current = base.Add(2 * time.Minute)
	if !s.checkHealth() {
		t.Error("Expected healthy two intervals after a run")
	}

	current = base.Add(5 * time.Minute)
	if s.checkHealth() {
		t.Error("Expected unhealthy after missing several runs")
	}
}

func TestScheduler_WithDataContainer(t *testing.T) {
	store := data.NewDataContainer(curation.IdentityKey)
	store.Upsert(entities.Medication{ID: "1", Name: "Dolo 650"})

	s := NewScheduler(store, time.Nanosecond, time.Minute)
	time.Sleep(time.Millisecond)
	s.evict()

	if store.Len() != 0 {
		t.Errorf("Expected stale medication to be evicted, %d left", store.Len())
	}
	if store.IsUpdating() {
		t.Error("Expected the store to be released after eviction")
	}
}
