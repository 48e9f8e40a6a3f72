package interfaces

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/giygas/medcompare-api/curation"
	"github.com/giygas/medcompare-api/entities"
)

// MockDataStore implements DataStore with a plain map
type MockDataStore struct {
	meds        map[string]entities.Medication
	comparisons map[string]curation.Comparison
	lastUpdated time.Time
	updating    bool
}

func newMockDataStore() *MockDataStore {
	return &MockDataStore{
		meds:        make(map[string]entities.Medication),
		comparisons: make(map[string]curation.Comparison),
	}
}

func (m *MockDataStore) Upsert(meds ...entities.Medication) {
	for _, med := range meds {
		m.meds[string(med.ID)] = med
	}
}

func (m *MockDataStore) Get(key string) (entities.Medication, bool) {
	med, ok := m.meds[key]
	return med, ok
}

func (m *MockDataStore) Update(key string, fn func(entities.Medication) (entities.Medication, error)) (entities.Medication, error) {
	med, ok := m.meds[key]
	if !ok {
		return entities.Medication{}, errors.New("not found")
	}
	next, err := fn(med)
	if err != nil {
		return entities.Medication{}, err
	}
	m.meds[key] = next
	return next, nil
}

func (m *MockDataStore) Len() int { return len(m.meds) }

func (m *MockDataStore) SaveComparison(name string, cmp curation.Comparison) error {
	m.comparisons[name] = cmp
	m.lastUpdated = time.Now()
	return nil
}

func (m *MockDataStore) Comparison(name string) (curation.Comparison, bool) {
	cmp, ok := m.comparisons[name]
	return cmp, ok
}

func (m *MockDataStore) ComparisonCount() int { return len(m.comparisons) }
func (m *MockDataStore) EvictStale(maxAge time.Duration) (int, int) { return 0, 0 }
func (m *MockDataStore) GetLastUpdated() time.Time { return m.lastUpdated }
func (m *MockDataStore) IsUpdating() bool { return m.updating }
func (m *MockDataStore) GetServerStartTime() time.Time { return time.Time{} }

func (m *MockDataStore) BeginUpdate() bool {
	if m.updating {
		return false
	}
	m.updating = true
	return true
}

func (m *MockDataStore) EndUpdate() { m.updating = false }

// MockSearchClient implements SearchClient
type MockSearchClient struct {
	response *entities.LookupResponse
	err      error
}

func (m *MockSearchClient) Lookup(ctx context.Context, name string) (*entities.LookupResponse, error) {
	return m.response, m.err
}

// MockVoteClient implements VoteClient
type MockVoteClient struct {
	delta entities.VoteDelta
	last  entities.VoteRequest
}

func (m *MockVoteClient) Submit(ctx context.Context, req entities.VoteRequest) (entities.VoteDelta, error) {
	m.last = req
	return m.delta, nil
}

// MockVoteService implements VoteService
type MockVoteService struct{}

func (m *MockVoteService) Cast(ctx context.Context, actor *entities.Actor, id entities.MedicationID, dir entities.VoteDirection) (entities.VoteResult, error) {
	if actor == nil {
		return entities.VoteResult{Outcome: entities.OutcomeAuthRequired}, nil
	}
	return entities.VoteResult{Outcome: entities.OutcomeApplied}, nil
}

// MockScheduler implements Scheduler
type MockScheduler struct {
	started bool
	stopped bool
}

func (m *MockScheduler) Start() error {
	m.started = true
	return nil
}

func (m *MockScheduler) Stop() { m.stopped = true }

// MockHTTPHandler implements HTTPHandler
type MockHTTPHandler struct{}

func (m *MockHTTPHandler) Compare(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
func (m *MockHTTPHandler) DrillDown(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
func (m *MockHTTPHandler) Vote(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusUnauthorized)
}
func (m *MockHTTPHandler) TrustScore(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
func (m *MockHTTPHandler) Recommendation(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
func (m *MockHTTPHandler) FindMedication(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}
func (m *MockHTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// MockHealthChecker implements HealthChecker
type MockHealthChecker struct {
	status string
	data   map[string]any
	code   int
}

func (m *MockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return m.status, m.data, m.code
}

// MockBreaker implements BreakerReporter
type MockBreaker struct{ name, state string }

func (m *MockBreaker) Name() string  { return m.name }
func (m *MockBreaker) State() string { return m.state }

// MockInputValidator implements InputValidator
type MockInputValidator struct {
	err error
}

func (m *MockInputValidator) ValidateInput(input string) error { return m.err }

func (m *MockInputValidator) ValidateMedicationID(input string) (entities.MedicationID, error) {
	if m.err != nil {
		return "", m.err
	}
	return entities.MedicationID(input), nil
}

func (m *MockInputValidator) ValidateStruct(v any) error { return m.err }

// ============================================================================
// INTERFACE TESTS
// ============================================================================

func TestDataStoreInterface(t *testing.T) {
	var store DataStore = newMockDataStore()

	orig := entities.Medication{ID: "1", Name: "Dolo 650", Price: "₹30"}
	alt := entities.Medication{ID: "2", Name: "Crocin", Price: "₹25"}
	store.Upsert(orig, alt)
	if store.Len() != 2 {
		t.Errorf("Expected 2 medications, got %d", store.Len())
	}

	if err := store.SaveComparison("dolo 650", curation.Comparison{Original: &orig, Alternatives: []entities.Medication{alt}}); err != nil {
		t.Fatalf("SaveComparison: %v", err)
	}
	if _, ok := store.Comparison("dolo 650"); !ok {
		t.Error("Expected the saved comparison to be found")
	}

	updated, err := store.Update("2", func(m entities.Medication) (entities.Medication, error) {
		m.TotalDoctorVotes++
		return m, nil
	})
	if err != nil || updated.TotalDoctorVotes != 1 {
		t.Errorf("Update returned %+v, %v", updated, err)
	}

	if !store.BeginUpdate() {
		t.Fatal("First BeginUpdate should succeed")
	}
	if store.BeginUpdate() {
		t.Error("Second BeginUpdate should fail while updating")
	}
	store.EndUpdate()
	if store.IsUpdating() {
		t.Error("EndUpdate should clear the updating flag")
	}
}

func TestVoteInterfaces(t *testing.T) {
	client := &MockVoteClient{delta: entities.VoteDelta{DoctorVotingFactor: 0.5, TotalUpvotes: 1, TotalDoctorVotes: 2}}
	var vc VoteClient = client

	delta, err := vc.Submit(context.Background(), entities.VoteRequest{MedicineID: "2", Vote: entities.VoteUp, IsDoctor: true})
	if err != nil || delta.TotalDoctorVotes != 2 {
		t.Errorf("Submit returned %+v, %v", delta, err)
	}
	if client.last.MedicineID != "2" {
		t.Errorf("Expected the request to reach the client, got %+v", client.last)
	}

	var svc VoteService = &MockVoteService{}
	res, err := svc.Cast(context.Background(), nil, "2", entities.VoteUp)
	if err != nil || res.Outcome != entities.OutcomeAuthRequired {
		t.Errorf("Anonymous cast returned %+v, %v", res, err)
	}
}

func TestSearchClientInterface(t *testing.T) {
	var sc SearchClient = &MockSearchClient{err: entities.NewError(entities.KindMissingContext, "lookup", "not found")}

	if _, err := sc.Lookup(context.Background(), "nothing"); entities.KindOf(err) != entities.KindMissingContext {
		t.Errorf("Expected a missing context error, got %v", err)
	}
}

func TestSchedulerInterface(t *testing.T) {
	mock := &MockScheduler{}
	var scheduler Scheduler = mock

	if err := scheduler.Start(); err != nil {
		t.Errorf("Start returned %v", err)
	}
	scheduler.Stop()

	if !mock.started || !mock.stopped {
		t.Errorf("Expected start and stop to be recorded, got %+v", mock)
	}
}

func TestHTTPHandlerInterface(t *testing.T) {
	var handler HTTPHandler = &MockHTTPHandler{}

	tests := []struct {
		name     string
		fn       http.HandlerFunc
		expected int
	}{
		{"compare", handler.Compare, http.StatusOK},
		{"vote", handler.Vote, http.StatusUnauthorized},
		{"find medication", handler.FindMedication, http.StatusNotFound},
		{"health", handler.HealthCheck, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.fn(rr, httptest.NewRequest("GET", "/", nil))
			if rr.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestHealthCheckerInterface(t *testing.T) {
	var checker HealthChecker = &MockHealthChecker{
		status: "degraded",
		data:   map[string]any{"upstreams": map[string]string{"vote": "open"}},
		code:   http.StatusServiceUnavailable,
	}

	status, data, code := checker.HealthCheck()
	if status != "degraded" || code != http.StatusServiceUnavailable {
		t.Errorf("Unexpected health %q/%d", status, code)
	}
	if _, ok := data["upstreams"]; !ok {
		t.Error("Expected upstream details in health data")
	}
}

func TestInputValidatorInterface(t *testing.T) {
	var v InputValidator = &MockInputValidator{}
	if id, err := v.ValidateMedicationID("42"); err != nil || id != "42" {
		t.Errorf("ValidateMedicationID returned %q, %v", id, err)
	}

	v = &MockInputValidator{err: errors.New("invalid")}
	if err := v.ValidateInput("<script>"); err == nil {
		t.Error("Expected validation error")
	}
}

func TestCompileTimeChecks(t *testing.T) {
	var _ DataStore = (*MockDataStore)(nil)
	var _ SearchClient = (*MockSearchClient)(nil)
	var _ VoteClient = (*MockVoteClient)(nil)
	var _ VoteService = (*MockVoteService)(nil)
	var _ Scheduler = (*MockScheduler)(nil)
	var _ HTTPHandler = (*MockHTTPHandler)(nil)
	var _ HealthChecker = (*MockHealthChecker)(nil)
	var _ BreakerReporter = (*MockBreaker)(nil)
	var _ InputValidator = (*MockInputValidator)(nil)
}
