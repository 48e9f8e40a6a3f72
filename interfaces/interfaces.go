// Package interfaces defines core abstractions for the medication comparison API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/medcompare-api/curation"
	"github.com/giygas/medcompare-api/entities"
)

// DataStore defines the contract for the normalized medication store.
// Every medication is held once under its identity key; comparisons only
// reference keys, so an update to an entity is seen by every comparison
// that contains it.
type DataStore interface {
	// Entity access
	Upsert(meds ...entities.Medication)
	Get(key string) (entities.Medication, bool)
	Update(key string, fn func(entities.Medication) (entities.Medication, error)) (entities.Medication, error)
	Len() int

	// Comparison projections
	SaveComparison(name string, cmp curation.Comparison) error
	Comparison(name string) (curation.Comparison, bool)
	ComparisonCount() int

	// Maintenance
	EvictStale(maxAge time.Duration) (medications int, comparisons int)
	GetLastUpdated() time.Time
	IsUpdating() bool
	BeginUpdate() bool
	EndUpdate()
	GetServerStartTime() time.Time
}

// SearchClient looks medications up on the search service
type SearchClient interface {
	Lookup(ctx context.Context, name string) (*entities.LookupResponse, error)
}

// VoteClient submits votes to the aggregate authority
type VoteClient interface {
	Submit(ctx context.Context, req entities.VoteRequest) (entities.VoteDelta, error)
}

// VoteService casts votes and merges the authoritative aggregate into the store
type VoteService interface {
	Cast(ctx context.Context, actor *entities.Actor, id entities.MedicationID, dir entities.VoteDirection) (entities.VoteResult, error)
}

// Scheduler defines the contract for job scheduling and store maintenance.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
// It provides a consistent interface for all API endpoints.
type HTTPHandler interface {
	Compare(w http.ResponseWriter, r *http.Request)
	DrillDown(w http.ResponseWriter, r *http.Request)
	Vote(w http.ResponseWriter, r *http.Request)
	TrustScore(w http.ResponseWriter, r *http.Request)
	Recommendation(w http.ResponseWriter, r *http.Request)
	FindMedication(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the status, the response body fields and the HTTP status
	HealthCheck() (status string, data map[string]any, httpStatus int)
}

// BreakerReporter exposes the state of an upstream circuit breaker
type BreakerReporter interface {
	Name() string
	State() string
}

// InputValidator defines the contract for request validation.
type InputValidator interface {
	// ValidateInput validates free-text user input such as a medication name
	ValidateInput(input string) error

	// ValidateMedicationID validates a medication identifier
	ValidateMedicationID(input string) (entities.MedicationID, error)

	// ValidateStruct applies struct tag rules to a decoded request body
	ValidateStruct(v any) error
}
