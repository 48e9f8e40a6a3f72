// Package votes merges authoritative vote aggregates into medications and
// orchestrates vote submission against the aggregate authority.
package votes

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/interfaces"
	"github.com/giygas/medcompare-api/logging"
	"github.com/giygas/medcompare-api/metrics"
)

// ApplyVoteResult returns a copy of m with the three aggregate fields replaced by
// delta. Every other field is preserved and m itself is never modified. An
// aggregate that breaks its invariants is a MalformedResponse error.
func ApplyVoteResult(m entities.Medication, delta entities.VoteDelta) (entities.Medication, error) {
	if err := delta.Validate(); err != nil {
		return entities.Medication{}, entities.WrapError(entities.KindMalformedResponse, "apply vote result", err)
	}

	updated := m.Clone()
	updated.DoctorVotingFactor = entities.Float64(delta.DoctorVotingFactor)
	updated.TotalUpvotes = delta.TotalUpvotes
	updated.TotalDoctorVotes = delta.TotalDoctorVotes
	return updated, nil
}

// Service casts votes. Votes for the same medication are serialized so at most
// one is in flight; the store is written only after the authority accepts.
type Service struct {
	client  interfaces.VoteClient
	store   interfaces.DataStore
	key     func(entities.Medication) string
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*medLock
}

type medLock struct {
	mu   sync.Mutex
	refs int
}

// Compile-time check to ensure Service implements VoteService
var _ interfaces.VoteService = (*Service)(nil)

// NewService creates a vote service. key must be the store's identity function;
// a zero timeout leaves the caller's context as the only deadline.
func NewService(client interfaces.VoteClient, store interfaces.DataStore, key func(entities.Medication) string, timeout time.Duration) *Service {
	return &Service{
		client:  client,
		store:   store,
		key:     key,
		timeout: timeout,
		locks:   make(map[string]*medLock),
	}
}

// Cast submits a vote for the medication with the given id. Without an actor
// nothing is sent and OutcomeAuthRequired is returned with a nil error.
func (s *Service) Cast(ctx context.Context, actor *entities.Actor, id entities.MedicationID, dir entities.VoteDirection) (entities.VoteResult, error) {
	if actor == nil {
		metrics.VotesTotal.WithLabelValues(string(dir), string(entities.OutcomeAuthRequired)).Inc()
		return entities.VoteResult{Outcome: entities.OutcomeAuthRequired}, nil
	}

	if id == "" {
		return entities.VoteResult{}, entities.NewError(entities.KindMissingContext, "cast vote", "medication id is required")
	}
	key := s.key(entities.Medication{ID: id})
	if _, ok := s.store.Get(key); !ok {
		return entities.VoteResult{}, entities.NewError(entities.KindMissingContext, "cast vote", "medication %s is not part of any comparison", id)
	}

	unlock := s.lock(key)
	defer unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	delta, err := s.client.Submit(ctx, entities.VoteRequest{
		MedicineID: id,
		Vote:       dir,
		IsDoctor:   actor.IsDoctor,
	})
	if err != nil {
		err = classifySubmitError(err)
		metrics.VotesTotal.WithLabelValues(string(dir), entities.KindOf(err).String()).Inc()
		logging.Warn("Vote not applied", "medication_id", id, "actor", actor.ID, "error", err)
		return entities.VoteResult{}, err
	}

	updated, err := s.store.Update(key, func(m entities.Medication) (entities.Medication, error) {
		return ApplyVoteResult(m, delta)
	})
	if err != nil {
		metrics.VotesTotal.WithLabelValues(string(dir), entities.KindOf(err).String()).Inc()
		logging.Error("Vote accepted but aggregate not merged", "medication_id", id, "error", err)
		return entities.VoteResult{}, err
	}

	metrics.VotesTotal.WithLabelValues(string(dir), string(entities.OutcomeApplied)).Inc()
	logging.Info("Vote applied",
		"medication_id", id,
		"actor", actor.ID,
		"direction", dir,
		"doctor_voting_factor", delta.DoctorVotingFactor,
		"total_doctor_votes", delta.TotalDoctorVotes,
	)
	return entities.VoteResult{Outcome: entities.OutcomeApplied, Medication: &updated}, nil
}

// classifySubmitError keeps engine errors as they are and reports transport
// failures and deadlines as rejected votes
func classifySubmitError(err error) error {
	if entities.KindOf(err) != 0 {
		return err
	}
	e := entities.WrapError(entities.KindVoteRejected, "cast vote", err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Status = http.StatusGatewayTimeout
		e.Detail = "vote authority did not answer in time"
	default:
		e.Status = http.StatusBadGateway
		e.Detail = "vote authority unavailable"
	}
	return e
}

// lock serializes callers per key and drops the mutex once nobody holds it
func (s *Service) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &medLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
