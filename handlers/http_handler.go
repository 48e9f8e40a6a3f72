package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/giygas/medcompare-api/auth"
	"github.com/giygas/medcompare-api/curation"
	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/interfaces"
	"github.com/giygas/medcompare-api/logging"
	"github.com/giygas/medcompare-api/metrics"
	"github.com/giygas/medcompare-api/recommendation"
	"github.com/giygas/medcompare-api/trust"
	"github.com/go-chi/chi/v5"
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore  interfaces.DataStore
	search     interfaces.SearchClient
	votes      interfaces.VoteService
	validator  interfaces.InputValidator
	health     interfaces.HealthChecker
	curator    *curation.Curator
	calculator *trust.Calculator
	classifier *recommendation.Classifier
}

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// Deps groups the collaborators of the handler
type Deps struct {
	DataStore  interfaces.DataStore
	Search     interfaces.SearchClient
	Votes      interfaces.VoteService
	Validator  interfaces.InputValidator
	Health     interfaces.HealthChecker
	Curator    *curation.Curator
	Calculator *trust.Calculator
	Classifier *recommendation.Classifier
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(d Deps) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore:  d.DataStore,
		search:     d.Search,
		votes:      d.Votes,
		validator:  d.Validator,
		health:     d.Health,
		curator:    d.Curator,
		calculator: d.Calculator,
		classifier: d.Classifier,
	}
}

// ComparisonResponse is a curated comparison plus the recommendation summary of
// every medication in it, keyed by medication id (name when the id is missing)
type ComparisonResponse struct {
	Name string `json:"name"`
	*curation.CuratedSet
	Summaries map[string]recommendation.Summary `json:"summaries"`
}

// DrillDownRequest moves the comparison registered under Name to the alternative Target
type DrillDownRequest struct {
	Name   string `json:"name" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// VoteRequest is the body of POST /api/vote
type VoteRequest struct {
	MedicineID entities.MedicationID `json:"medicine_id" validate:"required"`
	Vote       string                `json:"vote" validate:"required"`
}

// VoteResponse carries the refreshed medication after an applied vote
type VoteResponse struct {
	Outcome    entities.VoteOutcome   `json:"outcome"`
	Medication *entities.Medication   `json:"medication"`
	Summary    recommendation.Summary `json:"summary"`
}

// TrustScoreRequest is the body of POST /api/trust-score. Every vote must be
// well formed; unverified ones are still left out of the score.
type TrustScoreRequest struct {
	Votes []entities.DoctorVote `json:"votes" validate:"max=1000,dive"`
}

// TrustScoreResponse is the weighted trust score of a vote set
type TrustScoreResponse struct {
	Score               float64         `json:"score"`
	RiskLevel           trust.RiskLevel `json:"risk_level"`
	ExceedsDisplayRange bool            `json:"exceeds_display_range"`
}

// RecommendationResponse is the display classification of a percentage
type RecommendationResponse struct {
	Percentage    float64             `json:"percentage"`
	Label         string              `json:"label"`
	Band          recommendation.Band `json:"band"`
	ProgressWidth string              `json:"progress_width"`
}

// MedicationResponse is a stored medication with its summary
type MedicationResponse struct {
	Medication entities.Medication    `json:"medication"`
	Summary    recommendation.Summary `json:"summary"`
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// Compare looks a medication up, registers the comparison in the store and returns
// it curated. The optional selected parameter is an alternative id or name.
func (h *HTTPHandlerImpl) Compare(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing name parameter")
		return
	}
	if err := h.validator.ValidateInput(name); err != nil {
		logging.Warn("Unusual user input", "name", name)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	lookup, err := h.search.Lookup(r.Context(), name)
	if err != nil {
		h.respondWithLookupError(w, r, err)
		return
	}

	cmp := curation.Comparison{
		Original:     lookup.OriginalMedicine,
		Alternatives: lookup.AlternativeMedicines,
		FetchedAt:    lookup.FetchedAt,
	}
	if sel := strings.TrimSpace(r.URL.Query().Get("selected")); sel != "" {
		cmp.Selected = findAlternative(cmp.Alternatives, sel)
		if cmp.Selected == nil {
			err := entities.NewError(entities.KindMissingContext, "compare", "selected medication %q is not among the alternatives", sel)
			metrics.ObserveCuration("curate", err, entities.KindOf(err).String())
			respondWithEngineError(w, r, err)
			return
		}
	}

	if err := h.dataStore.SaveComparison(name, cmp); err != nil {
		respondWithEngineError(w, r, err)
		return
	}

	h.respondWithComparison(w, r, "curate", name)
}

// DrillDown re-ranks a registered comparison around one of its alternatives and
// registers the result under the new original's name
func (h *HTTPHandlerImpl) DrillDown(w http.ResponseWriter, r *http.Request) {
	var req DrillDownRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	cmp, ok := h.dataStore.Comparison(req.Name)
	if !ok {
		RespondWithError(w, http.StatusNotFound, "Comparison not found, compare the medication first")
		return
	}

	target := findAlternative(cmp.Alternatives, req.Target)
	if target == nil {
		target = &entities.Medication{ID: entities.MedicationID(req.Target), Name: req.Target}
	}

	next, err := h.curator.DrillDown(cmp, *target)
	metrics.ObserveCuration("drill_down", err, entities.KindOf(err).String())
	if err != nil {
		respondWithEngineError(w, r, err)
		return
	}

	if err := h.dataStore.SaveComparison(next.Original.Name, next); err != nil {
		respondWithEngineError(w, r, err)
		return
	}

	h.respondWithComparison(w, r, "curate", next.Original.Name)
}

// Vote casts a recommendation vote for the authenticated actor.
// Anonymous callers get 401 with auth_required so the client can prompt a sign-in.
func (h *HTTPHandlerImpl) Vote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.validator.ValidateMedicationID(req.MedicineID.String())
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	dir, err := entities.ParseVoteDirection(req.Vote)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.votes.Cast(r.Context(), auth.ActorFrom(r.Context()), id, dir)
	if err != nil {
		respondWithEngineError(w, r, err)
		return
	}

	if result.Outcome == entities.OutcomeAuthRequired {
		RespondWithJSON(w, http.StatusUnauthorized, map[string]any{
			"auth_required": true,
			"message":       "Sign in to vote",
		})
		return
	}

	resp := VoteResponse{Outcome: result.Outcome, Medication: result.Medication}
	if result.Medication != nil {
		resp.Summary = h.classifier.Summarize(*result.Medication)
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// TrustScore computes the weighted trust score of a set of doctor votes
func (h *HTTPHandlerImpl) TrustScore(w http.ResponseWriter, r *http.Request) {
	var req TrustScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	score, err := h.calculator.Score(req.Votes)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	RespondWithJSON(w, http.StatusOK, TrustScoreResponse{
		Score:               score,
		RiskLevel:           trust.RiskFromScore(score),
		ExceedsDisplayRange: trust.ExceedsDisplayRange(score),
	})
}

// Recommendation classifies a recommendation percentage
func (h *HTTPHandlerImpl) Recommendation(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("percentage")
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		logging.Warn("Unusual user input", "percentage", raw)
		RespondWithError(w, http.StatusBadRequest, "percentage must be a number")
		return
	}

	RespondWithJSON(w, http.StatusOK, RecommendationResponse{
		Percentage:    p,
		Label:         h.classifier.Label(p),
		Band:          h.classifier.Band(p),
		ProgressWidth: recommendation.ProgressWidthCSS(p),
	})
}

// FindMedication returns a stored medication by id
func (h *HTTPHandlerImpl) FindMedication(w http.ResponseWriter, r *http.Request) {
	id, err := h.validator.ValidateMedicationID(chi.URLParam(r, "id"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	med, ok := h.dataStore.Get(curation.IdentityKey(entities.Medication{ID: id}))
	if !ok {
		RespondWithError(w, http.StatusNotFound, "Medication not found")
		return
	}

	RespondWithJSON(w, http.StatusOK, MedicationResponse{
		Medication: med,
		Summary:    h.classifier.Summarize(med),
	})
}

// HealthCheck returns store statistics and upstream availability
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.health.HealthCheck()
	RespondWithJSON(w, httpStatus, HealthResponse{Status: status, Data: data})
}

// respondWithComparison curates the comparison registered under name from the store
// so the response reflects every vote already applied to its medications
func (h *HTTPHandlerImpl) respondWithComparison(w http.ResponseWriter, r *http.Request, op, name string) {
	cmp, ok := h.dataStore.Comparison(name)
	if !ok {
		err := entities.NewError(entities.KindMissingContext, op, "comparison %q is no longer available", name)
		metrics.ObserveCuration(op, err, entities.KindOf(err).String())
		respondWithEngineError(w, r, err)
		return
	}

	set, err := h.curator.Curate(cmp)
	metrics.ObserveCuration(op, err, entities.KindOf(err).String())
	if err != nil {
		respondWithEngineError(w, r, err)
		return
	}

	summaries := make(map[string]recommendation.Summary, len(set.Alternatives)+1)
	summaries[summaryKey(set.Original)] = h.classifier.Summarize(set.Original)
	for _, m := range set.Alternatives {
		summaries[summaryKey(m)] = h.classifier.Summarize(m)
	}

	RespondWithJSON(w, http.StatusOK, ComparisonResponse{
		Name:       name,
		CuratedSet: set,
		Summaries:  summaries,
	})
}

// respondWithLookupError maps search failures: engine errors keep their kind,
// anything else means the search service could not answer
func (h *HTTPHandlerImpl) respondWithLookupError(w http.ResponseWriter, r *http.Request, err error) {
	var e *entities.EngineError
	if errors.As(err, &e) {
		respondWithEngineError(w, r, err)
		return
	}
	logging.Warn("Search service unavailable", "path", r.URL.Path, "error", err)
	RespondWithError(w, http.StatusBadGateway, "Search service unavailable")
}

// findAlternative matches ref against ids first, then names case-insensitively
func findAlternative(alts []entities.Medication, ref string) *entities.Medication {
	for i := range alts {
		if alts[i].ID != "" && string(alts[i].ID) == ref {
			m := alts[i].Clone()
			return &m
		}
	}
	for i := range alts {
		if strings.EqualFold(strings.TrimSpace(alts[i].Name), ref) {
			m := alts[i].Clone()
			return &m
		}
	}
	return nil
}

func summaryKey(m entities.Medication) string {
	if m.ID != "" {
		return m.ID.String()
	}
	return m.Name
}
