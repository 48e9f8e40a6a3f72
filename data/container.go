// Package data provides the normalized medication store for the comparison API.
// Each medication is held once under its identity key and comparisons are kept as
// ordered key lists, so views built from a comparison always read the latest entity.
// Readers load immutable snapshots through atomic.Value; writers copy on write.
package data

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/medcompare-api/curation"
	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/interfaces"
	"github.com/giygas/medcompare-api/logging"
	"golang.org/x/text/cases"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// KeyFunc maps a medication to its identity key
type KeyFunc func(entities.Medication) string

type entry struct {
	med       entities.Medication
	touchedAt time.Time
	// votedAt is when Update last wrote the vote aggregate
	votedAt time.Time
}

// keepVotes copies the vote aggregate of prev onto m
func keepVotes(m entities.Medication, prev entities.Medication) entities.Medication {
	m.DoctorVotingFactor = nil
	if prev.DoctorVotingFactor != nil {
		v := *prev.DoctorVotingFactor
		m.DoctorVotingFactor = &v
	}
	m.TotalUpvotes = prev.TotalUpvotes
	m.TotalDoctorVotes = prev.TotalDoctorVotes
	return m
}

type ref struct {
	key    string
	isBest bool
}

type comparisonRecord struct {
	original     string
	alternatives []ref
	selected     string
	savedAt      time.Time
}

type snapshot struct {
	medications map[string]entry
	comparisons map[string]comparisonRecord
}

// DataContainer holds the store snapshot with an atomic pointer for lock-free reads
type DataContainer struct {
	snap            atomic.Value // *snapshot
	writeMu         sync.Mutex
	key             KeyFunc
	fold            cases.Caser
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
	now             func() time.Time
}

// NewDataContainer creates an empty store using key as the identity function
func NewDataContainer(key KeyFunc) *DataContainer {
	dc := &DataContainer{
		key:  key,
		fold: cases.Fold(),
		now:  time.Now,
	}
	dc.snap.Store(&snapshot{
		medications: make(map[string]entry),
		comparisons: make(map[string]comparisonRecord),
	})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

func (dc *DataContainer) load() *snapshot {
	if v := dc.snap.Load(); v != nil {
		if s, ok := v.(*snapshot); ok {
			return s
		}
	}

	logging.Warn("Store snapshot is empty or invalid")
	return &snapshot{medications: map[string]entry{}, comparisons: map[string]comparisonRecord{}}
}

// clone copies the snapshot maps; entries are values so the copy is independent
func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		medications: make(map[string]entry, len(s.medications)),
		comparisons: make(map[string]comparisonRecord, len(s.comparisons)),
	}
	for k, v := range s.medications {
		next.medications[k] = v
	}
	for k, v := range s.comparisons {
		next.comparisons[k] = v
	}
	return next
}

func (dc *DataContainer) commit(next *snapshot) {
	dc.snap.Store(next)
	dc.lastUpdated.Store(dc.now())
}

// ComparisonKey normalizes a lookup name so "Dolo 650" and "dolo 650 " share a comparison
func (dc *DataContainer) ComparisonKey(name string) string {
	return dc.fold.String(strings.Join(strings.Fields(name), " "))
}

// Upsert stores the given medications, replacing any previous entity with the same key.
// The isBest flag is comparison-specific and is never stored on the entity.
func (dc *DataContainer) Upsert(meds ...entities.Medication) {
	if len(meds) == 0 {
		return
	}

	dc.writeMu.Lock()
	defer dc.writeMu.Unlock()

	next := dc.load().clone()
	now := dc.now()
	for _, m := range meds {
		stored := m.Clone()
		stored.IsBest = false
		next.medications[dc.key(stored)] = entry{med: stored, touchedAt: now}
	}
	dc.commit(next)
}

// Get returns a copy of the entity stored under key
func (dc *DataContainer) Get(key string) (entities.Medication, bool) {
	e, ok := dc.load().medications[key]
	if !ok {
		return entities.Medication{}, false
	}
	return e.med.Clone(), true
}

// Update replaces the entity under key with fn's result and records the write as
// the latest vote aggregate. The entity is left untouched when fn fails or when
// key is unknown.
func (dc *DataContainer) Update(key string, fn func(entities.Medication) (entities.Medication, error)) (entities.Medication, error) {
	dc.writeMu.Lock()
	defer dc.writeMu.Unlock()

	cur := dc.load()
	e, ok := cur.medications[key]
	if !ok {
		return entities.Medication{}, entities.NewError(entities.KindMissingContext, "store update", "medication %s is not loaded", key)
	}

	updated, err := fn(e.med.Clone())
	if err != nil {
		return entities.Medication{}, err
	}
	if k := dc.key(updated); k != key {
		return entities.Medication{}, fmt.Errorf("update changed medication key from %s to %s", key, k)
	}
	updated.IsBest = false

	now := dc.now()
	next := cur.clone()
	next.medications[key] = entry{med: updated.Clone(), touchedAt: now, votedAt: now}
	dc.commit(next)
	return updated, nil
}

// Len returns the number of stored medications
func (dc *DataContainer) Len() int {
	return len(dc.load().medications)
}

// SaveComparison ingests every medication of cmp and registers the comparison
// under the normalized name. Incoming isBest flags are kept on the comparison.
// A stored vote aggregate written after cmp.FetchedAt survives the ingest, so a
// cached lookup never rolls back a vote.
func (dc *DataContainer) SaveComparison(name string, cmp curation.Comparison) error {
	if cmp.Original == nil {
		return entities.NewError(entities.KindMissingContext, "save comparison", "original medication is required")
	}
	name = dc.ComparisonKey(name)
	if name == "" {
		return fmt.Errorf("comparison name is empty")
	}

	dc.writeMu.Lock()
	defer dc.writeMu.Unlock()

	next := dc.load().clone()
	now := dc.now()
	// Within one comparison the first occurrence of a key wins, like curation dedupe
	seen := make(map[string]struct{}, len(cmp.Alternatives)+1)
	put := func(m entities.Medication) string {
		stored := m.Clone()
		stored.IsBest = false
		k := dc.key(stored)
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			e := entry{med: stored, touchedAt: now}
			if prev, ok := next.medications[k]; ok && prev.votedAt.After(cmp.FetchedAt) {
				e.med = keepVotes(stored, prev.med)
				e.votedAt = prev.votedAt
			}
			next.medications[k] = e
		}
		return k
	}

	rec := comparisonRecord{
		original:     put(*cmp.Original),
		alternatives: make([]ref, 0, len(cmp.Alternatives)),
		savedAt:      now,
	}
	for _, m := range cmp.Alternatives {
		rec.alternatives = append(rec.alternatives, ref{key: put(m), isBest: m.IsBest})
	}
	if cmp.Selected != nil {
		rec.selected = dc.key(*cmp.Selected)
	}

	next.comparisons[name] = rec
	dc.commit(next)
	return nil
}

// Comparison rebuilds the comparison registered under name from the current entities.
// It reports false when the comparison or any of its entities is gone.
func (dc *DataContainer) Comparison(name string) (curation.Comparison, bool) {
	s := dc.load()
	rec, ok := s.comparisons[dc.ComparisonKey(name)]
	if !ok {
		return curation.Comparison{}, false
	}

	orig, ok := s.medications[rec.original]
	if !ok {
		return curation.Comparison{}, false
	}
	o := orig.med.Clone()
	cmp := curation.Comparison{
		Original:     &o,
		Alternatives: make([]entities.Medication, 0, len(rec.alternatives)),
	}

	for _, r := range rec.alternatives {
		e, ok := s.medications[r.key]
		if !ok {
			return curation.Comparison{}, false
		}
		m := e.med.Clone()
		m.IsBest = r.isBest
		cmp.Alternatives = append(cmp.Alternatives, m)
	}

	if rec.selected != "" {
		if e, ok := s.medications[rec.selected]; ok {
			sel := e.med.Clone()
			cmp.Selected = &sel
		}
	}
	return cmp, true
}

// ComparisonCount returns the number of registered comparisons
func (dc *DataContainer) ComparisonCount() int {
	return len(dc.load().comparisons)
}

// EvictStale drops medications not touched within maxAge, comparisons saved before
// maxAge and every comparison that references an evicted medication.
func (dc *DataContainer) EvictStale(maxAge time.Duration) (int, int) {
	dc.writeMu.Lock()
	defer dc.writeMu.Unlock()

	cutoff := dc.now().Add(-maxAge)
	next := dc.load().clone()

	meds := 0
	for k, e := range next.medications {
		if e.touchedAt.Before(cutoff) {
			delete(next.medications, k)
			meds++
		}
	}

	comps := 0
	for name, rec := range next.comparisons {
		if rec.savedAt.Before(cutoff) || !next.references(rec) {
			delete(next.comparisons, name)
			comps++
		}
	}

	if meds > 0 || comps > 0 {
		dc.commit(next)
	}
	return meds, comps
}

func (s *snapshot) references(rec comparisonRecord) bool {
	if _, ok := s.medications[rec.original]; !ok {
		return false
	}
	for _, r := range rec.alternatives {
		if _, ok := s.medications[r.key]; !ok {
			return false
		}
	}
	return true
}

// GetLastUpdated returns the timestamp of the last store write
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a maintenance pass is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// BeginUpdate marks the start of a maintenance pass
// Returns true if it can proceed, false if another pass is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a maintenance pass
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}
