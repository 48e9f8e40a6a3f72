// Package curation deduplicates, ranks and partitions a medication's alternatives
// and computes price differences against the original medication.
package curation

import (
	"fmt"
	"sort"
	"time"

	"github.com/giygas/medcompare-api/entities"
	"golang.org/x/text/unicode/norm"
)

// BestSelection decides how the best alternative is chosen
type BestSelection string

const (
	// BestCheapest always re-derives the cheapest parsable price as best and
	// ignores incoming flags
	BestCheapest BestSelection = "cheapest"
	// BestFlagged trusts an incoming isBest flag and falls back to the first entry
	BestFlagged BestSelection = "flagged"
)

// DedupeKey decides which field identifies duplicates within a curated view.
// It never changes entity identity: the store and votes key by IdentityKey.
type DedupeKey string

const (
	// DedupeIdentity keys by id, falling back to the name when id is empty
	DedupeIdentity DedupeKey = "identity"
	// DedupeName keys by display name only
	DedupeName DedupeKey = "name"
)

// Policy configures the curator
type Policy struct {
	Best   BestSelection
	Dedupe DedupeKey
}

// DefaultPolicy returns cheapest-as-best with identity keys
func DefaultPolicy() Policy {
	return Policy{Best: BestCheapest, Dedupe: DedupeIdentity}
}

// Validate rejects unknown modes
func (p Policy) Validate() error {
	switch p.Best {
	case BestCheapest, BestFlagged:
	default:
		return fmt.Errorf("unknown best selection %q", p.Best)
	}
	switch p.Dedupe {
	case DedupeIdentity, DedupeName:
	default:
		return fmt.Errorf("unknown dedupe key %q", p.Dedupe)
	}
	return nil
}

// Comparison is the input context of a curation: an original medication, its
// alternatives as received and an optional selected alternative
type Comparison struct {
	Original     *entities.Medication
	Alternatives []entities.Medication
	Selected     *entities.Medication
	// FetchedAt is when the source data was read from the search service.
	// Zero for comparisons rebuilt from the store.
	FetchedAt time.Time
}

// CuratedSet is the derived view of a comparison. Alternatives holds the
// deduplicated list with exactly one entry flagged best (none when empty).
type CuratedSet struct {
	Original        entities.Medication   `json:"original"`
	Alternatives    []entities.Medication `json:"alternatives"`
	Best            *entities.Medication  `json:"best"`
	Selected        *entities.Medication  `json:"selected"`
	Current         *entities.Medication  `json:"current"`
	Remaining       []entities.Medication `json:"remaining"`
	Ordered         []entities.Medication `json:"ordered"`
	PriceDeltas     map[string]Delta      `json:"price_deltas"`
	PriceComparable bool                  `json:"price_comparable"`
	keys            map[string]int
}

// Curator applies a Policy to comparisons. It holds no state between calls.
type Curator struct {
	policy Policy
}

// NewCurator creates a curator; zero policy fields take the defaults
func NewCurator(p Policy) *Curator {
	def := DefaultPolicy()
	if p.Best == "" {
		p.Best = def.Best
	}
	if p.Dedupe == "" {
		p.Dedupe = def.Dedupe
	}
	return &Curator{policy: p}
}

// Policy returns the curator's policy
func (c *Curator) Policy() Policy {
	return c.policy
}

// Key returns the deduplication key of m under the curator's policy
func (c *Curator) Key(m entities.Medication) string {
	if c.policy.Dedupe == DedupeIdentity {
		return IdentityKey(m)
	}
	return nameKey(m)
}

// IdentityKey keys a medication by id, or by its NFC-normalized name when the id is empty
func IdentityKey(m entities.Medication) string {
	if m.ID != "" {
		return "id:" + m.ID.String()
	}
	return nameKey(m)
}

func nameKey(m entities.Medication) string {
	return "name:" + norm.NFC.String(m.Name)
}

// Dedupe keeps the first occurrence of each key in input order. Later duplicates
// are dropped even when they carry different vote aggregates. The result holds copies.
func (c *Curator) Dedupe(alternatives []entities.Medication) []entities.Medication {
	seen := make(map[string]struct{}, len(alternatives))
	out := make([]entities.Medication, 0, len(alternatives))

	for _, m := range alternatives {
		k := c.Key(m)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m.Clone())
	}
	return out
}

// SelectBest returns the index of the best entry in a deduplicated list, or -1 when empty
func (c *Curator) SelectBest(deduped []entities.Medication) int {
	if len(deduped) == 0 {
		return -1
	}

	if c.policy.Best == BestFlagged {
		for i, m := range deduped {
			if m.IsBest {
				return i
			}
		}
		return 0
	}

	best := -1
	var bestPrice float64
	for i, m := range deduped {
		p, err := ParsePrice(m.Price)
		if err != nil {
			continue
		}
		if best == -1 || p < bestPrice {
			best, bestPrice = i, p
		}
	}
	if best == -1 {
		return 0
	}
	return best
}

// Remaining returns every deduplicated entry whose key is neither the selected
// one nor the best one. When selected and best coincide the key is excluded once.
func (c *Curator) Remaining(deduped []entities.Medication, selected, best *entities.Medication) []entities.Medication {
	excluded := make(map[string]struct{}, 2)
	if selected != nil {
		excluded[c.Key(*selected)] = struct{}{}
	}
	if best != nil {
		excluded[c.Key(*best)] = struct{}{}
	}

	out := make([]entities.Medication, 0, len(deduped))
	for _, m := range deduped {
		if _, skip := excluded[c.Key(m)]; skip {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

// Curate derives the full display view of a comparison. A missing original, or a
// selected medication that is not among the alternatives, is a MissingContext error.
func (c *Curator) Curate(cmp Comparison) (*CuratedSet, error) {
	if cmp.Original == nil {
		return nil, entities.NewError(entities.KindMissingContext, "curate", "original medication is required")
	}

	alts := c.Dedupe(cmp.Alternatives)
	bestIdx := c.SelectBest(alts)
	for i := range alts {
		alts[i].IsBest = i == bestIdx
	}

	set := &CuratedSet{
		Original:     cmp.Original.Clone(),
		Alternatives: alts,
		PriceDeltas:  make(map[string]Delta, len(alts)),
		keys:         make(map[string]int, len(alts)),
	}
	set.Original.IsBest = false
	for i, m := range alts {
		set.keys[c.Key(m)] = i
	}

	if bestIdx >= 0 {
		b := alts[bestIdx].Clone()
		set.Best = &b
	}

	if cmp.Selected != nil {
		idx, ok := set.keys[c.Key(*cmp.Selected)]
		if !ok {
			return nil, entities.NewError(entities.KindMissingContext, "curate",
				"selected medication %q is not among the alternatives", cmp.Selected.Name)
		}
		s := alts[idx].Clone()
		set.Selected = &s
	}

	switch {
	case set.Selected != nil:
		cur := set.Selected.Clone()
		set.Current = &cur
	case set.Best != nil:
		cur := set.Best.Clone()
		set.Current = &cur
	}

	set.Remaining = c.Remaining(alts, set.Selected, set.Best)

	set.Ordered = make([]entities.Medication, 0, len(alts))
	if set.Current != nil {
		set.Ordered = append(set.Ordered, set.Current.Clone())
		if set.Best != nil && c.Key(*set.Best) != c.Key(*set.Current) {
			set.Ordered = append(set.Ordered, set.Best.Clone())
		}
	}
	for _, m := range set.Remaining {
		set.Ordered = append(set.Ordered, m.Clone())
	}

	if orig, err := ParsePrice(set.Original.Price); err == nil && orig > 0 {
		set.PriceComparable = true
		for _, m := range alts {
			if d, err := PriceDelta(set.Original.Price, m.Price); err == nil {
				set.PriceDeltas[c.Key(m)] = d
			}
		}
	}

	return set, nil
}

// DeltaFor returns the price delta of m against the original, when computable
func (s *CuratedSet) DeltaFor(c *Curator, m entities.Medication) (Delta, bool) {
	d, ok := s.PriceDeltas[c.Key(m)]
	return d, ok
}

// Contains reports whether m is among the curated alternatives
func (s *CuratedSet) Contains(c *Curator, m entities.Medication) bool {
	_, ok := s.keys[c.Key(m)]
	return ok
}

// DrillDown moves the comparison to one of its alternatives. The target becomes the
// new original; the previous original and selected medication leave the candidate
// pool so nothing is compared with itself; the pool is ranked by price ascending and
// its cheapest entry is the only one flagged best.
func (c *Curator) DrillDown(cmp Comparison, target entities.Medication) (Comparison, error) {
	if cmp.Original == nil {
		return Comparison{}, entities.NewError(entities.KindMissingContext, "drill down", "original medication is required")
	}

	alts := c.Dedupe(cmp.Alternatives)
	targetKey := c.Key(target)

	var newOriginal *entities.Medication
	for i := range alts {
		if c.Key(alts[i]) == targetKey {
			m := alts[i].Clone()
			m.IsBest = false
			newOriginal = &m
			break
		}
	}
	if newOriginal == nil {
		return Comparison{}, entities.NewError(entities.KindMissingContext, "drill down",
			"target %q is not among the alternatives", target.Name)
	}

	excluded := make(map[string]struct{}, 3)
	excluded[targetKey] = struct{}{}
	excluded[c.Key(*cmp.Original)] = struct{}{}
	if cmp.Selected != nil {
		excluded[c.Key(*cmp.Selected)] = struct{}{}
	}

	pool := make([]entities.Medication, 0, len(alts))
	for _, m := range alts {
		if _, skip := excluded[c.Key(m)]; skip {
			continue
		}
		pool = append(pool, m)
	}

	RankByPrice(pool)
	for i := range pool {
		pool[i].IsBest = i == 0
	}

	return Comparison{Original: newOriginal, Alternatives: pool}, nil
}

// RankByPrice sorts medications by parsed price ascending in place. The sort is
// stable; unparsable prices go last in their original order.
func RankByPrice(meds []entities.Medication) {
	prices := make([]float64, len(meds))
	valid := make([]bool, len(meds))
	for i, m := range meds {
		p, err := ParsePrice(m.Price)
		prices[i], valid[i] = p, err == nil
	}

	idx := make([]int, len(meds))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if valid[ia] != valid[ib] {
			return valid[ia]
		}
		return valid[ia] && prices[ia] < prices[ib]
	})

	sorted := make([]entities.Medication, len(meds))
	for i, j := range idx {
		sorted[i] = meds[j]
	}
	copy(meds, sorted)
}
