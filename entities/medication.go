// Package entities holds the data shapes that flow through the comparison engine:
// medications, doctor votes, vote aggregates and search service payloads.
package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MedicationID is an opaque medication identifier. The search service sends it
// either as a JSON number or as a string, both decode to the same value.
type MedicationID string

// UnmarshalJSON accepts numbers, strings and null
func (id *MedicationID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid medication id: %w", err)
		}
		*id = MedicationID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid medication id: %w", err)
	}
	*id = MedicationID(n.String())
	return nil
}

// MarshalJSON emits integer-looking ids as numbers so responses keep the upstream shape
func (id MedicationID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// String returns the identifier text
func (id MedicationID) String() string {
	return string(id)
}

// Compositions lists the active ingredients reported by the search service
type Compositions struct {
	Composition1    *string `json:"composition1"`
	Composition2    *string `json:"composition2"`
	SaltComposition *string `json:"salt_composition"`
}

// Medication is a read-only snapshot of a medication as returned by the search service.
// DoctorVotingFactor is nil when no doctor has assessed the medication yet, which is
// not the same as a factor of zero.
type Medication struct {
	ID                 MedicationID  `json:"id"`
	Name               string        `json:"name"`
	Price              string        `json:"price"`
	Manufacturer       string        `json:"manufacturer,omitempty"`
	PackSize           string        `json:"pack_size,omitempty"`
	Compositions       *Compositions `json:"compositions,omitempty"`
	Description        string        `json:"description,omitempty"`
	SideEffects        string        `json:"side_effects,omitempty"`
	DrugInteractions   string        `json:"drug_interactions,omitempty"`
	SideEffectFactor   *float64      `json:"side_effect_factor,omitempty"`
	IsDiscontinued     bool          `json:"is_discontinued"`
	DoctorVotingFactor *float64      `json:"doctor_voting_factor,omitempty"`
	TotalUpvotes       int           `json:"total_upvotes"`
	TotalDoctorVotes   int           `json:"total_doctor_votes"`
	IsBest             bool          `json:"isBest"`
}

// Clone returns a deep copy so callers never share pointer fields with a snapshot
func (m Medication) Clone() Medication {
	c := m
	if m.DoctorVotingFactor != nil {
		v := *m.DoctorVotingFactor
		c.DoctorVotingFactor = &v
	}
	if m.SideEffectFactor != nil {
		v := *m.SideEffectFactor
		c.SideEffectFactor = &v
	}
	if m.Compositions != nil {
		comp := *m.Compositions
		comp.Composition1 = cloneString(m.Compositions.Composition1)
		comp.Composition2 = cloneString(m.Compositions.Composition2)
		comp.SaltComposition = cloneString(m.Compositions.SaltComposition)
		c.Compositions = &comp
	}
	return c
}

// Downvotes is the number of doctor votes that were not upvotes
func (m Medication) Downvotes() int {
	if d := m.TotalDoctorVotes - m.TotalUpvotes; d > 0 {
		return d
	}
	return 0
}

// Assessed reports whether at least one doctor vote aggregate exists
func (m Medication) Assessed() bool {
	return m.DoctorVotingFactor != nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Float64 returns a pointer to v, handy for optional numeric fields
func Float64(v float64) *float64 {
	return &v
}
