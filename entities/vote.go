package entities

import (
	"fmt"
	"strings"
	"time"
)

// Credential is the professional tier of a voting doctor
type Credential string

const (
	CredentialSpecialist Credential = "Specialist"
	CredentialGeneral    Credential = "General"
	CredentialResident   Credential = "Resident"
)

// Credentials lists every accepted credential tier
var Credentials = []Credential{CredentialSpecialist, CredentialGeneral, CredentialResident}

// Valid reports whether c is one of the known tiers
func (c Credential) Valid() bool {
	for _, known := range Credentials {
		if c == known {
			return true
		}
	}
	return false
}

// DoctorVote is a single doctor's rating of a medication. It is an input to
// trust scoring only and is never stored.
type DoctorVote struct {
	DoctorID       string     `json:"doctorId" validate:"required"`
	Credential     Credential `json:"credential" validate:"required,oneof=Specialist General Resident"`
	IsVerified     bool       `json:"isVerified"`
	ExpertiseLevel int        `json:"expertiseLevel" validate:"min=1,max=5"`
	Vote           int        `json:"vote" validate:"min=1,max=5"`
}

// VoteDirection is the direction of a recommendation vote
type VoteDirection string

const (
	VoteUp   VoteDirection = "upvote"
	VoteDown VoteDirection = "downvote"
)

// ParseVoteDirection accepts "upvote"/"downvote" and the short "up"/"down" forms
func ParseVoteDirection(s string) (VoteDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upvote", "up":
		return VoteUp, nil
	case "downvote", "down":
		return VoteDown, nil
	}
	return "", fmt.Errorf("unknown vote direction %q", s)
}

// VoteDelta is the authoritative aggregate returned by the vote authority after a vote
type VoteDelta struct {
	DoctorVotingFactor float64 `json:"doctor_voting_factor"`
	TotalUpvotes       int     `json:"total_upvotes"`
	TotalDoctorVotes   int     `json:"total_doctor_votes"`
}

// Validate checks the aggregate invariants before it is merged into a medication
func (d VoteDelta) Validate() error {
	if d.DoctorVotingFactor < 0 || d.DoctorVotingFactor > 1 || d.DoctorVotingFactor != d.DoctorVotingFactor {
		return fmt.Errorf("doctor_voting_factor %v outside [0,1]", d.DoctorVotingFactor)
	}
	if d.TotalUpvotes < 0 || d.TotalDoctorVotes < 0 {
		return fmt.Errorf("negative vote totals (up=%d, total=%d)", d.TotalUpvotes, d.TotalDoctorVotes)
	}
	if d.TotalUpvotes > d.TotalDoctorVotes {
		return fmt.Errorf("total_upvotes %d exceeds total_doctor_votes %d", d.TotalUpvotes, d.TotalDoctorVotes)
	}
	return nil
}

// VoteRequest is the wire body sent to the vote authority
type VoteRequest struct {
	MedicineID MedicationID  `json:"medicine_id"`
	Vote       VoteDirection `json:"vote"`
	IsDoctor   bool          `json:"is_doctor"`
}

// LookupResponse is the search service payload for a medication name
type LookupResponse struct {
	OriginalMedicine     *Medication  `json:"original_medicine"`
	AlternativeMedicines []Medication `json:"alternative_medicines"`
	// FetchedAt is when the search service answered; cached copies keep it.
	// Zero when unknown.
	FetchedAt time.Time `json:"-"`
}

// Actor is the authenticated caller behind a vote
type Actor struct {
	ID       string `json:"id"`
	IsDoctor bool   `json:"is_doctor"`
}

// VoteOutcome tells the caller what happened to a vote request
type VoteOutcome string

const (
	// OutcomeApplied means the authority accepted the vote and the aggregate was merged
	OutcomeApplied VoteOutcome = "applied"
	// OutcomeAuthRequired means no actor was present and nothing was sent
	OutcomeAuthRequired VoteOutcome = "auth_required"
)

// VoteResult is the result of a vote request. Medication is set only when applied.
type VoteResult struct {
	Outcome    VoteOutcome `json:"outcome"`
	Medication *Medication `json:"medication,omitempty"`
}
