// Package trust turns verified doctor votes into a weighted trust score.
package trust

import (
	"fmt"
	"math"

	"github.com/giygas/medcompare-api/entities"
)

// DisplayMax is the upper bound of the nominal 0-5 display range
const DisplayMax = 5.0

// Policy holds the weighting table and range handling for trust scoring
type Policy struct {
	CredentialWeights map[entities.Credential]float64
	// Clamp bounds the score to [0, DisplayMax]. Off by default: a verified specialist
	// at full expertise can push the weighted average up to 7.5.
	Clamp bool
}

// DefaultPolicy returns the standard credential weights without clamping
func DefaultPolicy() Policy {
	return Policy{
		CredentialWeights: map[entities.Credential]float64{
			entities.CredentialSpecialist: 1.5,
			entities.CredentialGeneral:    1.0,
			entities.CredentialResident:   0.7,
		},
	}
}

// Calculator computes trust scores under a fixed policy
type Calculator struct {
	policy Policy
}

// NewCalculator creates a calculator; a nil weight table falls back to the defaults
func NewCalculator(policy Policy) *Calculator {
	if policy.CredentialWeights == nil {
		policy.CredentialWeights = DefaultPolicy().CredentialWeights
	}
	return &Calculator{policy: policy}
}

// Score returns the weighted mean of verified votes rounded to one decimal.
// Each vote contributes vote * credentialWeight * expertise/5. Unverified votes are
// ignored; no verified votes gives 0. A verified vote with an unknown credential or an
// out of range expertise/vote is rejected.
func (c *Calculator) Score(votes []entities.DoctorVote) (float64, error) {
	var sum float64
	var verified int

	for i, v := range votes {
		if !v.IsVerified {
			continue
		}

		weight, ok := c.policy.CredentialWeights[v.Credential]
		if !ok {
			return 0, fmt.Errorf("vote %d: no weight for credential %q", i, v.Credential)
		}
		if v.ExpertiseLevel < 1 || v.ExpertiseLevel > 5 {
			return 0, fmt.Errorf("vote %d: expertise level %d outside 1-5", i, v.ExpertiseLevel)
		}
		if v.Vote < 1 || v.Vote > 5 {
			return 0, fmt.Errorf("vote %d: rating %d outside 1-5", i, v.Vote)
		}

		sum += float64(v.Vote) * weight * (float64(v.ExpertiseLevel) / 5)
		verified++
	}

	if verified == 0 {
		return 0, nil
	}

	score := roundTenth(sum / float64(verified))
	if c.policy.Clamp {
		score = math.Max(0, math.Min(DisplayMax, score))
	}
	return score, nil
}

// ExceedsDisplayRange reports whether a score falls outside the nominal 0-5 range
func ExceedsDisplayRange(score float64) bool {
	return score < 0 || score > DisplayMax
}

// roundTenth rounds half up to one decimal place
func roundTenth(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// RiskLevel is a coarse risk band
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskFromScore maps a trust score to a risk level: >=4 low, >=2.5 medium, else high
func RiskFromScore(score float64) RiskLevel {
	switch {
	case score >= 4:
		return RiskLow
	case score >= 2.5:
		return RiskMedium
	default:
		return RiskHigh
	}
}
