package recommendation

import (
	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/trust"
)

// Summary is the display-ready recommendation state of one medication
type Summary struct {
	Percentage      float64 `json:"percentage"`
	Assessed        bool    `json:"assessed"`
	Label           string  `json:"label"`
	Band            Band    `json:"band"`
	Upvotes         int     `json:"upvotes"`
	Downvotes       int     `json:"downvotes"`
	TotalVotes      int     `json:"total_votes"`
	UpvotesText     string  `json:"upvotes_text"`
	TotalVotesText  string  `json:"total_votes_text"`
	ProgressWidth   string  `json:"progress_width"`
	SideEffectsRisk string  `json:"side_effects_risk"`
}

// Summarize derives the summary from the medication's vote aggregate.
// A missing voting factor is reported as unassessed with a zero percentage.
func (c *Classifier) Summarize(m entities.Medication) Summary {
	var pct float64
	if m.DoctorVotingFactor != nil {
		pct = *m.DoctorVotingFactor * 100
	}

	return Summary{
		Percentage:      pct,
		Assessed:        m.Assessed(),
		Label:           c.Label(pct),
		Band:            c.Band(pct),
		Upvotes:         m.TotalUpvotes,
		Downvotes:       m.Downvotes(),
		TotalVotes:      m.TotalDoctorVotes,
		UpvotesText:     FormatCount(m.TotalUpvotes),
		TotalVotesText:  FormatCount(m.TotalDoctorVotes),
		ProgressWidth:   ProgressWidthCSS(pct),
		SideEffectsRisk: string(SideEffectRisk(m.SideEffectFactor, nil)),
	}
}

// SideEffectRisk classifies a medication's side effect factor. A trust score, when
// given, takes precedence. Missing or negative factors (-1 marks "unknown") are low.
func SideEffectRisk(factor *float64, trustScore *float64) trust.RiskLevel {
	if trustScore != nil {
		return trust.RiskFromScore(*trustScore)
	}
	if factor == nil || *factor < 0 {
		return trust.RiskLow
	}
	switch {
	case *factor < 1.5:
		return trust.RiskLow
	case *factor < 3:
		return trust.RiskMedium
	default:
		return trust.RiskHigh
	}
}
