package recommendation

import (
	"math"
	"testing"

	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/trust"
)

func TestLabel(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	tests := []struct {
		p        float64
		expected string
	}{
		{0, LabelNotYet},
		{0.5, LabelMinimally},
		{1, LabelMinimally},
		{24.9, LabelMinimally},
		{25, LabelModerately},
		{49.99, LabelModerately},
		{50, LabelRecommend},
		{74.9, LabelRecommend},
		{75, LabelHighly},
		{100, LabelHighly},
	}

	for _, tt := range tests {
		if got := c.Label(tt.p); got != tt.expected {
			t.Errorf("Label(%v) = %q, expected %q", tt.p, got, tt.expected)
		}
	}
}

// Zero is special for labels only: the band still treats it as the lowest tier
func TestZeroLabelVersusBand(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	if c.Label(0) == c.Label(1) {
		t.Error("An unassessed medication must not share the label of a 1% medication")
	}
	if c.Band(0) != c.Band(1) {
		t.Errorf("Expected 0 and 1 to share a band, got %v and %v", c.Band(0), c.Band(1))
	}
	if c.TierOf(0) != TierMin {
		t.Errorf("Expected tier %s for 0, got %s", TierMin, c.TierOf(0))
	}
}

func TestBand(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	tests := []struct {
		p     float64
		tier  Tier
		color string
		bg    string
	}{
		{90, TierHigh, "text-emerald-600 dark:text-emerald-400", "bg-emerald-500"},
		{75, TierHigh, "text-emerald-600 dark:text-emerald-400", "bg-emerald-500"},
		{60, TierMid, "text-blue-600 dark:text-blue-400", "bg-blue-500"},
		{25, TierLow, "text-amber-600 dark:text-amber-400", "bg-amber-500"},
		{10, TierMin, "text-red-600 dark:text-red-400", "bg-red-500"},
	}

	for _, tt := range tests {
		band := c.Band(tt.p)
		if band.Tier != tt.tier {
			t.Errorf("Band(%v).Tier = %s, expected %s", tt.p, band.Tier, tt.tier)
		}
		if c.ColorClass(tt.p) != tt.color {
			t.Errorf("ColorClass(%v) = %s, expected %s", tt.p, c.ColorClass(tt.p), tt.color)
		}
		if c.BgClass(tt.p) != tt.bg {
			t.Errorf("BgClass(%v) = %s, expected %s", tt.p, c.BgClass(tt.p), tt.bg)
		}
	}
}

func TestCustomThresholds(t *testing.T) {
	c := NewClassifier(Thresholds{High: 90, Mid: 60, Low: 30})

	if got := c.Label(80); got != LabelRecommend {
		t.Errorf("Expected %q at 80 with high=90, got %q", LabelRecommend, got)
	}
	if got := c.Label(29); got != LabelMinimally {
		t.Errorf("Expected %q at 29 with low=30, got %q", LabelMinimally, got)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("Expected default thresholds to be valid, got %v", err)
	}

	invalid := []Thresholds{
		{High: 50, Mid: 50, Low: 25},
		{High: 75, Mid: 20, Low: 25},
		{High: 120, Mid: 50, Low: 25},
		{High: 75, Mid: 50, Low: -1},
	}
	for _, th := range invalid {
		if err := th.Validate(); err == nil {
			t.Errorf("Expected %+v to be rejected", th)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{999_000, "999.0K"},
		{1_000_000, "1.0M"},
		{2_500_000, "2.5M"},
	}

	for _, tt := range tests {
		if got := FormatCount(tt.n); got != tt.expected {
			t.Errorf("FormatCount(%d) = %q, expected %q", tt.n, got, tt.expected)
		}
	}
}

func TestProgressWidth(t *testing.T) {
	tests := []struct {
		p        float64
		expected float64
		css      string
	}{
		{-10, 0, "0%"},
		{0, 0, "0%"},
		{42.5, 42.5, "42.5%"},
		{100, 100, "100%"},
		{180, 100, "100%"},
		{math.NaN(), 0, "0%"},
	}

	for _, tt := range tests {
		if got := ProgressWidth(tt.p); got != tt.expected {
			t.Errorf("ProgressWidth(%v) = %v, expected %v", tt.p, got, tt.expected)
		}
		if got := ProgressWidthCSS(tt.p); got != tt.css {
			t.Errorf("ProgressWidthCSS(%v) = %q, expected %q", tt.p, got, tt.css)
		}
	}
}

func TestSummarize(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	t.Run("unassessed medication", func(t *testing.T) {
		s := c.Summarize(entities.Medication{Name: "Dolo 650"})
		if s.Assessed {
			t.Error("Expected medication without factor to be unassessed")
		}
		if s.Label != LabelNotYet {
			t.Errorf("Expected %q, got %q", LabelNotYet, s.Label)
		}
		if s.ProgressWidth != "0%" {
			t.Errorf("Expected 0%% width, got %s", s.ProgressWidth)
		}
	})

	t.Run("assessed medication", func(t *testing.T) {
		s := c.Summarize(entities.Medication{
			Name:               "Calpol 500",
			DoctorVotingFactor: entities.Float64(0.8),
			TotalUpvotes:       1200,
			TotalDoctorVotes:   1500,
			SideEffectFactor:   entities.Float64(2),
		})
		if !s.Assessed {
			t.Error("Expected medication with factor to be assessed")
		}
		if s.Label != LabelHighly {
			t.Errorf("Expected %q, got %q", LabelHighly, s.Label)
		}
		if s.Downvotes != 300 {
			t.Errorf("Expected 300 downvotes, got %d", s.Downvotes)
		}
		if s.UpvotesText != "1.2K" || s.TotalVotesText != "1.5K" {
			t.Errorf("Unexpected count texts %s/%s", s.UpvotesText, s.TotalVotesText)
		}
		if s.SideEffectsRisk != string(trust.RiskMedium) {
			t.Errorf("Expected medium side effects risk, got %s", s.SideEffectsRisk)
		}
	})

	t.Run("assessed at zero keeps the not yet label", func(t *testing.T) {
		s := c.Summarize(entities.Medication{DoctorVotingFactor: entities.Float64(0), TotalDoctorVotes: 4})
		if !s.Assessed {
			t.Error("Expected zero factor to still count as assessed")
		}
		if s.Label != LabelNotYet {
			t.Errorf("Expected %q, got %q", LabelNotYet, s.Label)
		}
	})
}

func TestSideEffectRisk(t *testing.T) {
	tests := []struct {
		name     string
		factor   *float64
		trust    *float64
		expected trust.RiskLevel
	}{
		{"missing factor", nil, nil, trust.RiskLow},
		{"unknown marker", entities.Float64(-1), nil, trust.RiskLow},
		{"low", entities.Float64(1.49), nil, trust.RiskLow},
		{"medium lower bound", entities.Float64(1.5), nil, trust.RiskMedium},
		{"high lower bound", entities.Float64(3), nil, trust.RiskHigh},
		{"trust score wins", entities.Float64(4), entities.Float64(4.2), trust.RiskLow},
		{"low trust score", entities.Float64(0.2), entities.Float64(1), trust.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SideEffectRisk(tt.factor, tt.trust); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
