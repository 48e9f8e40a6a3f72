// Package recommendation classifies doctor recommendation percentages into labels
// and severity bands, and formats vote counts for display.
package recommendation

import (
	"fmt"
	"math"
	"strconv"
)

// Labels
const (
	LabelNotYet     = "Not Yet Recommended"
	LabelHighly     = "Highly Recommended"
	LabelRecommend  = "Recommended"
	LabelModerately = "Moderately Recommended"
	LabelMinimally  = "Minimally Recommended"
)

// Thresholds are the lower bounds (inclusive) of the high, mid and low bands
type Thresholds struct {
	High float64
	Mid  float64
	Low  float64
}

// DefaultThresholds returns 75/50/25
func DefaultThresholds() Thresholds {
	return Thresholds{High: 75, Mid: 50, Low: 25}
}

// Validate checks that the thresholds are ordered inside [0,100]
func (t Thresholds) Validate() error {
	if t.Low < 0 || t.High > 100 {
		return fmt.Errorf("thresholds must lie within [0,100], got low=%v high=%v", t.Low, t.High)
	}
	if !(t.Low < t.Mid && t.Mid < t.High) {
		return fmt.Errorf("thresholds must satisfy low < mid < high, got %v/%v/%v", t.Low, t.Mid, t.High)
	}
	return nil
}

// Tier is one of the four severity bands
type Tier string

const (
	TierHigh Tier = "high"
	TierMid  Tier = "mid"
	TierLow  Tier = "low"
	TierMin  Tier = "minimal"
)

// Band is the display styling attached to a tier
type Band struct {
	Tier       Tier   `json:"tier"`
	ColorClass string `json:"color_class"`
	BgClass    string `json:"bg_class"`
}

var bands = map[Tier]Band{
	TierHigh: {Tier: TierHigh, ColorClass: "text-emerald-600 dark:text-emerald-400", BgClass: "bg-emerald-500"},
	TierMid:  {Tier: TierMid, ColorClass: "text-blue-600 dark:text-blue-400", BgClass: "bg-blue-500"},
	TierLow:  {Tier: TierLow, ColorClass: "text-amber-600 dark:text-amber-400", BgClass: "bg-amber-500"},
	TierMin:  {Tier: TierMin, ColorClass: "text-red-600 dark:text-red-400", BgClass: "bg-red-500"},
}

// Classifier maps percentages to labels and bands using injected thresholds
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier with the given thresholds
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{thresholds: t}
}

// Thresholds returns the configured thresholds
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// TierOf returns the severity tier of p. Zero falls into the minimal tier here;
// only Label treats zero specially.
func (c *Classifier) TierOf(p float64) Tier {
	switch {
	case p >= c.thresholds.High:
		return TierHigh
	case p >= c.thresholds.Mid:
		return TierMid
	case p >= c.thresholds.Low:
		return TierLow
	default:
		return TierMin
	}
}

// Label returns the human label for p. Exactly zero means nobody has recommended
// the medication yet and must stay distinguishable from a small positive share.
func (c *Classifier) Label(p float64) string {
	if p == 0 {
		return LabelNotYet
	}
	switch c.TierOf(p) {
	case TierHigh:
		return LabelHighly
	case TierMid:
		return LabelRecommend
	case TierLow:
		return LabelModerately
	default:
		return LabelMinimally
	}
}

// Band returns the styling for p
func (c *Classifier) Band(p float64) Band {
	return bands[c.TierOf(p)]
}

// ColorClass returns the text color class for p
func (c *Classifier) ColorClass(p float64) string {
	return c.Band(p).ColorClass
}

// BgClass returns the background class for p
func (c *Classifier) BgClass(p float64) string {
	return c.Band(p).BgClass
}

// FormatCount abbreviates large counts: 1500 -> "1.5K", 2500000 -> "2.5M"
func FormatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return strconv.Itoa(n)
}

// ProgressWidth clamps p into [0,100]. NaN is treated as 0.
func ProgressWidth(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Min(100, math.Max(0, p))
}

// ProgressWidthCSS renders ProgressWidth as a CSS percentage
func ProgressWidthCSS(p float64) string {
	return strconv.FormatFloat(ProgressWidth(p), 'f', -1, 64) + "%"
}
