package curation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/giygas/medcompare-api/entities"
)

// CurrencySymbol is prefixed to bare prices
const CurrencySymbol = "₹"

// Delta compares an alternative's price with the original's
type Delta struct {
	Percentage      int     `json:"percentage"`
	IsMoreExpensive bool    `json:"is_more_expensive"`
	Difference      float64 `json:"difference"`
	Verb            string  `json:"verb"`
}

var currencyWords = []string{"inr", "rs.", "rs"}

// plainAmount keeps ParseFloat away from signs, exponents and hex floats
var plainAmount = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParsePrice strips currency symbols, currency words, spaces and thousands
// separators and parses the remaining amount, which must be plain digits with an
// optional decimal part. Signs, exponents and hex notation are rejected.
func ParsePrice(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) || r == ',' {
			return -1
		}
		return r
	}, s)

	lower := strings.ToLower(cleaned)
	for _, w := range currencyWords {
		if strings.HasPrefix(lower, w) {
			cleaned = cleaned[len(w):]
			break
		}
	}

	if cleaned == "" {
		return 0, entities.NewError(entities.KindArithmetic, "parse price", "empty price %q", s)
	}

	if !plainAmount.MatchString(cleaned) {
		return 0, entities.NewError(entities.KindArithmetic, "parse price", "not a plain amount %q", s)
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, &entities.EngineError{Kind: entities.KindArithmetic, Op: "parse price", Detail: strconv.Quote(s), Err: err}
	}
	if math.IsInf(v, 0) {
		return 0, entities.NewError(entities.KindArithmetic, "parse price", "unusable amount %q", s)
	}
	return v, nil
}

// PriceDelta computes round(|alt-orig|/orig*100) and whether the alternative costs more.
// A zero original price is an arithmetic error rather than an infinite percentage.
func PriceDelta(original, alternative string) (Delta, error) {
	orig, err := ParsePrice(original)
	if err != nil {
		return Delta{}, err
	}
	alt, err := ParsePrice(alternative)
	if err != nil {
		return Delta{}, err
	}
	if orig == 0 {
		return Delta{}, entities.NewError(entities.KindArithmetic, "price delta", "original price %q is zero", original)
	}

	diff := math.Abs(alt - orig)
	d := Delta{
		Percentage:      int(math.Round(diff / orig * 100)),
		IsMoreExpensive: alt > orig,
		Difference:      math.Round(diff*100) / 100,
		Verb:            "Save",
	}
	if d.IsMoreExpensive {
		d.Verb = "Pay"
	}
	return d, nil
}

// FormatPrice prefixes bare amounts with the currency symbol and leaves
// already-formatted prices alone
func FormatPrice(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, CurrencySymbol) {
		return s
	}
	return CurrencySymbol + s
}

// FormatAmount renders a numeric amount with two decimals and the currency symbol
func FormatAmount(v float64) string {
	return CurrencySymbol + strconv.FormatFloat(v, 'f', 2, 64)
}
