package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UnitKind separates items counted in whole pieces from items measured by
// mass or volume.
type UnitKind string

const (
	UnitCountable UnitKind = "countable"
	UnitMeasured  UnitKind = "measured"
)

// CanonicalUnit is the normalized representation of a free-text unit token.
// Measured units carry a conversion factor into grams, the single canonical
// mass-or-volume axis. Volumes convert as if milliliters were grams; that
// equivalence is used for matching only, never for display.
type CanonicalUnit struct {
	Kind         UnitKind
	GramsPerUnit decimal.Decimal
}

var (
	gramsPerKilo = decimal.NewFromInt(1000)
	oneGram      = decimal.NewFromInt(1)
)

// massVolumeFactors maps recognized unit tokens (after lowercasing and quote
// stripping) to their gram factor. Covers the Hebrew invoice vocabulary the
// OCR step produces alongside the Latin abbreviations.
var massVolumeFactors = map[string]decimal.Decimal{
	"kg":        gramsPerKilo,
	"kilo":      gramsPerKilo,
	"kilogram":  gramsPerKilo,
	"קילו":      gramsPerKilo,
	"קג":        gramsPerKilo,
	"קילוגרם":   gramsPerKilo,
	"g":         oneGram,
	"gr":        oneGram,
	"gram":      oneGram,
	"grams":     oneGram,
	"גרם":       oneGram,
	"גר":        oneGram,
	"l":         gramsPerKilo,
	"liter":     gramsPerKilo,
	"litre":     gramsPerKilo,
	"ליטר":      gramsPerKilo,
	"ml":        oneGram,
	"מל":        oneGram,
	"מיליליטר":  oneGram,
	"milliliter": oneGram,
}

// countableTokens are explicit piece-count units. Anything unrecognized is
// also treated as countable, so this set only matters for documentation of
// intent and for keeping such tokens out of fuzzy-match token sets.
var countableTokens = map[string]bool{
	"יח":    true,
	"יחידה": true,
	"יחידות": true,
	"unit":  true,
	"units": true,
	"pc":    true,
	"pcs":   true,
}

// stripUnitPunct removes the quote-like marks OCR leaves inside Hebrew
// abbreviations (ק"ג, מ״ל, יח׳) along with surrounding dots and commas.
func stripUnitPunct(tok string) string {
	return strings.Trim(strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '׳', '״':
			return -1
		}
		return r
	}, tok), ".,()")
}

// NormalizeUnit parses a free-text unit token into its canonical form.
// Pure; unrecognized tokens classify as countable with no conversion.
func NormalizeUnit(rawUnit string) CanonicalUnit {
	tok := stripUnitPunct(strings.ToLower(strings.TrimSpace(rawUnit)))
	if tok == "" {
		return CanonicalUnit{Kind: UnitCountable}
	}
	if factor, ok := massVolumeFactors[tok]; ok {
		return CanonicalUnit{Kind: UnitMeasured, GramsPerUnit: factor}
	}
	return CanonicalUnit{Kind: UnitCountable}
}

// Canonical converts a quantity expressed in this unit onto the canonical
// axis: grams for measured units, plain count for countable ones.
func (u CanonicalUnit) Canonical(qty decimal.Decimal) decimal.Decimal {
	if u.Kind == UnitMeasured {
		return qty.Mul(u.GramsPerUnit)
	}
	return qty
}

// Token returns the canonical unit token: "g" for measured, "" for countable.
// NormalizeUnit(u.Token()) round-trips to an equivalent unit, which makes
// normalization idempotent.
func (u CanonicalUnit) Token() string {
	if u.Kind == UnitMeasured {
		return "g"
	}
	return ""
}

// StripWeightHints finds an embedded "number + mass/volume token" hint in an
// invoice line name ("עגבניות 5 קילו", "tuna 500g"), removes it, and returns
// the cleaned name plus the extracted quantity in grams. Returns nil when no
// hint is present. Only the first hint is extracted.
func StripWeightHints(name string) (string, *decimal.Decimal) {
	fields := strings.Fields(name)
	var kept []string
	var grams *decimal.Decimal

	for i := 0; i < len(fields); i++ {
		if grams == nil {
			// "500 גרם" — bare number followed by a unit word.
			if num, ok := parseNumber(fields[i]); ok && i+1 < len(fields) {
				if factor, ok := massVolumeFactors[stripUnitPunct(strings.ToLower(fields[i+1]))]; ok {
					g := num.Mul(factor)
					grams = &g
					i++ // consume the unit word too
					continue
				}
			}
			// "1kg" / "5קילו" — number and unit glued into one field.
			if num, rest, ok := splitNumberPrefix(fields[i]); ok {
				if factor, ok := massVolumeFactors[stripUnitPunct(strings.ToLower(rest))]; ok {
					g := num.Mul(factor)
					grams = &g
					continue
				}
			}
		}
		kept = append(kept, fields[i])
	}
	return strings.Join(kept, " "), grams
}

// parseNumber parses a decimal number, accepting a comma decimal separator.
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.Trim(s, ".,"), ",", ".")
	if s == "" {
		return decimal.Zero, false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, false
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// splitNumberPrefix splits "1.5kg" into (1.5, "kg"). ok is false when the
// field does not start with a digit or has no non-numeric remainder.
func splitNumberPrefix(s string) (decimal.Decimal, string, bool) {
	i := 0
	for i < len(s) && ((s[i] >= '0' && s[i] <= '9') || s[i] == '.' || s[i] == ',') {
		i++
	}
	if i == 0 || i == len(s) {
		return decimal.Zero, "", false
	}
	num, ok := parseNumber(s[:i])
	if !ok {
		return decimal.Zero, "", false
	}
	return num, s[i:], true
}

// QuantizeToStep rounds qty to the nearest multiple of step. A zero or
// negative step leaves qty untouched.
func QuantizeToStep(qty, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() || step.IsNegative() {
		return qty
	}
	return qty.Div(step).Round(0).Mul(step)
}
