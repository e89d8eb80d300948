package core

import (
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MatchStrategy tags how a candidate was matched, from strongest to weakest.
type MatchStrategy string

const (
	StrategyAlias       MatchStrategy = "alias"
	StrategyExact       MatchStrategy = "exact"
	StrategyWeightFuzzy MatchStrategy = "weight-boosted-fuzzy"
	StrategyTokenFuzzy  MatchStrategy = "token-fuzzy"
	StrategyNone        MatchStrategy = "none"
	// StrategyManual marks an operator remap rather than a matcher result.
	StrategyManual MatchStrategy = "manual"
)

const (
	// scoreAlias is above anything the additive scoring can reach
	// (exact 100 + weight bonus 30), so a learned alias always wins.
	scoreAlias = 200.0

	scoreExact       = 100.0
	weightBonus      = 30.0
	maxTokenScore    = 70.0
	containBase      = 60.0
	containSpan      = 40.0
	// weightToleranceGrams is the slack when comparing an extracted
	// mass/volume against a candidate's count step.
	weightToleranceGrams = 1.0

	// MinScoreAuto is the cutoff for unattended auto-suggestion. Operator
	// free-text searches use MinScoreSearch so weak candidates still show.
	MinScoreAuto   = 40.0
	MinScoreSearch = 0.0

	// DefaultTopN bounds the ranked list surfaced for manual disambiguation.
	DefaultTopN = 20
)

// CatalogCandidate is one potential match target: a master-catalog item,
// possibly already present in the business's own inventory.
type CatalogCandidate struct {
	CatalogItemID   int
	InventoryItemID *int
	Name            string
	Unit            string
	CountStep       decimal.Decimal
	CostPerUnit     decimal.Decimal
	InInventory     bool
}

// MatchCandidate is a scored, strategy-tagged candidate.
type MatchCandidate struct {
	Candidate CatalogCandidate
	Score     float64
	Strategy  MatchStrategy
}

// MatchOptions tunes a single MatchCatalog call.
type MatchOptions struct {
	MinScore float64
	TopN     int
}

// tokenStopwords are unit words and size descriptors that say nothing about
// which product a line refers to.
var tokenStopwords = map[string]bool{
	"קילו": true, "קג": true, "גרם": true, "גר": true,
	"ליטר": true, "מל": true, "יח": true, "יחידה": true, "יחידות": true,
	"גדול": true, "קטן": true, "בינוני": true, "ענק": true,
	"kg": true, "gr": true, "gram": true, "liter": true, "ml": true,
	"unit": true, "units": true, "pcs": true,
	"small": true, "large": true, "medium": true,
}

// MatchCatalog scores and ranks catalog candidates for one invoice line.
// Pure and read-only: candidates and aliases are supplied by the caller, so
// per-line calls are freely parallelizable.
//
// A learned alias short-circuits everything. Otherwise scores combine
// additively: exact name equality 100, full containment 60-100 scaled by
// length overlap, token overlap up to 70, plus a +30 bonus when a mass or
// volume extracted from the line text equals the candidate's count step.
// No single signal is reliable against noisy OCR text; the weight bonus is
// the high-confidence tiebreaker between same-named items in different pack
// sizes.
func MatchCatalog(lineText string, candidates []CatalogCandidate, aliases []SupplierAlias, opts MatchOptions) []MatchCandidate {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	if aliasID, ok := LookupAlias(lineText, aliases); ok {
		for _, c := range candidates {
			if c.CatalogItemID == aliasID {
				return []MatchCandidate{{Candidate: c, Score: scoreAlias, Strategy: StrategyAlias}}
			}
		}
		// Alias points at an item outside the candidate set; fall through to
		// fuzzy scoring rather than returning nothing.
	}

	cleanText, grams := StripWeightHints(lineText)
	lineNorm := strings.ToLower(strings.TrimSpace(cleanText))
	lineTokens := tokenize(cleanText)

	var ranked []MatchCandidate
	for _, c := range candidates {
		score, strategy := scoreCandidate(lineNorm, lineTokens, grams, c)
		if strategy == StrategyNone || score < opts.MinScore {
			continue
		}
		ranked = append(ranked, MatchCandidate{Candidate: c, Score: score, Strategy: strategy})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		// Deterministic tie-break: items the business already stocks first,
		// then lowest catalog id.
		if ranked[i].Candidate.InInventory != ranked[j].Candidate.InInventory {
			return ranked[i].Candidate.InInventory
		}
		return ranked[i].Candidate.CatalogItemID < ranked[j].Candidate.CatalogItemID
	})

	if len(ranked) > opts.TopN {
		ranked = ranked[:opts.TopN]
	}
	return ranked
}

func scoreCandidate(lineNorm string, lineTokens []string, grams *decimal.Decimal, c CatalogCandidate) (float64, MatchStrategy) {
	candNorm := strings.ToLower(strings.TrimSpace(c.Name))
	if lineNorm == "" || candNorm == "" {
		return 0, StrategyNone
	}

	var score float64
	strategy := StrategyNone

	switch {
	case lineNorm == candNorm:
		score = scoreExact
		strategy = StrategyExact
	case strings.Contains(lineNorm, candNorm) || strings.Contains(candNorm, lineNorm):
		shorter, longer := len([]rune(lineNorm)), len([]rune(candNorm))
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		score = containBase + containSpan*float64(shorter)/float64(longer)
		strategy = StrategyTokenFuzzy
	default:
		candTokens := tokenize(c.Name)
		if len(candTokens) == 0 {
			return 0, StrategyNone
		}
		matched := 0
		for _, ct := range candTokens {
			for _, lt := range lineTokens {
				if strings.Contains(lt, ct) || strings.Contains(ct, lt) {
					matched++
					break
				}
			}
		}
		if matched == 0 {
			return 0, StrategyNone
		}
		score = maxTokenScore * float64(matched) / float64(len(candTokens))
		strategy = StrategyTokenFuzzy
	}

	if grams != nil && stepMatchesGrams(c.CountStep, *grams) {
		score += weightBonus
		if strategy != StrategyExact {
			strategy = StrategyWeightFuzzy
		}
	}

	return score, strategy
}

// stepMatchesGrams reports whether an extracted mass/volume equals a
// candidate's count step within a one-gram tolerance.
func stepMatchesGrams(step decimal.Decimal, grams decimal.Decimal) bool {
	if step.IsZero() {
		return false
	}
	tol := decimal.NewFromFloat(weightToleranceGrams)
	return step.Sub(grams).Abs().LessThanOrEqual(tol)
}

// LookupAlias finds the catalog item a line text is a learned alias for.
// Matching is case-insensitive bidirectional containment; ties break to the
// highest occurrence count, then lowest catalog id.
func LookupAlias(lineText string, aliases []SupplierAlias) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(lineText))
	if needle == "" {
		return 0, false
	}

	best := -1
	for i, a := range aliases {
		known := strings.ToLower(strings.TrimSpace(a.LineText))
		if known == "" {
			continue
		}
		if !strings.Contains(needle, known) && !strings.Contains(known, needle) {
			continue
		}
		if best < 0 ||
			a.OccurrenceCount > aliases[best].OccurrenceCount ||
			(a.OccurrenceCount == aliases[best].OccurrenceCount && a.CatalogItemID < aliases[best].CatalogItemID) {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return aliases[best].CatalogItemID, true
}

// tokenize splits a name on whitespace and punctuation, lowercases, and
// drops single-rune tokens and unit/size stopwords.
func tokenize(s string) []string {
	raw := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, t := range raw {
		if len([]rune(t)) <= 1 || tokenStopwords[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}
