package core

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	// supplierAcceptScore is the minimum score at which an OCR'd supplier
	// name is considered resolved. Below it the session stays unlinked.
	supplierAcceptScore = 40.0

	// supplierEditDistance is the per-token Levenshtein tolerance for OCR
	// noise, and softPrefixLen the shared-prefix length that also counts as
	// a token match.
	supplierEditDistance = 2
	softPrefixLen        = 3
)

// ResolveSupplier fuzzy-matches an OCR-extracted supplier name against the
// business's known suppliers. Returns nil when nothing scores high enough;
// an unresolved supplier is not an error, the session simply stays unlinked.
//
// Callers skip this entirely when the supplier is already known from a
// linked purchase order or an explicit operator selection.
func ResolveSupplier(ocrName string, known []Supplier) *Supplier {
	ocrNorm := strings.ToLower(strings.TrimSpace(ocrName))
	if ocrNorm == "" || len(known) == 0 {
		return nil
	}
	ocrTokens := strings.Fields(ocrNorm)

	var best *Supplier
	bestScore := 0.0
	for i := range known {
		score := supplierScore(ocrNorm, ocrTokens, known[i].Name)
		if score <= 0 {
			continue
		}
		if best == nil || score > bestScore || (score == bestScore && known[i].ID < best.ID) {
			best = &known[i]
			bestScore = score
		}
	}
	if bestScore < supplierAcceptScore {
		return nil
	}
	return best
}

func supplierScore(ocrNorm string, ocrTokens []string, supplierName string) float64 {
	supNorm := strings.ToLower(strings.TrimSpace(supplierName))
	if supNorm == "" {
		return 0
	}

	// Direct containment either way is a confident hit.
	if strings.Contains(ocrNorm, supNorm) || strings.Contains(supNorm, ocrNorm) {
		return 100
	}

	supTokens := strings.Fields(supNorm)
	if len(supTokens) == 0 {
		return 0
	}

	matched := 0
	for _, st := range supTokens {
		for _, ot := range ocrTokens {
			if tokensClose(st, ot) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(supTokens)) * 100
}

// tokensClose reports a soft token match: Levenshtein distance within the
// OCR-noise tolerance, or a shared 3-character prefix. The standard DP edit
// distance is fine here; supplier tokens are short.
func tokensClose(a, b string) bool {
	if a == b {
		return true
	}
	if levenshtein.ComputeDistance(a, b) <= supplierEditDistance {
		return true
	}
	ar, br := []rune(a), []rune(b)
	if len(ar) >= softPrefixLen && len(br) >= softPrefixLen {
		return string(ar[:softPrefixLen]) == string(br[:softPrefixLen])
	}
	return false
}
