// Package dupe scores a proposed financial entry against a user's recent
// entries to catch duplicates before they are written.
package dupe

import (
	"math"
	"strings"
	"unicode"

	"github.com/centavobot/centavo/internal/model"
)

// Thresholds driving duplicate handling.
const (
	// AutoBlockThreshold rejects the entry outright.
	AutoBlockThreshold = 0.95
	// WarnThreshold asks the user to confirm before writing.
	WarnThreshold = 0.70
)

// Factor weights; they sum to 1.0.
const (
	amountWeight      = 0.4
	descriptionWeight = 0.3
	categoryWeight    = 0.2
	paymentWeight     = 0.1
)

// amountTolerance is the band, as a fraction of the larger amount, inside
// which two amounts still count as a near match.
const amountTolerance = 0.05

// Match is the best-scoring prior entry for a candidate.
type Match struct {
	Existing   model.Entry
	Confidence float64
	AutoBlock  bool
}

// Score computes the similarity confidence between a candidate entry and
// one existing entry. Entries with different directions never match.
func Score(candidate, existing model.Entry) float64 {
	if candidate.Direction != existing.Direction {
		return 0
	}

	score := amountWeight * amountFactor(candidate.Amount, existing.Amount)
	score += descriptionWeight * descriptionFactor(candidate.Description, existing.Description)
	score += categoryWeight * exactFactor(candidate.Category, existing.Category)
	score += paymentWeight * exactFactor(candidate.PaymentMethod, existing.PaymentMethod)
	return score
}

// FindBestMatch evaluates recent entries in recency order (callers pass
// newest first) and returns the first auto-block hit, or otherwise the
// highest-scoring entry at or above the warn floor.
func FindBestMatch(candidate model.Entry, recent []model.Entry) (Match, bool) {
	best := Match{Confidence: -1}

	for _, existing := range recent {
		confidence := Score(candidate, existing)
		if confidence >= AutoBlockThreshold {
			return Match{Existing: existing, Confidence: confidence, AutoBlock: true}, true
		}
		if confidence > best.Confidence {
			best = Match{Existing: existing, Confidence: confidence}
		}
	}

	if best.Confidence >= WarnThreshold {
		return best, true
	}
	return Match{}, false
}

// amountFactor is 1.0 on exact equality, scales linearly down to 0.8 at
// the tolerance boundary, and is 0 beyond it.
func amountFactor(a, b float64) float64 {
	if a == b {
		return 1.0
	}

	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return 0
	}

	tolerance := larger * amountTolerance
	delta := math.Abs(a - b)
	if delta > tolerance {
		return 0
	}
	return 1.0 - (delta/tolerance)*0.2
}

// descriptionFactor is the token-overlap ratio of the two descriptions
// after normalization: |common| / |union|.
func descriptionFactor(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	common := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			common++
		}
	}
	union := len(tokensA) + len(tokensB) - common
	return float64(common) / float64(union)
}

func exactFactor(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1.0
	}
	return 0
}

// Tokenize lowercases s, strips punctuation and splits on whitespace.
// Shared with the semantic cache so both use one notion of similarity.
func Tokenize(s string) []string {
	normalized := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, s)

	return strings.Fields(normalized)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range Tokenize(s) {
		set[token] = struct{}{}
	}
	return set
}
