package patternstore

import (
	"context"
	"sort"
	"strings"

	"github.com/jscraik/cortexdx/internal/anonymize"
)

// DefaultSimilarityThreshold is the minimum Jaccard score used when the
// caller does not supply one.
const DefaultSimilarityThreshold = 0.6

// FindSimilar returns stored patterns whose anonymized signature has a
// Jaccard token-set similarity at or above the threshold against the query
// signature, sorted by similarity descending.
//
// This is a full scan, O(n) in corpus size. Callers needing low latency at
// scale should pre-filter by problem type before matching.
func (s *Store) FindSimilar(ctx context.Context, signature string, threshold float64) ([]ScoredPattern, error) {
	if signature == "" {
		return nil, ErrEmptySignature
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	query := tokenSet(anonymize.Text(signature))

	patterns, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]ScoredPattern, 0)
	for _, p := range patterns {
		score := jaccard(query, tokenSet(p.ProblemSignature))
		if score >= threshold {
			matches = append(matches, ScoredPattern{ResolutionPattern: p, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// tokenSet lowercases and splits a signature on whitespace.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard is intersection over union of two token sets. Two empty sets
// score zero.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
