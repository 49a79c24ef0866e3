// Package traits folds keyword scores into Big Five trait vectors.
package traits

import (
	"sort"

	"github.com/spigell/hh-traits/internal/scoring"
)

// Vectors maps an advertisement ID to its per-trait totals, index-aligned
// with the trait order used to build it.
type Vectors map[string][]float64

// Aggregate sums the keyword scores of every advertisement per trait.
// Keywords are visited in ascending order so the float sums do not depend on
// map iteration. A keyword without a known trait contributes nothing.
func Aggregate(scores scoring.ScoreMap, keywordToTrait map[string]string, traitOrder []string) Vectors {
	position := make(map[string]int, len(traitOrder))
	for i, trait := range traitOrder {
		if _, ok := position[trait]; !ok {
			position[trait] = i
		}
	}

	vectors := make(Vectors, len(scores))
	for adID, keywordScores := range scores {
		vector := make([]float64, len(traitOrder))

		keywords := make([]string, 0, len(keywordScores))
		for kw := range keywordScores {
			keywords = append(keywords, kw)
		}
		sort.Strings(keywords)

		for _, kw := range keywords {
			trait, ok := keywordToTrait[kw]
			if !ok {
				continue
			}
			idx, ok := position[trait]
			if !ok {
				continue
			}
			vector[idx] += keywordScores[kw]
		}

		vectors[adID] = vector
	}

	return vectors
}

// UnmappedKeywords lists keywords that cannot contribute to any trait,
// sorted.
func UnmappedKeywords(keywords []string, keywordToTrait map[string]string, traitOrder []string) []string {
	known := make(map[string]struct{}, len(traitOrder))
	for _, trait := range traitOrder {
		known[trait] = struct{}{}
	}

	var out []string
	for _, kw := range keywords {
		trait, ok := keywordToTrait[kw]
		if ok {
			if _, ok = known[trait]; ok {
				continue
			}
		}
		out = append(out, kw)
	}
	sort.Strings(out)

	return out
}
