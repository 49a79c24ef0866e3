package output

import (
	"os"
	"sort"
	"strconv"
)

const reportTopN = 5

// ReportByTrait lists, for every trait, the advertisements scoring highest
// on it. Ties are broken by advertisement ID.
func (r Result) ReportByTrait() map[string][]map[string]string {
	report := make(map[string][]map[string]string, len(r.Traits))
	ids := r.AdIDs()

	for i, trait := range r.Traits {
		ranked := make([]string, len(ids))
		copy(ranked, ids)
		sort.SliceStable(ranked, func(a, b int) bool {
			return r.traitScore(ranked[a], i) > r.traitScore(ranked[b], i)
		})

		if len(ranked) > reportTopN {
			ranked = ranked[:reportTopN]
		}

		entries := make([]map[string]string, 0, len(ranked))
		for _, id := range ranked {
			entries = append(entries, map[string]string{
				"advertisement": id,
				"score":         strconv.FormatFloat(r.traitScore(id, i), 'f', 3, 64),
			})
		}
		report[trait] = entries
	}

	return report
}

// DumpToTmpFile writes the ARFF rendering into a temporary file and returns
// its path.
func (r Result) DumpToTmpFile(relation string) (string, error) {
	file, err := os.CreateTemp("", "hh-traits_*.arff")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := WriteARFF(file, relation, r); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (r Result) traitScore(id string, idx int) float64 {
	vector := r.Vectors[id]
	if idx >= len(vector) {
		return 0
	}
	return vector[idx]
}
