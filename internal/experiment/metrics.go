package experiment

import (
	"math"
	"sort"
)

// RecallAtK measures what fraction of the ground-truth positives appear in
// the top k of the ranked list. No positives means 0, not an error.
func RecallAtK(ranked []string, positives map[string]struct{}, k int) float64 {
	if len(positives) == 0 {
		return 0
	}
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	hits := 0
	for _, id := range ranked {
		if _, ok := positives[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(positives))
}

// NDCGAtK computes normalized discounted cumulative gain with log2
// discounting and gain 2^rel - 1. IDCG comes from the ideal ordering of
// the same relevance multiset; an empty or all-zero relevance map yields 0.
func NDCGAtK(ranked []string, relevance map[string]float64, k int) float64 {
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	var dcg float64
	for i, id := range ranked {
		dcg += gain(relevance[id]) / math.Log2(float64(i)+2)
	}

	ideal := make([]float64, 0, len(relevance))
	for _, rel := range relevance {
		ideal = append(ideal, rel)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))
	if len(ideal) > k {
		ideal = ideal[:k]
	}
	var idcg float64
	for i, rel := range ideal {
		idcg += gain(rel) / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// ConversionProxy measures what fraction of the returned candidates match a
// held-out convert for the seed. An empty result yields 0.
func ConversionProxy(ranked []string, converts map[string]struct{}, k int) float64 {
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	if len(ranked) == 0 {
		return 0
	}
	hits := 0
	for _, id := range ranked {
		if _, ok := converts[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(ranked))
}

// Coverage measures what fraction of the candidate universe appeared at
// least once across all seeds' top-K results.
func Coverage(recommended map[string]struct{}, universe int) float64 {
	if universe <= 0 {
		return 0
	}
	return float64(len(recommended)) / float64(universe)
}

func gain(rel float64) float64 {
	return math.Pow(2, rel) - 1
}
