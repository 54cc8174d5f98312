package experiment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func set(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestRecallAtK(t *testing.T) {
	positives := set("a", "b", "c")

	assert.InDelta(t, 2.0/3, RecallAtK([]string{"a", "x", "b"}, positives, 3), 1e-9)
	assert.InDelta(t, 1.0, RecallAtK([]string{"a", "b", "c"}, positives, 3), 1e-9)
	assert.InDelta(t, 1.0/3, RecallAtK([]string{"a", "x", "b"}, positives, 2), 1e-9, "only the top k counts")
	assert.Equal(t, 0.0, RecallAtK([]string{"x", "y"}, positives, 2))
	assert.Equal(t, 0.0, RecallAtK([]string{"a"}, nil, 2), "no positives yields 0, not NaN")
}

func TestNDCGAtK_IdealRankingIsOne(t *testing.T) {
	relevance := map[string]float64{"a": 1, "b": 0.5}

	assert.InDelta(t, 1.0, NDCGAtK([]string{"a", "b", "c"}, relevance, 3), 1e-9,
		"ideal ordering normalizes to exactly 1")
}

func TestNDCGAtK_HandComputed(t *testing.T) {
	relevance := map[string]float64{"a": 1, "b": 0.5}

	// Ranked [b, a]: DCG = g(0.5)/log2(2) + g(1)/log2(3), with g(r) = 2^r - 1.
	gB := math.Pow(2, 0.5) - 1
	dcg := gB + 1.0/math.Log2(3)
	idcg := 1.0 + gB/math.Log2(3)

	assert.InDelta(t, dcg/idcg, NDCGAtK([]string{"b", "a"}, relevance, 2), 1e-9)
}

func TestNDCGAtK_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, NDCGAtK([]string{"a"}, nil, 3))
	assert.Equal(t, 0.0, NDCGAtK([]string{"a"}, map[string]float64{"b": 0}, 3), "all-zero relevance yields 0")
	assert.Equal(t, 0.0, NDCGAtK(nil, map[string]float64{"a": 1}, 3))
}

func TestConversionProxy(t *testing.T) {
	converts := set("a")

	assert.InDelta(t, 0.5, ConversionProxy([]string{"a", "x"}, converts, 2), 1e-9)
	assert.Equal(t, 0.0, ConversionProxy(nil, converts, 2), "empty result yields 0")
	assert.InDelta(t, 1.0/3, ConversionProxy([]string{"a", "x", "y", "z"}, converts, 3), 1e-9)
}

func TestCoverage(t *testing.T) {
	assert.InDelta(t, 0.5, Coverage(set("a", "b"), 4), 1e-9)
	assert.Equal(t, 0.0, Coverage(set("a"), 0))
	assert.Equal(t, 0.0, Coverage(nil, 10))
}
