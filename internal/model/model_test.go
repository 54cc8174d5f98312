package model

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskLevel_Ordering(t *testing.T) {
	assert.True(t, RiskHigh.Exceeds(RiskMedium))
	assert.True(t, RiskHigh.Exceeds(RiskLow))
	assert.True(t, RiskMedium.Exceeds(RiskLow))

	assert.False(t, RiskLow.Exceeds(RiskLow))
	assert.False(t, RiskLow.Exceeds(RiskHigh))
	assert.False(t, RiskMedium.Exceeds(RiskMedium))
}

func TestRiskLevel_UnknownRanksAsMedium(t *testing.T) {
	unknown := RiskLevel("weird")
	assert.Equal(t, RiskMedium.Rank(), unknown.Rank())
	assert.True(t, RiskHigh.Exceeds(unknown))
	assert.False(t, unknown.Exceeds(RiskMedium))
}

func TestEventType_Weights(t *testing.T) {
	assert.Equal(t, 0.1, EventImpression.Weight())
	assert.Equal(t, 1.0, EventClick.Weight())
	assert.Equal(t, 3.0, EventConvert.Weight())
	assert.Equal(t, -1.0, EventReject.Weight())

	assert.Equal(t, 0.0, EventType("purchase").Weight(), "unknown types weigh zero")
	assert.False(t, EventType("purchase").Valid())
	assert.True(t, EventConvert.Valid())
}

func TestUserProfile_Prefers(t *testing.T) {
	u := UserProfile{PreferredCategories: []string{"home", "food"}}
	assert.True(t, u.Prefers("food"))
	assert.False(t, u.Prefers("electronics"))
	assert.False(t, UserProfile{}.Prefers("home"))
}

func TestEntityKey_TextRoundtrip(t *testing.T) {
	key := SupplyKey("supply_007")
	text, err := key.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "supply:supply_007", string(text))

	var parsed EntityKey
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, key, parsed)

	var bad EntityKey
	assert.Error(t, bad.UnmarshalText([]byte("no-separator")))
}

func TestSnapshot_JSONMapKeys(t *testing.T) {
	snap := Snapshot{
		SnapshotID:       1,
		GenerationReason: ReasonInitial,
		Vectors: map[EntityKey]FeatureVector{
			UserKey("user_001"): {EntityType: EntityUser, EntityID: "user_001", Clicks: 2},
		},
	}

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"user:user_001"`)

	var back Snapshot
	require.NoError(t, json.Unmarshal(raw, &back))
	vec, ok := back.Vector(UserKey("user_001"))
	require.True(t, ok)
	assert.Equal(t, 2, vec.Clicks)
}

func TestFeatureVector_CloneIsDeep(t *testing.T) {
	orig := FeatureVector{
		EntityType:       EntitySupply,
		EntityID:         "supply_001",
		SeenUsers:        map[string]bool{"user_001": true},
		CategoryCounts:   map[string]int{"home": 3},
		CategoryAffinity: map[string]float64{"home": 1},
	}

	clone := orig.Clone()
	clone.SeenUsers["user_002"] = true
	clone.CategoryCounts["home"] = 99
	clone.CategoryAffinity["home"] = 0.5

	assert.False(t, orig.SeenUsers["user_002"], "clone must not alias the seen-user set")
	assert.Equal(t, 3, orig.CategoryCounts["home"], "clone must not alias the histogram")
	assert.Equal(t, 1.0, orig.CategoryAffinity["home"])
}

func TestCosineAffinity(t *testing.T) {
	a := map[string]float64{"home": 0.5, "food": 0.5}

	assert.InDelta(t, 1.0, CosineAffinity(a, a), 1e-9, "identical histograms are fully aligned")
	assert.Equal(t, 0.0, CosineAffinity(a, map[string]float64{"services": 1}), "disjoint histograms score zero")
	assert.Equal(t, 0.0, CosineAffinity(nil, a), "empty side is cold start, not an error")
	assert.Equal(t, 0.0, CosineAffinity(a, nil))

	partial := CosineAffinity(a, map[string]float64{"home": 1})
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestDirection_Types(t *testing.T) {
	assert.True(t, UserToSupply.Valid())
	assert.True(t, SupplyToUser.Valid())
	assert.False(t, Direction("sideways").Valid())

	assert.Equal(t, EntityUser, UserToSupply.SeedType())
	assert.Equal(t, EntitySupply, UserToSupply.CandidateType())
	assert.Equal(t, EntitySupply, SupplyToUser.SeedType())
	assert.Equal(t, EntityUser, SupplyToUser.CandidateType())
}

func TestMatchConfig_Normalize(t *testing.T) {
	cfg := MatchConfig{AffinityWeight: 2, QualityWeight: 1, RateWeight: 1}.Normalize()
	assert.InDelta(t, 0.5, cfg.AffinityWeight, 1e-9)
	assert.InDelta(t, 0.25, cfg.QualityWeight, 1e-9)
	assert.InDelta(t, 0.25, cfg.RateWeight, 1e-9)
	assert.Equal(t, 3, cfg.OversampleFactor, "missing oversample falls back to default")

	zero := MatchConfig{}.Normalize()
	assert.InDelta(t, 1.0/3, zero.AffinityWeight, 1e-9, "zero weights fall back to equal thirds")
	assert.InDelta(t, 1.0/3, zero.QualityWeight, 1e-9)
	assert.InDelta(t, 1.0/3, zero.RateWeight, 1e-9)
}

func TestMatchConfig_CategoryDenied(t *testing.T) {
	cfg := MatchConfig{DeniedCategories: []string{"services"}}
	assert.True(t, cfg.CategoryDenied("services"))
	assert.False(t, cfg.CategoryDenied("home"))
}

func TestExperimentReport_Winner(t *testing.T) {
	report := ExperimentReport{
		ConfigA:  MatchConfig{Name: "baseline"},
		ConfigB:  MatchConfig{Name: "treatment"},
		MetricsA: MetricSet{NDCGAtK: 0.4},
		MetricsB: MetricSet{NDCGAtK: 0.3},
	}
	assert.Equal(t, "baseline", report.Winner().Name)

	report.MetricsB.NDCGAtK = 0.4
	assert.Equal(t, "treatment", report.Winner().Name, "ties prefer the treatment")

	report.MetricsB.NDCGAtK = 0.5
	assert.Equal(t, "treatment", report.Winner().Name)
}

func TestMetricSet_Sub(t *testing.T) {
	a := MetricSet{RecallAtK: 0.5, NDCGAtK: 0.4, Coverage: 0.9, ConversionProxy: 0.1}
	b := MetricSet{RecallAtK: 0.7, NDCGAtK: 0.6, Coverage: 0.8, ConversionProxy: 0.3}
	d := b.Sub(a)
	assert.InDelta(t, 0.2, d.RecallAtK, 1e-9)
	assert.InDelta(t, 0.2, d.NDCGAtK, 1e-9)
	assert.InDelta(t, -0.1, d.Coverage, 1e-9)
	assert.InDelta(t, 0.2, d.ConversionProxy, 1e-9)
}
