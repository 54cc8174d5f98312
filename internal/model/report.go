package model

// MetricSet holds the per-config offline ranking metrics, each averaged
// across seeds and bounded to [0,1].
type MetricSet struct {
	RecallAtK       float64 `json:"recall_at_k"`
	NDCGAtK         float64 `json:"ndcg_at_k"`
	Coverage        float64 `json:"coverage"`
	ConversionProxy float64 `json:"conversion_proxy"`
}

// Sub returns m - other, component-wise.
func (m MetricSet) Sub(other MetricSet) MetricSet {
	return MetricSet{
		RecallAtK:       m.RecallAtK - other.RecallAtK,
		NDCGAtK:         m.NDCGAtK - other.NDCGAtK,
		Coverage:        m.Coverage - other.Coverage,
		ConversionProxy: m.ConversionProxy - other.ConversionProxy,
	}
}

// SeedFailure records one seed entity skipped during an experiment. Skips
// are enumerated in the report, never silently omitted.
type SeedFailure struct {
	SeedID    string    `json:"seed_id"`
	Direction Direction `json:"direction"`
	Reason    string    `json:"reason"`
}

// ExperimentReport is the output of one offline A/B comparison.
type ExperimentReport struct {
	ConfigA  MatchConfig `json:"config_a"`
	ConfigB  MatchConfig `json:"config_b"`
	MetricsA MetricSet   `json:"metrics_a"`
	MetricsB MetricSet   `json:"metrics_b"`

	// Deltas is MetricsB - MetricsA.
	Deltas MetricSet `json:"deltas"`

	// Attribution maps scoring-weight names to their estimated contribution
	// to the primary metric (NDCG@K) delta, computed by replacing one weight
	// at a time in config A with config B's value.
	Attribution     map[string]float64 `json:"attribution"`
	AttributionNote string             `json:"attribution_note"`

	TopK           int           `json:"top_k"`
	SnapshotIDUsed int64         `json:"snapshot_id_used"`
	SeedCount      int           `json:"seed_count"`
	Skipped        []SeedFailure `json:"skipped,omitempty"`
}

// Winner returns the config whose primary metric (NDCG@K) won, preferring
// config B on ties so a no-worse treatment is adopted.
func (r ExperimentReport) Winner() MatchConfig {
	if r.MetricsA.NDCGAtK > r.MetricsB.NDCGAtK {
		return r.ConfigA
	}
	return r.ConfigB
}
