package model

// Direction selects which side of the marketplace a match runs from.
type Direction string

const (
	UserToSupply Direction = "user_to_supply"
	SupplyToUser Direction = "supply_to_user"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == UserToSupply || d == SupplyToUser
}

// SeedType returns the entity type a seed id of this direction refers to.
func (d Direction) SeedType() EntityType {
	if d == SupplyToUser {
		return EntitySupply
	}
	return EntityUser
}

// CandidateType returns the entity type of the candidates this direction
// produces.
func (d Direction) CandidateType() EntityType {
	if d == SupplyToUser {
		return EntityUser
	}
	return EntitySupply
}

// MatchConfig is one matching configuration: scoring weights plus constraint
// parameters. Weights are expected to sum to 1; Normalize enforces it.
type MatchConfig struct {
	Name string `json:"name"`

	// Scoring weights for affinity match, quality score, and the
	// direction-appropriate feature rate.
	AffinityWeight float64 `json:"affinity_weight"`
	QualityWeight  float64 `json:"quality_weight"`
	RateWeight     float64 `json:"rate_weight"`

	// Constraint parameters.
	QualityFloor     float64  `json:"quality_floor"`
	DeniedCategories []string `json:"denied_categories,omitempty"`
	OversampleFactor int      `json:"oversample_factor"`
}

// Normalize returns a copy with weights scaled to sum to 1 and a sane
// oversample factor. Zero-weight configs fall back to equal thirds.
func (c MatchConfig) Normalize() MatchConfig {
	out := c
	total := c.AffinityWeight + c.QualityWeight + c.RateWeight
	if total <= 0 {
		out.AffinityWeight, out.QualityWeight, out.RateWeight = 1.0/3, 1.0/3, 1.0/3
	} else {
		out.AffinityWeight = c.AffinityWeight / total
		out.QualityWeight = c.QualityWeight / total
		out.RateWeight = c.RateWeight / total
	}
	if out.OversampleFactor < 1 {
		out.OversampleFactor = 3
	}
	return out
}

// CategoryDenied reports whether the category is on the config's denylist.
func (c MatchConfig) CategoryDenied(category string) bool {
	for _, denied := range c.DeniedCategories {
		if denied == category {
			return true
		}
	}
	return false
}

// RankedCandidate is one scored, explained entry in a match result.
type RankedCandidate struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// MatchResult is the ranked, audited output of one match call.
type MatchResult struct {
	SeedID             string            `json:"seed_id"`
	Direction          Direction         `json:"direction"`
	RankedCandidates   []RankedCandidate `json:"ranked_candidates"`
	SnapshotIDUsed     int64             `json:"snapshot_id_used"`
	ConstraintsApplied []string          `json:"constraints_applied"`
}
