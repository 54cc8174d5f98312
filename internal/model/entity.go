package model

// RiskLevel classifies a supply item's risk, mirrored by a user's tolerance.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskRank orders risk levels for tolerance comparisons. Unknown levels
// rank as medium.
var riskRank = map[RiskLevel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// Rank returns the ordering position of the risk level (low < medium < high).
func (r RiskLevel) Rank() int {
	if rank, ok := riskRank[r]; ok {
		return rank
	}
	return riskRank[RiskMedium]
}

// Exceeds reports whether the level is strictly riskier than the tolerance.
func (r RiskLevel) Exceeds(tolerance RiskLevel) bool {
	return r.Rank() > tolerance.Rank()
}

// SupplyItem is one entry in the supply catalog. Immutable after generation
// except QualityScore, which feedback aggregation may revise.
type SupplyItem struct {
	ID           string             `json:"id"`
	Category     string             `json:"category"`
	Attributes   map[string]float64 `json:"attributes"`
	QualityScore float64            `json:"quality_score"`
	RiskLevel    RiskLevel          `json:"risk_level"`
	CreatedAt    int64              `json:"created_at"`
}

// UserProfile is one entry in the user population. History is append-only
// and records event ids in emission order.
type UserProfile struct {
	ID                  string    `json:"id"`
	PreferredCategories []string  `json:"preferred_categories"`
	PriceSensitivity    float64   `json:"price_sensitivity"`
	RiskTolerance       RiskLevel `json:"risk_tolerance"`
	History             []string  `json:"history"`
}

// Prefers reports whether the category is among the user's preferences.
func (u UserProfile) Prefers(category string) bool {
	for _, c := range u.PreferredCategories {
		if c == category {
			return true
		}
	}
	return false
}
