package synth

import (
	"fmt"
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/offerloop/matching-cli/internal/model"
)

// ErrInvalidConfiguration is returned for non-positive entity counts or an
// empty category taxonomy. Fatal to the run; nothing is partially written.
var ErrInvalidConfiguration = eris.New("synth: invalid configuration")

// Config holds the generation constants. The taxonomy and edge fanouts are
// configuration, not randomness: only attribute values and edge endpoints
// flow through the seeded generator.
type Config struct {
	Categories          []string
	SameCategoryPeers   int
	CoViewFanout        int
	ComplementaryFanout int
}

// DefaultConfig returns the recognized generation defaults.
func DefaultConfig() Config {
	return Config{
		Categories:          []string{"electronics", "home", "food", "apparel", "services"},
		SameCategoryPeers:   2,
		CoViewFanout:        2,
		ComplementaryFanout: 1,
	}
}

var riskCycle = []model.RiskLevel{model.RiskLow, model.RiskMedium, model.RiskHigh}

// Generate produces a deterministic synthetic supply catalog, user
// population, and relation-edge set from a seed. Identical inputs yield
// byte-identical output; this is the property that makes offline
// experiments reproducible.
func Generate(cfg Config, seed int64, nSupplies, nUsers int) ([]model.SupplyItem, []model.UserProfile, []model.RelationEdge, error) {
	if nSupplies < 1 || nUsers < 1 {
		return nil, nil, nil, eris.Wrapf(ErrInvalidConfiguration, "synth: n_supplies=%d n_users=%d", nSupplies, nUsers)
	}
	if len(cfg.Categories) == 0 {
		return nil, nil, nil, eris.Wrap(ErrInvalidConfiguration, "synth: empty category taxonomy")
	}

	rng := rand.New(rand.NewSource(seed))

	supplies := make([]model.SupplyItem, 0, nSupplies)
	for i := 0; i < nSupplies; i++ {
		category := cfg.Categories[i%len(cfg.Categories)]
		risk := riskCycle[(i+rng.Intn(6))%len(riskCycle)]
		quality := 0.55 + float64(i%5)*0.08 + rng.Float64()*0.1
		if quality > 0.99 {
			quality = 0.99
		}
		price := 19 + float64(i)*3 + rng.Float64()*40
		supplies = append(supplies, model.SupplyItem{
			ID:       fmt.Sprintf("supply_%03d", i),
			Category: category,
			Attributes: map[string]float64{
				"price":    round2(price),
				"merchant": float64(i % 6),
			},
			QualityScore: round3(quality),
			RiskLevel:    risk,
			CreatedAt:    int64(i),
		})
	}

	users := make([]model.UserProfile, 0, nUsers)
	for i := 0; i < nUsers; i++ {
		primary := cfg.Categories[(i+1)%len(cfg.Categories)]
		secondary := cfg.Categories[(i+2)%len(cfg.Categories)]
		users = append(users, model.UserProfile{
			ID:                  fmt.Sprintf("user_%03d", i),
			PreferredCategories: []string{primary, secondary},
			PriceSensitivity:    round3(0.2 + rng.Float64()*0.6),
			RiskTolerance:       riskCycle[i%len(riskCycle)],
		})
	}

	edges := buildEdges(cfg, rng, supplies)

	zap.L().Debug("synth: generation complete",
		zap.Int64("seed", seed),
		zap.Int("supplies", len(supplies)),
		zap.Int("users", len(users)),
		zap.Int("edges", len(edges)),
	)

	return supplies, users, edges, nil
}

// buildEdges constructs the supply-relation graph. Same-category edges link
// each supply to the next peers in its category (undirected, stored once
// with src < dst). Complementary edges point at the nearest supply of the
// next category in the taxonomy. Co-view edges are seeded-random fanout.
func buildEdges(cfg Config, rng *rand.Rand, supplies []model.SupplyItem) []model.RelationEdge {
	byCategory := make(map[string][]int)
	for i, s := range supplies {
		byCategory[s.Category] = append(byCategory[s.Category], i)
	}

	var edges []model.RelationEdge

	for _, cat := range cfg.Categories {
		members := byCategory[cat]
		for pos, idx := range members {
			for peer := 1; peer <= cfg.SameCategoryPeers && pos+peer < len(members); peer++ {
				edges = append(edges, model.RelationEdge{
					Src:  supplies[idx].ID,
					Dst:  supplies[members[pos+peer]].ID,
					Type: model.RelationSameCategory,
				})
			}
		}
	}

	catIndex := make(map[string]int, len(cfg.Categories))
	for i, cat := range cfg.Categories {
		catIndex[cat] = i
	}
	for i, s := range supplies {
		next := cfg.Categories[(catIndex[s.Category]+1)%len(cfg.Categories)]
		members := byCategory[next]
		for fan := 0; fan < cfg.ComplementaryFanout && fan < len(members); fan++ {
			target := members[(i+fan)%len(members)]
			if supplies[target].ID == s.ID {
				continue
			}
			edges = append(edges, model.RelationEdge{
				Src:  s.ID,
				Dst:  supplies[target].ID,
				Type: model.RelationComplementary,
			})
		}
	}

	if len(supplies) > 1 {
		for _, s := range supplies {
			for fan := 0; fan < cfg.CoViewFanout; fan++ {
				target := supplies[rng.Intn(len(supplies))]
				if target.ID == s.ID {
					continue
				}
				edges = append(edges, model.RelationEdge{
					Src:  s.ID,
					Dst:  target.ID,
					Type: model.RelationCoViewed,
				})
			}
		}
	}

	return edges
}

func round2(v float64) float64 { return float64(int(v*100+0.5)) / 100 }

func round3(v float64) float64 { return float64(int(v*1000+0.5)) / 1000 }
