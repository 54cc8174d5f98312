// Package match combines recall candidates with feature-store scores and
// risk/policy constraints into ranked, explainable match lists in both
// directions.
package match

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/offerloop/matching-cli/internal/featurestore"
	"github.com/offerloop/matching-cli/internal/model"
	"github.com/offerloop/matching-cli/internal/recall"
)

// ErrUnknownSeedEntity marks a match request for an id outside the
// snapshot's entity universe. Fatal to that single call only: batch
// drivers catch it, record the skip, and keep going.
var ErrUnknownSeedEntity = eris.New("match: unknown seed entity")

// Constraint names, applied in this fixed order.
const (
	ConstraintRisk         = "risk"
	ConstraintPolicy       = "policy"
	ConstraintQualityFloor = "quality_floor"
)

var constraintOrder = []string{ConstraintRisk, ConstraintPolicy, ConstraintQualityFloor}

// Engine ranks recall candidates against one read-only snapshot reference
// per call. The engine itself is stateless across calls and safe for
// concurrent use.
type Engine struct {
	idx *recall.Index
}

// NewEngine creates a matching engine over the recall index.
func NewEngine(idx *recall.Index) *Engine {
	return &Engine{idx: idx}
}

// scored carries a candidate through scoring and constraint pruning.
type scored struct {
	id       string
	score    float64
	affinity float64
	quality  float64
	rate     float64
	weighted model.MatchConfig
}

// Match produces the ranked match list for one seed entity. The candidate
// pool is oversampled relative to k so constraint pruning still leaves a
// full page, cold-start candidates score their missing components as zero,
// and the result records every constraint that pruned at least one
// candidate.
func (e *Engine) Match(seedID string, direction model.Direction, snap *model.Snapshot, cfg model.MatchConfig, k int) (*model.MatchResult, error) {
	if !direction.Valid() {
		return nil, eris.Errorf("match: invalid direction %q", direction)
	}
	if k < 1 {
		return nil, eris.Errorf("match: k must be positive (got %d)", k)
	}
	if snap == nil {
		return nil, eris.New("match: nil snapshot")
	}

	seedKey := model.EntityKey{Type: direction.SeedType(), ID: seedID}
	if !snap.Contains(seedKey) {
		return nil, eris.Wrapf(ErrUnknownSeedEntity, "match: %s in snapshot %d", seedKey, snap.SnapshotID)
	}

	oversample := cfg.OversampleFactor
	if oversample < 1 {
		oversample = 3
	}
	candidateIDs := e.idx.Recall(seedID, direction, k*oversample)

	seedVec, _ := snap.Vector(seedKey)
	candidates := make([]scored, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		candidates = append(candidates, e.score(id, direction, seedID, seedVec, snap, cfg))
	}

	survivors, fired := e.applyConstraints(candidates, seedID, direction, cfg)

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		return survivors[i].id < survivors[j].id
	})
	if len(survivors) > k {
		survivors = survivors[:k]
	}

	ranked := make([]model.RankedCandidate, 0, len(survivors))
	for _, c := range survivors {
		ranked = append(ranked, model.RankedCandidate{
			CandidateID: c.id,
			Score:       c.score,
			Explanation: explain(c),
		})
	}

	zap.L().Debug("match: ranked candidates",
		zap.String("seed", seedID),
		zap.String("direction", string(direction)),
		zap.Int("recalled", len(candidateIDs)),
		zap.Int("returned", len(ranked)),
		zap.Strings("constraints_fired", fired),
	)

	return &model.MatchResult{
		SeedID:             seedID,
		Direction:          direction,
		RankedCandidates:   ranked,
		SnapshotIDUsed:     snap.SnapshotID,
		ConstraintsApplied: fired,
	}, nil
}

// score computes w1*affinity + w2*quality + w3*rate for one candidate.
// Affinity is cosine similarity between seed and candidate category-affinity
// vectors. The rate term is direction-appropriate: click-through rate when
// ranking supplies for a user, conversion rate when ranking users for a
// supply. In the supply_to_user direction the quality term comes from the
// seed supply, since users carry no quality score of their own.
func (e *Engine) score(candidateID string, direction model.Direction, seedID string, seedVec model.FeatureVector, snap *model.Snapshot, cfg model.MatchConfig) scored {
	c := scored{id: candidateID, weighted: cfg}

	candVec, err := featurestore.Get(snap, direction.CandidateType(), candidateID)
	if err == nil {
		c.affinity = model.CosineAffinity(seedVec.CategoryAffinity, candVec.CategoryAffinity)
		if direction == model.UserToSupply {
			c.rate = candVec.CTR
		} else {
			c.rate = candVec.CVR
		}
	}
	// A missing vector leaves affinity and rate at the cold-start default 0.

	switch direction {
	case model.UserToSupply:
		if item, ok := e.idx.Supply(candidateID); ok {
			c.quality = item.QualityScore
		}
	case model.SupplyToUser:
		if item, ok := e.idx.Supply(seedID); ok {
			c.quality = item.QualityScore
		}
	}

	c.score = cfg.AffinityWeight*c.affinity + cfg.QualityWeight*c.quality + cfg.RateWeight*c.rate
	return c
}

// applyConstraints prunes candidates in the fixed order risk, policy,
// quality floor, returning survivors plus the names of constraints that
// actually removed someone.
func (e *Engine) applyConstraints(candidates []scored, seedID string, direction model.Direction, cfg model.MatchConfig) ([]scored, []string) {
	firedSet := make(map[string]bool)

	keep := func(c scored) bool {
		switch direction {
		case model.UserToSupply:
			supply, okS := e.idx.Supply(c.id)
			user, okU := e.idx.User(seedID)
			if okS && okU && supply.RiskLevel.Exceeds(user.RiskTolerance) {
				firedSet[ConstraintRisk] = true
				return false
			}
			if okS && cfg.CategoryDenied(supply.Category) {
				firedSet[ConstraintPolicy] = true
				return false
			}
			if okS && supply.QualityScore < cfg.QualityFloor {
				firedSet[ConstraintQualityFloor] = true
				return false
			}
		case model.SupplyToUser:
			supply, okS := e.idx.Supply(seedID)
			user, okU := e.idx.User(c.id)
			if okS && okU && supply.RiskLevel.Exceeds(user.RiskTolerance) {
				firedSet[ConstraintRisk] = true
				return false
			}
			if okS && cfg.CategoryDenied(supply.Category) {
				firedSet[ConstraintPolicy] = true
				return false
			}
			if okS && supply.QualityScore < cfg.QualityFloor {
				firedSet[ConstraintQualityFloor] = true
				return false
			}
		}
		return true
	}

	survivors := candidates[:0:0]
	for _, c := range candidates {
		if keep(c) {
			survivors = append(survivors, c)
		}
	}

	var fired []string
	for _, name := range constraintOrder {
		if firedSet[name] {
			fired = append(fired, name)
		}
	}
	return survivors, fired
}

// explain names the dominant scoring term and lists the constraints that
// were evaluated, so each ranked row is auditable on its own.
func explain(c scored) string {
	terms := []struct {
		name  string
		value float64
	}{
		{"affinity_match", c.weighted.AffinityWeight * c.affinity},
		{"quality_score", c.weighted.QualityWeight * c.quality},
		{"feature_rate", c.weighted.RateWeight * c.rate},
	}
	dominant := terms[0]
	for _, t := range terms[1:] {
		if t.value > dominant.value {
			dominant = t
		}
	}
	return fmt.Sprintf("dominant term %s=%.4f (affinity=%.4f quality=%.4f rate=%.4f); constraints evaluated: risk, policy, quality_floor",
		dominant.name, dominant.value, c.affinity, c.quality, c.rate)
}
