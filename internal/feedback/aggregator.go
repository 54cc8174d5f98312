// Package feedback closes the loop: experiment outcomes become synthetic
// interaction events folded back into the feature store, and supplies that
// converted under the winning configuration get a bounded quality revision.
package feedback

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/offerloop/matching-cli/internal/featurestore"
	"github.com/offerloop/matching-cli/internal/match"
	"github.com/offerloop/matching-cli/internal/model"
)

// Config bounds the feedback fold.
type Config struct {
	// TopK is the match page size replayed with the winning config.
	TopK int
	// QualityBoost is added to a supply's quality score per synthetic
	// convert; QualityPenalty subtracted per held-out reject of a winning
	// candidate. Both are clamped so quality stays in [0,1].
	QualityBoost   float64
	QualityPenalty float64
}

// DefaultConfig returns the recognized feedback defaults.
func DefaultConfig() Config {
	return Config{TopK: 5, QualityBoost: 0.02, QualityPenalty: 0.01}
}

// Aggregator folds experiment outcomes back into the feature store.
type Aggregator struct {
	store  *featurestore.Store
	engine *match.Engine
	cfg    Config
}

// NewAggregator creates an Aggregator over the store and matching engine.
func NewAggregator(store *featurestore.Store, engine *match.Engine, cfg Config) *Aggregator {
	if cfg.TopK < 1 {
		cfg.TopK = DefaultConfig().TopK
	}
	return &Aggregator{store: store, engine: engine, cfg: cfg}
}

// Apply converts held-out clicks and converts covered by the winning
// configuration's top-K candidate sets into synthetic events, applies them
// through the feature store, and returns the new snapshot together with the
// quality-revised supply catalog. The parent snapshot and input catalog are
// never mutated.
func (a *Aggregator) Apply(report *model.ExperimentReport, snap *model.Snapshot, heldOut []model.InteractionEvent, supplies []model.SupplyItem) (*model.Snapshot, []model.SupplyItem, error) {
	if report == nil {
		return nil, nil, eris.New("feedback: nil report")
	}
	if snap == nil {
		return nil, nil, eris.New("feedback: nil snapshot")
	}

	winner := report.Winner()
	log := zap.L().With(zap.String("winner", winner.Name), zap.Int64("snapshot_id", snap.SnapshotID))

	byUser := make(map[string][]model.InteractionEvent)
	var maxTick int64
	for _, e := range heldOut {
		if e.Type == model.EventClick || e.Type == model.EventConvert || e.Type == model.EventReject {
			byUser[e.UserID] = append(byUser[e.UserID], e)
		}
		if e.Timestamp > maxTick {
			maxTick = e.Timestamp
		}
	}

	seeds := make([]string, 0, len(byUser))
	for uid := range byUser {
		seeds = append(seeds, uid)
	}
	sort.Strings(seeds)

	var synthetic []model.InteractionEvent
	rejectsBySupply := make(map[string]int)
	convertsBySupply := make(map[string]int)

	for _, seedID := range seeds {
		result, err := a.engine.Match(seedID, model.UserToSupply, snap, winner, a.cfg.TopK)
		if err != nil {
			// One bad seed must not abort the fold.
			log.Warn("feedback: match failed, skipping seed",
				zap.String("seed", seedID),
				zap.Error(err),
			)
			continue
		}
		topK := make(map[string]struct{}, len(result.RankedCandidates))
		for _, c := range result.RankedCandidates {
			topK[c.CandidateID] = struct{}{}
		}

		for _, e := range byUser[seedID] {
			if _, ok := topK[e.SupplyID]; !ok {
				continue
			}
			if e.Type == model.EventReject {
				rejectsBySupply[e.SupplyID]++
				continue
			}
			maxTick++
			synthetic = append(synthetic, model.InteractionEvent{
				ID:        fmt.Sprintf("fb_%06d", len(synthetic)),
				UserID:    e.UserID,
				SupplyID:  e.SupplyID,
				Type:      e.Type,
				Timestamp: maxTick,
			})
			if e.Type == model.EventConvert {
				convertsBySupply[e.SupplyID]++
			}
		}
	}

	categories := make(map[string]string, len(supplies))
	for _, s := range supplies {
		categories[s.ID] = s.Category
	}

	newSnap, err := a.store.ApplyFeedback(snap, categories, synthetic)
	if err != nil {
		return nil, nil, eris.Wrap(err, "feedback: apply")
	}

	revised := reviseQuality(supplies, convertsBySupply, rejectsBySupply, a.cfg)

	log.Info("feedback: loop closed",
		zap.Int64("new_snapshot_id", newSnap.SnapshotID),
		zap.Int("synthetic_events", len(synthetic)),
		zap.Int("supplies_boosted", len(convertsBySupply)),
		zap.Int("supplies_penalized", len(rejectsBySupply)),
	)
	return newSnap, revised, nil
}

// reviseQuality returns a copy of the catalog with per-supply quality
// adjusted by converts and rejects observed under the winning config,
// clamped to [0,1].
func reviseQuality(supplies []model.SupplyItem, converts, rejects map[string]int, cfg Config) []model.SupplyItem {
	out := make([]model.SupplyItem, len(supplies))
	for i, s := range supplies {
		out[i] = s
		delta := float64(converts[s.ID])*cfg.QualityBoost - float64(rejects[s.ID])*cfg.QualityPenalty
		if delta == 0 {
			continue
		}
		q := s.QualityScore + delta
		if q > 1 {
			q = 1
		}
		if q < 0 {
			q = 0
		}
		out[i].QualityScore = q
	}
	return out
}
