// Package experiment replays held-out events against matching
// configurations and compares them with standard ranking metrics plus a
// deterministic per-weight attribution step.
package experiment

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/offerloop/matching-cli/internal/match"
	"github.com/offerloop/matching-cli/internal/model"
)

// AttributionNote documents the method next to its numbers in every report.
const AttributionNote = "leave-one-weight-out heuristic: config A re-run with a single weight " +
	"replaced by config B's value; additive, order-independent approximation, not a causal estimate"

// Config holds the runner parameters.
type Config struct {
	// TopK is the K of Recall@K / NDCG@K and the match page size.
	TopK int
	// Concurrency bounds the per-seed fan-out. Seeds share nothing but a
	// read-only snapshot reference, so workers need no locking.
	Concurrency int
	// Universe is the candidate universe size for coverage (the supply
	// catalog size in the user_to_supply direction).
	Universe int
}

// Runner evaluates matching configurations offline.
type Runner struct {
	engine *match.Engine
	cfg    Config
}

// NewRunner creates a Runner over the shared matching engine.
func NewRunner(engine *match.Engine, cfg Config) *Runner {
	if cfg.TopK < 1 {
		cfg.TopK = 5
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &Runner{engine: engine, cfg: cfg}
}

// seedTruth is the held-out ground truth for one seed user.
type seedTruth struct {
	seedID    string
	positives map[string]struct{} // supplies the seed converted with
	converts  map[string]struct{}
	relevance map[string]float64 // convert=1, click=0.5, max per supply
}

// buildTruth extracts per-seed ground truth from the held-out log. Seeds
// are returned in id order so every later aggregation is deterministic.
func buildTruth(heldOut []model.InteractionEvent) []seedTruth {
	byUser := make(map[string]*seedTruth)
	for _, e := range heldOut {
		st := byUser[e.UserID]
		if st == nil {
			st = &seedTruth{
				seedID:    e.UserID,
				positives: make(map[string]struct{}),
				converts:  make(map[string]struct{}),
				relevance: make(map[string]float64),
			}
			byUser[e.UserID] = st
		}
		switch e.Type {
		case model.EventConvert:
			st.positives[e.SupplyID] = struct{}{}
			st.converts[e.SupplyID] = struct{}{}
			st.relevance[e.SupplyID] = 1
		case model.EventClick:
			if st.relevance[e.SupplyID] < 0.5 {
				st.relevance[e.SupplyID] = 0.5
			}
		}
	}

	truths := make([]seedTruth, 0, len(byUser))
	for _, st := range byUser {
		truths = append(truths, *st)
	}
	sort.Slice(truths, func(i, j int) bool { return truths[i].seedID < truths[j].seedID })
	return truths
}

// seedOutcome is one seed's evaluation under one config.
type seedOutcome struct {
	ok      bool
	failure model.SeedFailure
	recall  float64
	ndcg    float64
	conv    float64
	topIDs  []string
}

// evaluate runs one configuration over every seed, fanning seeds out across
// workers. Per-seed failures are isolated and enumerated, never fatal to
// the batch.
func (r *Runner) evaluate(ctx context.Context, cfg model.MatchConfig, snap *model.Snapshot, truths []seedTruth) (model.MetricSet, []model.SeedFailure) {
	outcomes := make([]seedOutcome, len(truths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, st := range truths {
		g.Go(func() error {
			// Best-effort early termination between seed iterations.
			if gCtx.Err() != nil {
				return nil
			}
			outcomes[i] = r.evaluateSeed(cfg, snap, st)
			return nil
		})
	}
	_ = g.Wait()

	var metrics model.MetricSet
	var failures []model.SeedFailure
	recommended := make(map[string]struct{})
	evaluated := 0

	for _, out := range outcomes {
		if !out.ok {
			failures = append(failures, out.failure)
			continue
		}
		evaluated++
		metrics.RecallAtK += out.recall
		metrics.NDCGAtK += out.ndcg
		metrics.ConversionProxy += out.conv
		for _, id := range out.topIDs {
			recommended[id] = struct{}{}
		}
	}
	if evaluated > 0 {
		metrics.RecallAtK /= float64(evaluated)
		metrics.NDCGAtK /= float64(evaluated)
		metrics.ConversionProxy /= float64(evaluated)
	}
	metrics.Coverage = Coverage(recommended, r.cfg.Universe)
	return metrics, failures
}

func (r *Runner) evaluateSeed(cfg model.MatchConfig, snap *model.Snapshot, st seedTruth) seedOutcome {
	result, err := r.engine.Match(st.seedID, model.UserToSupply, snap, cfg, r.cfg.TopK)
	if err != nil {
		return seedOutcome{failure: model.SeedFailure{
			SeedID:    st.seedID,
			Direction: model.UserToSupply,
			Reason:    err.Error(),
		}}
	}

	ids := make([]string, 0, len(result.RankedCandidates))
	for _, c := range result.RankedCandidates {
		ids = append(ids, c.CandidateID)
	}

	return seedOutcome{
		ok:     true,
		recall: RecallAtK(ids, st.positives, r.cfg.TopK),
		ndcg:   NDCGAtK(ids, st.relevance, r.cfg.TopK),
		conv:   ConversionProxy(ids, st.converts, r.cfg.TopK),
		topIDs: ids,
	}
}

// RunAB compares two configurations over the same snapshot and held-out
// log, then attributes the primary-metric (NDCG@K) delta across the three
// scoring weights by replacing them in config A one at a time.
func (r *Runner) RunAB(ctx context.Context, configA, configB model.MatchConfig, snap *model.Snapshot, heldOut []model.InteractionEvent) (*model.ExperimentReport, error) {
	if snap == nil {
		return nil, eris.New("experiment: nil snapshot")
	}
	truths := buildTruth(heldOut)
	if len(truths) == 0 {
		return nil, eris.New("experiment: no seed entities in held-out events")
	}

	log := zap.L().With(zap.String("config_a", configA.Name), zap.String("config_b", configB.Name))
	log.Info("experiment: starting offline A/B",
		zap.Int("seeds", len(truths)),
		zap.Int("top_k", r.cfg.TopK),
		zap.Int64("snapshot_id", snap.SnapshotID),
	)

	metricsA, failuresA := r.evaluate(ctx, configA, snap, truths)
	metricsB, failuresB := r.evaluate(ctx, configB, snap, truths)

	report := &model.ExperimentReport{
		ConfigA:         configA,
		ConfigB:         configB,
		MetricsA:        metricsA,
		MetricsB:        metricsB,
		Deltas:          metricsB.Sub(metricsA),
		Attribution:     r.attribute(ctx, configA, configB, snap, truths, metricsA.NDCGAtK),
		AttributionNote: AttributionNote,
		TopK:            r.cfg.TopK,
		SnapshotIDUsed:  snap.SnapshotID,
		SeedCount:       len(truths),
		Skipped:         mergeFailures(failuresA, failuresB),
	}

	log.Info("experiment: offline A/B complete",
		zap.Float64("ndcg_a", metricsA.NDCGAtK),
		zap.Float64("ndcg_b", metricsB.NDCGAtK),
		zap.Float64("ndcg_delta", report.Deltas.NDCGAtK),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// attribute re-runs config A three times, each with exactly one weight
// taken from config B and the others held fixed. The credited contribution
// is the variant's NDCG@K minus the config A baseline.
func (r *Runner) attribute(ctx context.Context, configA, configB model.MatchConfig, snap *model.Snapshot, truths []seedTruth, baselineNDCG float64) map[string]float64 {
	variants := map[string]model.MatchConfig{
		"affinity_weight": withAffinity(configA, configB.AffinityWeight),
		"quality_weight":  withQuality(configA, configB.QualityWeight),
		"rate_weight":     withRate(configA, configB.RateWeight),
	}

	attribution := make(map[string]float64, len(variants))
	for name, variant := range variants {
		metrics, _ := r.evaluate(ctx, variant, snap, truths)
		attribution[name] = metrics.NDCGAtK - baselineNDCG
	}
	return attribution
}

func withAffinity(cfg model.MatchConfig, w float64) model.MatchConfig {
	cfg.AffinityWeight = w
	return cfg
}

func withQuality(cfg model.MatchConfig, w float64) model.MatchConfig {
	cfg.QualityWeight = w
	return cfg
}

func withRate(cfg model.MatchConfig, w float64) model.MatchConfig {
	cfg.RateWeight = w
	return cfg
}

func mergeFailures(a, b []model.SeedFailure) []model.SeedFailure {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []model.SeedFailure
	for _, f := range append(append([]model.SeedFailure{}, a...), b...) {
		key := f.SeedID + "|" + string(f.Direction)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
