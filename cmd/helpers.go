package main

import (
	"context"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/offerloop/matching-cli/internal/artifact"
	"github.com/offerloop/matching-cli/internal/match"
	"github.com/offerloop/matching-cli/internal/model"
	"github.com/offerloop/matching-cli/internal/policy"
	"github.com/offerloop/matching-cli/internal/recall"
	"github.com/offerloop/matching-cli/internal/store"
	"github.com/offerloop/matching-cli/internal/synth"
)

// artifactPath resolves an artifact file name against the configured dir.
func artifactPath(name string) string {
	return filepath.Join(cfg.Artifacts.Dir, name)
}

// demoArtifacts bundles everything the matching and experiment stages read
// back from a previous build-closed-loop-demo run.
type demoArtifacts struct {
	Supplies []model.SupplyItem
	Users    []model.UserProfile
	Events   []model.InteractionEvent
	Edges    []model.RelationEdge
	Snapshot *model.Snapshot
}

// loadDemoArtifacts reads the generation artifacts from the artifact dir.
func loadDemoArtifacts() (*demoArtifacts, error) {
	var a demoArtifacts
	if err := artifact.ReadJSON(artifactPath(artifact.SuppliesFile), &a.Supplies); err != nil {
		return nil, err
	}
	if err := artifact.ReadJSON(artifactPath(artifact.UsersFile), &a.Users); err != nil {
		return nil, err
	}
	if err := artifact.ReadJSON(artifactPath(artifact.EventsFile), &a.Events); err != nil {
		return nil, err
	}
	if err := artifact.ReadJSON(artifactPath(artifact.EdgesFile), &a.Edges); err != nil {
		return nil, err
	}
	a.Snapshot = &model.Snapshot{}
	if err := artifact.ReadJSON(artifactPath(artifact.SnapshotFile), a.Snapshot); err != nil {
		return nil, err
	}
	return &a, nil
}

// buildEngine constructs the recall index and matching engine over loaded
// artifacts. The recall index only sees the training segment of the log so
// held-out events never leak into candidate generation.
func buildEngine(a *demoArtifacts) *match.Engine {
	train, _ := synth.SplitHoldout(a.Events, cfg.Synth.HoldoutFraction)
	idx := recall.NewIndex(recall.Config{
		HopLimit:        cfg.Recall.HopLimit,
		MaxNeighborhood: cfg.Recall.MaxNeighborhood,
	}, a.Supplies, a.Users, a.Edges, train)
	return match.NewEngine(idx)
}

// synthConfig maps the app config onto the generator constants.
func synthConfig() synth.Config {
	return synth.Config{
		Categories:          cfg.Synth.Categories,
		SameCategoryPeers:   cfg.Synth.SameCategoryPeers,
		CoViewFanout:        cfg.Synth.CoViewFanout,
		ComplementaryFanout: cfg.Synth.ComplementaryFanout,
	}
}

// baselineConfig assembles config A from app config plus the policy file.
func baselineConfig() (model.MatchConfig, error) {
	pol, err := policy.Load(cfg.Policy.File)
	if err != nil {
		return model.MatchConfig{}, err
	}
	return model.MatchConfig{
		Name:             "baseline",
		AffinityWeight:   cfg.Match.AffinityWeight,
		QualityWeight:    cfg.Match.QualityWeight,
		RateWeight:       cfg.Match.RateWeight,
		QualityFloor:     pol.QualityFloor,
		DeniedCategories: pol.DeniedCategories,
		OversampleFactor: cfg.Match.OversampleFactor,
	}.Normalize(), nil
}

// writeJSONStdout pretty-prints a value to stdout.
func writeJSONStdout(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "cmd: encode output")
	}
	return nil
}

// recordRun appends a best-effort row to the run ledger. Ledger failures
// are logged, never fatal: history is an audit aid, not a dependency.
func recordRun(ctx context.Context, kind store.RunKind, params, summary any) {
	ledger, err := store.NewSQLite(cfg.Ledger.Path)
	if err != nil {
		zap.L().Warn("run ledger unavailable", zap.Error(err))
		return
	}
	defer ledger.Close()

	if err := ledger.Migrate(ctx); err != nil {
		zap.L().Warn("run ledger migrate failed", zap.Error(err))
		return
	}
	if _, err := ledger.RecordRun(ctx, kind, params, summary); err != nil {
		zap.L().Warn("run ledger insert failed", zap.Error(err))
	}
}
