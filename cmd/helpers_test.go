package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerloop/matching-cli/internal/artifact"
	"github.com/offerloop/matching-cli/internal/config"
	"github.com/offerloop/matching-cli/internal/experiment"
	"github.com/offerloop/matching-cli/internal/featurestore"
	"github.com/offerloop/matching-cli/internal/model"
	"github.com/offerloop/matching-cli/internal/store"
	"github.com/offerloop/matching-cli/internal/synth"
)

// testConfig wires the global config at defaults with artifacts and the
// ledger redirected into a temp dir.
func testConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MATCHING_ARTIFACTS_DIR", dir)
	t.Setenv("MATCHING_LEDGER_PATH", filepath.Join(dir, "runs.db"))

	c, err := config.Load()
	require.NoError(t, err)
	cfg = c
}

// writeDemoArtifacts produces the generation artifacts the way the demo
// command does, without going through cobra.
func writeDemoArtifacts(t *testing.T, seed int64, nSupplies, nUsers, nEvents int) {
	t.Helper()

	supplies, users, edges, err := synth.Generate(synthConfig(), seed, nSupplies, nUsers)
	require.NoError(t, err)
	events, err := synth.Simulate(supplies, users, seed, nEvents)
	require.NoError(t, err)
	users = synth.AttachHistory(users, events)

	train, _ := synth.SplitHoldout(events, cfg.Synth.HoldoutFraction)
	fs := featurestore.New(featurestore.Config{DecayLambda: cfg.Features.DecayLambda})
	snap, err := fs.BuildInitial(supplies, users, train)
	require.NoError(t, err)

	require.NoError(t, artifact.WriteJSON(artifactPath(artifact.SuppliesFile), supplies))
	require.NoError(t, artifact.WriteJSON(artifactPath(artifact.UsersFile), users))
	require.NoError(t, artifact.WriteJSON(artifactPath(artifact.EventsFile), events))
	require.NoError(t, artifact.WriteJSON(artifactPath(artifact.EdgesFile), edges))
	require.NoError(t, artifact.WriteJSON(artifactPath(artifact.SnapshotFile), snap))
}

func TestLoadDemoArtifacts_Roundtrip(t *testing.T) {
	testConfig(t)
	writeDemoArtifacts(t, 42, 16, 10, 200)

	a, err := loadDemoArtifacts()
	require.NoError(t, err)
	assert.Len(t, a.Supplies, 16)
	assert.Len(t, a.Users, 10)
	assert.Len(t, a.Events, 200)
	assert.NotEmpty(t, a.Edges)
	require.NotNil(t, a.Snapshot)
	assert.Equal(t, int64(1), a.Snapshot.SnapshotID)
	assert.Len(t, a.Snapshot.Vectors, 26, "snapshot universe covers every entity")
}

func TestLoadDemoArtifacts_MissingFiles(t *testing.T) {
	testConfig(t)
	_, err := loadDemoArtifacts()
	assert.Error(t, err)
}

func TestBuildEngine_MatchesBothDirections(t *testing.T) {
	testConfig(t)
	writeDemoArtifacts(t, 42, 16, 10, 300)

	a, err := loadDemoArtifacts()
	require.NoError(t, err)
	engine := buildEngine(a)

	matchCfg, err := baselineConfig()
	require.NoError(t, err)

	// Users cycle through risk tolerances; the third tolerates anything, so
	// nothing it recalls can be risk-pruned.
	result, err := engine.Match(a.Users[2].ID, model.UserToSupply, a.Snapshot, matchCfg, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.RankedCandidates), 5)
	assert.NotEmpty(t, result.RankedCandidates)

	result, err = engine.Match(a.Supplies[0].ID, model.SupplyToUser, a.Snapshot, matchCfg, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.RankedCandidates), 5)
}

func TestOfflineABThroughHelpers(t *testing.T) {
	testConfig(t)
	writeDemoArtifacts(t, 42, 16, 10, 400)

	a, err := loadDemoArtifacts()
	require.NoError(t, err)
	engine := buildEngine(a)
	_, heldOut := synth.SplitHoldout(a.Events, cfg.Synth.HoldoutFraction)
	require.NotEmpty(t, heldOut)

	configA, err := baselineConfig()
	require.NoError(t, err)
	configB := treatmentConfig(configA)
	assert.Equal(t, "treatment", configB.Name)
	assert.InDelta(t, 1.0, configB.AffinityWeight+configB.QualityWeight+configB.RateWeight, 1e-9)
	assert.Equal(t, configA.QualityFloor, configB.QualityFloor, "policy constraints carry over to the treatment")

	runner := experiment.NewRunner(engine, experiment.Config{
		TopK:        cfg.Experiment.TopK,
		Concurrency: cfg.Experiment.Concurrency,
		Universe:    len(a.Supplies),
	})
	report, err := runner.RunAB(context.Background(), configA, configB, a.Snapshot, heldOut)
	require.NoError(t, err)

	assert.Equal(t, a.Snapshot.SnapshotID, report.SnapshotIDUsed)
	assert.Positive(t, report.SeedCount)
	assert.Len(t, report.Attribution, 3)
}

func TestBaselineConfig_DefaultPolicy(t *testing.T) {
	testConfig(t)

	matchCfg, err := baselineConfig()
	require.NoError(t, err)
	assert.Equal(t, "baseline", matchCfg.Name)
	assert.InDelta(t, 1.0, matchCfg.AffinityWeight+matchCfg.QualityWeight+matchCfg.RateWeight, 1e-9)
	assert.Equal(t, 0.2, matchCfg.QualityFloor, "default policy floor applies when no file is configured")
	assert.Empty(t, matchCfg.DeniedCategories)
	assert.Equal(t, 3, matchCfg.OversampleFactor)
}

func TestRecordRun_BestEffort(t *testing.T) {
	testConfig(t)
	ctx := context.Background()

	recordRun(ctx, store.RunDemo, map[string]any{"seed": 42}, map[string]any{"events": 10})

	ledger, err := store.NewSQLite(cfg.Ledger.Path)
	require.NoError(t, err)
	defer ledger.Close()
	require.NoError(t, ledger.Migrate(ctx))

	rows, err := ledger.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, store.RunDemo, rows[0].Kind)
}
