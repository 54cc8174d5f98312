package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offerloop/matching-cli/internal/artifact"
	"github.com/offerloop/matching-cli/internal/experiment"
	"github.com/offerloop/matching-cli/internal/feedback"
	"github.com/offerloop/matching-cli/internal/featurestore"
	"github.com/offerloop/matching-cli/internal/model"
	"github.com/offerloop/matching-cli/internal/store"
	"github.com/offerloop/matching-cli/internal/synth"
)

var abCmd = &cobra.Command{
	Use:   "run-offline-ab",
	Short: "Run an offline A/B experiment and fold the feedback",
	Long: `Replay the held-out event segment against two matching configurations
(baseline A from config and policy, treatment B from the experiment
treatment weights), score both with Recall@K, NDCG@K, coverage, and a
conversion proxy, attribute deltas per weight, then fold the winner's
covered held-out interactions back into a new feature snapshot and a
quality-revised supply catalog.

Examples:
  matching-cli run-offline-ab
  matching-cli run-offline-ab --report-name weekly_ab.json`,
	RunE: runOfflineAB,
}

func init() {
	abCmd.Flags().String("report-name", artifact.DefaultReportFile, "report file name inside the artifact dir")

	rootCmd.AddCommand(abCmd)
}

func runOfflineAB(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := zap.L().With(zap.String("command", "run-offline-ab"))

	reportName, _ := cmd.Flags().GetString("report-name")
	if reportName == "" {
		return eris.New("ab: --report-name must not be empty")
	}

	arts, err := loadDemoArtifacts()
	if err != nil {
		return eris.Wrap(err, "ab: load artifacts")
	}
	_, heldOut := synth.SplitHoldout(arts.Events, cfg.Synth.HoldoutFraction)
	if len(heldOut) == 0 {
		return eris.New("ab: empty held-out segment, regenerate with more events")
	}
	engine := buildEngine(arts)

	configA, err := baselineConfig()
	if err != nil {
		return eris.Wrap(err, "ab: build baseline config")
	}
	configB := treatmentConfig(configA)

	runner := experiment.NewRunner(engine, experiment.Config{
		TopK:        cfg.Experiment.TopK,
		Concurrency: cfg.Experiment.Concurrency,
		Universe:    len(arts.Supplies),
	})
	report, err := runner.RunAB(ctx, configA, configB, arts.Snapshot, heldOut)
	if err != nil {
		return eris.Wrap(err, "ab: run experiment")
	}

	log.Info("experiment evaluated",
		zap.String("winner", report.Winner().Name),
		zap.Float64("ndcg_a", report.MetricsA.NDCGAtK),
		zap.Float64("ndcg_b", report.MetricsB.NDCGAtK),
		zap.Int("seeds", report.SeedCount),
		zap.Int("skipped", len(report.Skipped)),
	)

	fs := featurestore.New(featurestore.Config{DecayLambda: cfg.Features.DecayLambda})
	if err := fs.Adopt(arts.Snapshot); err != nil {
		return eris.Wrap(err, "ab: adopt snapshot")
	}
	agg := feedback.NewAggregator(fs, engine, feedback.Config{
		TopK:           cfg.Experiment.TopK,
		QualityBoost:   cfg.Feedback.QualityBoost,
		QualityPenalty: cfg.Feedback.QualityPenalty,
	})
	newSnap, revised, err := agg.Apply(report, arts.Snapshot, heldOut, arts.Supplies)
	if err != nil {
		return eris.Wrap(err, "ab: fold feedback")
	}

	reportPath := artifactPath(reportName)
	if err := artifact.WriteJSON(reportPath, report); err != nil {
		return eris.Wrap(err, "ab: write report")
	}
	if err := artifact.WriteJSON(artifactPath(artifact.PostFeedbackFile), newSnap); err != nil {
		return eris.Wrap(err, "ab: write post-feedback snapshot")
	}
	// The revised catalog replaces the generated one so the next matching
	// run sees the feedback-adjusted quality scores.
	if err := artifact.WriteJSON(artifactPath(artifact.SuppliesFile), revised); err != nil {
		return eris.Wrap(err, "ab: write revised supplies")
	}

	log.Info("feedback folded",
		zap.Int64("snapshot_id", newSnap.SnapshotID),
		zap.Int64p("created_from", newSnap.CreatedFrom),
		zap.String("report", reportPath),
	)

	params := map[string]any{
		"report_name": reportName,
		"top_k":       cfg.Experiment.TopK,
		"config_a":    configA.Name,
		"config_b":    configB.Name,
	}
	summary := map[string]any{
		"winner":       report.Winner().Name,
		"ndcg_delta":   report.Deltas.NDCGAtK,
		"recall_delta": report.Deltas.RecallAtK,
		"seeds":        report.SeedCount,
		"skipped":      len(report.Skipped),
		"new_snapshot": newSnap.SnapshotID,
	}
	recordRun(ctx, store.RunAB, params, summary)

	fmt.Printf("Winner: %s (NDCG@%d %.4f vs %.4f), snapshot %d -> %d, report %s\n",
		report.Winner().Name, report.TopK,
		report.MetricsA.NDCGAtK, report.MetricsB.NDCGAtK,
		arts.Snapshot.SnapshotID, newSnap.SnapshotID, reportPath)
	return nil
}

// treatmentConfig builds config B by rebalancing the baseline's weights with
// the configured treatment split. Policy constraints carry over unchanged so
// the comparison isolates the scoring weights.
func treatmentConfig(base model.MatchConfig) model.MatchConfig {
	b := base
	b.Name = "treatment"
	b.AffinityWeight = cfg.Experiment.TreatmentAffinityWeight
	b.QualityWeight = cfg.Experiment.TreatmentQualityWeight
	b.RateWeight = cfg.Experiment.TreatmentRateWeight
	return b.Normalize()
}
