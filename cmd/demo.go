package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offerloop/matching-cli/internal/artifact"
	"github.com/offerloop/matching-cli/internal/featurestore"
	"github.com/offerloop/matching-cli/internal/store"
	"github.com/offerloop/matching-cli/internal/synth"
)

var demoCmd = &cobra.Command{
	Use:   "build-closed-loop-demo",
	Short: "Generate the synthetic catalog, users, events, and initial snapshot",
	Long: `Generate a deterministic synthetic supply catalog, user population, and
interaction log from a seed, then aggregate the training segment into the
first feature-store snapshot.

Identical seed and counts always yield byte-identical artifacts.

Writes synthetic_supply.json, synthetic_users.json, synthetic_events.json,
relation_edges.json, and feature_store_snapshot.json into the artifact dir.

Examples:
  # Reference demo dataset
  matching-cli build-closed-loop-demo --seed 42 --supplies 16 --users 10

  # Larger population with a custom event count
  matching-cli build-closed-loop-demo --seed 7 --supplies 200 --users 80 --events 6000`,
	RunE: runDemo,
}

func init() {
	f := demoCmd.Flags()
	f.Int64("seed", 42, "seed for the deterministic generator")
	f.Int("supplies", 20, "number of supply items to generate")
	f.Int("users", 12, "number of users to generate")
	f.Int("events", 0, "number of events to simulate (0 = users * synth.events_per_user)")

	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := zap.L().With(zap.String("command", "build-closed-loop-demo"))

	seed, _ := cmd.Flags().GetInt64("seed")
	nSupplies, _ := cmd.Flags().GetInt("supplies")
	nUsers, _ := cmd.Flags().GetInt("users")
	nEvents, _ := cmd.Flags().GetInt("events")
	if nEvents <= 0 {
		nEvents = nUsers * cfg.Synth.EventsPerUser
	}

	supplies, users, edges, err := synth.Generate(synthConfig(), seed, nSupplies, nUsers)
	if err != nil {
		return eris.Wrap(err, "demo: generate entities")
	}

	events, err := synth.Simulate(supplies, users, seed, nEvents)
	if err != nil {
		return eris.Wrap(err, "demo: simulate events")
	}
	users = synth.AttachHistory(users, events)

	// The initial snapshot aggregates only the training segment so the
	// held-out tail stays unseen until the offline experiment replays it.
	train, heldOut := synth.SplitHoldout(events, cfg.Synth.HoldoutFraction)
	fs := featurestore.New(featurestore.Config{DecayLambda: cfg.Features.DecayLambda})
	snap, err := fs.BuildInitial(supplies, users, train)
	if err != nil {
		return eris.Wrap(err, "demo: build initial snapshot")
	}

	for name, v := range map[string]any{
		artifact.SuppliesFile: supplies,
		artifact.UsersFile:    users,
		artifact.EventsFile:   events,
		artifact.EdgesFile:    edges,
		artifact.SnapshotFile: snap,
	} {
		if err := artifact.WriteJSON(artifactPath(name), v); err != nil {
			return eris.Wrap(err, "demo: write artifacts")
		}
	}

	log.Info("demo build complete",
		zap.Int64("seed", seed),
		zap.Int("supplies", len(supplies)),
		zap.Int("users", len(users)),
		zap.Int("events", len(events)),
		zap.Int("edges", len(edges)),
		zap.Int("held_out", len(heldOut)),
		zap.Int64("snapshot_id", snap.SnapshotID),
	)

	params := map[string]any{"seed": seed, "supplies": nSupplies, "users": nUsers, "events": nEvents}
	summary := map[string]any{
		"events_total": len(events),
		"events_train": len(train),
		"edges":        len(edges),
		"snapshot_id":  snap.SnapshotID,
	}
	recordRun(ctx, store.RunDemo, params, summary)

	fmt.Printf("Generated %d supplies, %d users, %d events (%d held out), snapshot %d\n",
		len(supplies), len(users), len(events), len(heldOut), snap.SnapshotID)
	return nil
}
