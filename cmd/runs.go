package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offerloop/matching-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "list-runs",
	Short: "List recent runs from the run ledger",
	Long: `Print the run history recorded by the other commands, newest first.

Examples:
  matching-cli list-runs
  matching-cli list-runs --limit 50 --json`,
	RunE: runListRuns,
}

func init() {
	f := runsCmd.Flags()
	f.Int("limit", 20, "maximum rows to show")
	f.Bool("json", false, "emit JSON instead of a table")

	rootCmd.AddCommand(runsCmd)
}

func runListRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	if limit < 1 {
		return eris.Errorf("runs: --limit must be positive (got %d)", limit)
	}

	ledger, err := store.NewSQLite(cfg.Ledger.Path)
	if err != nil {
		return eris.Wrap(err, "runs: open ledger")
	}
	defer ledger.Close()

	if err := ledger.Migrate(ctx); err != nil {
		return eris.Wrap(err, "runs: migrate ledger")
	}
	rows, err := ledger.ListRuns(ctx, limit)
	if err != nil {
		return eris.Wrap(err, "runs: list runs")
	}

	if asJSON {
		return writeJSONStdout(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tKIND\tID\tSUMMARY")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Kind, r.ID, r.Summary)
	}
	return w.Flush()
}
