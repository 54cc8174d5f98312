package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offerloop/matching-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "matching-cli",
	Short: "Closed-loop supply/demand matching and offline evaluation engine",
	Long: "Synthesizes a supply catalog, user population, and interaction log; aggregates them " +
		"into a versioned feature store; runs bidirectional constrained matching; compares " +
		"configurations offline; and folds experiment outcomes back into the store.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
