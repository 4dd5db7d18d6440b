package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "learning-engine",
	Short: "Conversion pattern learning pipeline",
	Long:  "Mines outreach outcomes into per-tenant WHO/WHAT/WHEN/HOW conversion patterns, keeps the scoring weight cache fresh, and watches pattern health.",
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
