package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/model"
)

var (
	learnTenant      string
	learnWindowDays  int
	learnDryRun      bool
	learnRetryFailed bool
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Run a learning pass over outcome history",
	Long:  "Mines the outcome window into WHO/WHAT/WHEN/HOW patterns for one tenant or every active tenant, promoting results that clear the confidence bar.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if learnRetryFailed && learnTenant != "" {
			return eris.New("--retry-failed drains the whole queue and cannot be combined with --tenant")
		}

		ocfg := learningConfig()
		if learnWindowDays > 0 {
			ocfg.WindowDays = learnWindowDays
		}
		ocfg.DryRun = learnDryRun

		env, err := initEngine(ctx, "learn", ocfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Orchestrator == nil {
			return eris.New("outcomes database not configured")
		}

		var run *model.LearningRun
		switch {
		case learnRetryFailed:
			run, err = env.Orchestrator.RetryFailed(ctx)
		case learnTenant != "":
			run, err = env.Orchestrator.RunTenant(ctx, learnTenant, model.TriggerManual)
		default:
			run, err = env.Orchestrator.RunAll(ctx, model.TriggerManual)
		}
		if err != nil {
			return eris.Wrap(err, "learning run")
		}
		if run == nil {
			fmt.Fprintln(os.Stderr, "Retry queue is empty.")
			return nil
		}

		zap.L().Info("learning run finished",
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)),
			zap.Int("tenants_processed", run.Summary.TenantsProcessed),
			zap.Int("tenants_failed", run.Summary.TenantsFailed),
			zap.Int("patterns_stored", run.Summary.PatternsStored),
			zap.Int("sentinels_recorded", run.Summary.SentinelsRecorded),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	learnCmd.Flags().StringVar(&learnTenant, "tenant", "", "learn a single tenant instead of all active tenants")
	learnCmd.Flags().IntVar(&learnWindowDays, "window-days", 0, "override the outcome window (default from config)")
	learnCmd.Flags().BoolVar(&learnDryRun, "dry-run", false, "compute and log results without writing anything")
	learnCmd.Flags().BoolVar(&learnRetryFailed, "retry-failed", false, "rerun tenants parked in the retry queue instead of a fresh pass")
	rootCmd.AddCommand(learnCmd)
}
