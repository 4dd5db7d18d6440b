package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backfillTenant string

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Reconstruct missing snapshots for a tenant, then relearn",
	Long:  "Rebuilds touch content snapshots from raw subject/body text and lead component snapshots from stored attributes, for history rows written before snapshot capture existed. Ends with a learning pass over the repaired window.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "learn", learningConfig())
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Orchestrator == nil {
			return eris.New("outcomes database not configured")
		}

		res, err := env.Orchestrator.Backfill(ctx, backfillTenant)
		if err != nil {
			return eris.Wrap(err, "backfill")
		}

		zap.L().Info("backfill finished",
			zap.String("tenant_id", backfillTenant),
			zap.Int("touches_restored", res.Report.TouchesRestored),
			zap.Int("leads_restored", res.Report.LeadsRestored),
			zap.String("run_id", res.Run.ID),
			zap.String("status", string(res.Run.Status)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillTenant, "tenant", "", "tenant to backfill (required)")
	_ = backfillCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(backfillCmd)
}
