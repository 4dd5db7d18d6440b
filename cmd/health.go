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

	"github.com/outfieldhq/learning-engine/internal/health"
)

var healthWebhook string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Scan stored patterns for expiry, drift, and queue depth",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "health", learningConfig())
		if err != nil {
			return err
		}
		defer env.Close()

		findings, err := env.Scanner.Scan(ctx)
		if err != nil {
			return eris.Wrap(err, "health scan")
		}

		if len(findings) == 0 {
			fmt.Fprintln(os.Stderr, "No findings.")
			return nil
		}

		health.LogFindings(zap.L(), findings)

		alerter := env.Alerter
		if healthWebhook != "" {
			alerter = health.NewAlerter(healthWebhook, zap.L())
		}
		sent := alerter.Send(ctx, findings)

		zap.L().Info("health check finished",
			zap.Int("findings", len(findings)),
			zap.Int("delivered", sent),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(findings)
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthWebhook, "webhook", "", "alert webhook URL (overrides config)")
	rootCmd.AddCommand(healthCmd)
}
