package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/health"
	"github.com/outfieldhq/learning-engine/internal/scheduler"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker that executes learning workflows",
	Long: `Connects to Temporal and executes the learning, health, and backfill
workflows on the configured task queue. The cron workflows registered by
"serve" run here, as do runs triggered through the admin API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "worker", learningConfig())
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Orchestrator == nil {
			return eris.New("outcomes database not configured, worker has nothing to run")
		}

		checker := health.NewChecker(env.Scanner, env.Alerter,
			time.Duration(cfg.Monitoring.CheckIntervalHours)*time.Hour, zap.L())
		jobs := scheduler.NewJobs(env.Orchestrator, checker)

		c, err := client.Dial(client.Options{
			HostPort:  cfg.Scheduler.Temporal.HostPort,
			Namespace: cfg.Scheduler.Temporal.Namespace,
		})
		if err != nil {
			return eris.Wrap(err, "connect temporal")
		}
		defer c.Close()

		w := worker.New(c, cfg.Scheduler.Temporal.TaskQueue, worker.Options{})

		w.RegisterWorkflow(scheduler.LearningRunWorkflow)
		w.RegisterWorkflow(scheduler.HealthCheckWorkflow)
		w.RegisterWorkflow(scheduler.BackfillWorkflow)
		w.RegisterActivity(scheduler.NewActivities(jobs, env.Source, cfg.Learning.WindowDays))

		// Registration is idempotent, so the worker installs the cron
		// workflows too and the first process up wins.
		runner := scheduler.NewTemporalRunner(c, cfg.Scheduler.Temporal.TaskQueue, zap.L())
		specs := []scheduler.JobSpec{
			{Name: scheduler.JobLearn, Cron: cfg.Scheduler.LearnCron},
			{Name: scheduler.JobHealth, Cron: cfg.Scheduler.HealthCron},
		}
		for _, spec := range specs {
			if err := runner.RegisterRecurring(ctx, spec); err != nil {
				return err
			}
		}

		zap.L().Info("worker configured",
			zap.String("host_port", cfg.Scheduler.Temporal.HostPort),
			zap.String("task_queue", cfg.Scheduler.Temporal.TaskQueue),
		)

		workerErrors := make(chan error, 1)
		go func() {
			workerErrors <- w.Run(worker.InterruptCh())
		}()

		select {
		case err := <-workerErrors:
			if err != nil {
				return eris.Wrap(err, "worker run")
			}
		case <-ctx.Done():
			zap.L().Info("shutdown signal received")
		}

		zap.L().Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
