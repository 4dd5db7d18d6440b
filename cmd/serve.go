package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/health"
	"github.com/outfieldhq/learning-engine/internal/scheduler"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API and recurring learning jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "serve", learningConfig())
		if err != nil {
			return err
		}
		defer env.Close()

		runner, cleanup, err := startScheduler(ctx, env)
		if err != nil {
			return err
		}
		defer cleanup()

		api := &apiServer{
			store:   env.Store,
			weights: env.Weights,
			scanner: env.Scanner,
			runner:  runner,
			logger:  zap.L(),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(api),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("scheduler_backend", cfg.Scheduler.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// startScheduler wires the configured scheduler backend and starts its
// recurring jobs. With learning disabled the server comes up read-only:
// no recurring jobs, and the trigger endpoints answer 503.
func startScheduler(ctx context.Context, env *engineEnv) (scheduler.Runner, func(), error) {
	noop := func() {}
	if env.Orchestrator == nil {
		return nil, noop, nil
	}

	checker := health.NewChecker(env.Scanner, env.Alerter,
		time.Duration(cfg.Monitoring.CheckIntervalHours)*time.Hour, zap.L())
	jobs := scheduler.NewJobs(env.Orchestrator, checker)

	switch cfg.Scheduler.Backend {
	case "ticker":
		runner := scheduler.NewTickerRunner(jobs, zap.L())
		err := runner.RegisterRecurring(ctx, scheduler.JobSpec{
			Name:     scheduler.JobLearn,
			Interval: time.Duration(cfg.Scheduler.IntervalHours) * time.Hour,
		})
		if err != nil {
			return nil, noop, err
		}
		go runner.Run(ctx)
		go checker.Run(ctx)
		return runner, noop, nil

	case "temporal":
		c, err := client.Dial(client.Options{
			HostPort:  cfg.Scheduler.Temporal.HostPort,
			Namespace: cfg.Scheduler.Temporal.Namespace,
		})
		if err != nil {
			return nil, noop, eris.Wrap(err, "connect temporal")
		}

		runner := scheduler.NewTemporalRunner(c, cfg.Scheduler.Temporal.TaskQueue, zap.L())
		specs := []scheduler.JobSpec{
			{Name: scheduler.JobLearn, Cron: cfg.Scheduler.LearnCron},
			{Name: scheduler.JobHealth, Cron: cfg.Scheduler.HealthCron},
		}
		for _, spec := range specs {
			if err := runner.RegisterRecurring(ctx, spec); err != nil {
				c.Close()
				return nil, noop, err
			}
		}
		return runner, c.Close, nil

	default:
		return nil, noop, eris.Errorf("unknown scheduler backend %q", cfg.Scheduler.Backend)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
