package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guarzo/vinyldeals/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume search run ids from Kafka and analyze them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runWorker(signalCtx, ctx)
		},
	}
}

func runWorker(ctx context.Context, cmdCtx *commandContext) error {
	a, err := cmdCtx.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("worker requires kafka.brokers (or VINYLDEALS_KAFKA_BROKERS)")
	}
	logger := a.logger

	if cfg.Worker.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		srv := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", slog.String("addr", cfg.Worker.MetricsAddr))
	}

	retention := worker.NewRetention(a.store, cfg.Worker.RetentionDays, a.metrics.SnapshotsPruned, logger)
	scheduler, err := retention.Schedule(ctx, cfg.Worker.PruneSchedule)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	source := worker.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger)
	defer source.Close()

	jobs, errc := source.Jobs(ctx)
	results := make(chan worker.Result)
	go func() {
		for res := range results {
			a.metrics.JobsConsumed.Inc()
			if res.Err != nil {
				logger.Warn("search run failed",
					slog.String("search_run_id", res.RunID),
					slog.Int("attempts", res.Attempts),
					slog.Any("error", res.Err))
			}
		}
	}()

	pool := a.newPool()
	logger.Info("worker started",
		slog.String("topic", cfg.Kafka.Topic),
		slog.String("group_id", cfg.Kafka.GroupID),
		slog.Int("workers", cfg.Worker.Workers))
	pool.Run(ctx, jobs, results)
	close(results)

	stats := pool.Stats()
	logger.Info("worker stopped",
		slog.Int("started", stats.Started),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Int("retries", stats.Retries))

	if err := <-errc; err != nil {
		return fmt.Errorf("job source: %w", err)
	}
	return nil
}
