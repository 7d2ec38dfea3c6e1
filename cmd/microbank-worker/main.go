package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"microbank/internal/config"
	"microbank/internal/economy"
	"microbank/internal/pricefeed"
	"microbank/internal/schedule"
	"microbank/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	backend, err := store.Open(ctx, store.Options{
		Kind:        cfg.Store.Kind,
		DataDir:     cfg.Store.DataDir,
		DatabaseURL: cfg.Store.DatabaseURL,
	}, logger)
	if err != nil {
		logger.Error("store open failed", "err", err)
		os.Exit(1)
	}
	defer backend.Close()

	publisher := pricefeed.Discard
	if cfg.RedisURL != "" {
		client, err := pricefeed.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = pricefeed.NewRedis(client, logger)
	} else {
		logger.Warn("no redis configured; api websocket clients will not see worker drifts")
	}

	econ := economy.NewService(backend, logger,
		economy.WithDefaultTaxRate(cfg.DefaultTaxPercent),
		economy.WithCentralBankSeed(cfg.CentralBankSeed),
		economy.WithPublisher(publisher),
	)
	if err := econ.Seed(ctx); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}

	var jobs []*schedule.Job
	if cfg.DriftEvery > 0 {
		jobs = append(jobs, &schedule.Job{
			Name:  "drift",
			Every: cfg.DriftEvery,
			Run: func(ctx context.Context) error {
				_, err := econ.Drift(ctx)
				return err
			},
		})
	}
	if cfg.TaxEvery > 0 {
		jobs = append(jobs, &schedule.Job{
			Name:  "periodic_tax",
			Every: cfg.TaxEvery,
			Run: func(ctx context.Context) error {
				run, err := econ.ApplyPeriodicToAll(ctx, economy.System)
				if err != nil {
					return err
				}
				logger.Info("periodic tax applied", "total", run.Total.StringFixed(2), "seasons", run.Seasons, "principals", run.Principals)
				return nil
			},
		})
	}
	runner := schedule.NewRunner(logger, jobs...)

	if cfg.RunOnce {
		if err := runner.RunOnce(ctx); err != nil {
			logger.Error("worker run-once failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	logger.Info("worker started", "drift_every", cfg.DriftEvery.String(), "tax_every", cfg.TaxEvery.String())
	runner.Start(ctx, false)
	logger.Info("worker shutdown")
}
