package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"microbank/internal/api"
	"microbank/internal/config"
	"microbank/internal/economy"
	"microbank/internal/notify"
	"microbank/internal/pricefeed"
	"microbank/internal/schedule"
	"microbank/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
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

	hub := pricefeed.NewHub(logger)
	var publisher pricefeed.Publisher = hub
	if cfg.RedisURL != "" {
		client, err := pricefeed.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		// Every drift, local or from the worker, reaches the hub via redis.
		feed := pricefeed.NewRedis(client, logger)
		publisher = feed
		go func() {
			if err := feed.Relay(ctx, hub); err != nil {
				logger.Error("price relay stopped", "err", err)
			}
		}()
	}

	var notifier economy.Notifier = notify.Log{Logger: logger}
	if cfg.DiscordWebhookURL != "" {
		discord, err := notify.NewDiscord(cfg.DiscordWebhookURL)
		if err != nil {
			logger.Error("discord notifier init failed", "err", err)
			os.Exit(1)
		}
		notifier = discord
	}

	econ := economy.NewService(backend, logger,
		economy.WithDefaultTaxRate(cfg.DefaultTaxPercent),
		economy.WithCentralBankSeed(cfg.CentralBankSeed),
		economy.WithPublisher(publisher),
		economy.WithNotifier(notifier),
	)
	if err := econ.Seed(ctx); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}

	server, err := api.New(cfg, logger, econ, hub)
	if err != nil {
		logger.Error("api init failed", "err", err)
		os.Exit(1)
	}

	drift := &schedule.Job{
		Name:  "drift",
		Every: cfg.DriftEvery,
		Run: func(ctx context.Context) error {
			_, err := econ.Drift(ctx)
			return err
		},
	}
	scheduled := make(chan struct{})
	go func() {
		defer close(scheduled)
		schedule.NewRunner(logger, drift).Start(ctx, cfg.DriftOnStart)
	}()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("microbank api listening", "addr", cfg.Addr, "store", cfg.Store.Kind)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	<-scheduled
	logger.Info("microbank api stopped")
}
