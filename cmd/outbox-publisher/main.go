package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayurkart/storefront-backend/pkg/bootstrap"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/metrics"
	"github.com/ayurkart/storefront-backend/pkg/outbox"
	"github.com/ayurkart/storefront-backend/pkg/outbox/registry"
	"github.com/ayurkart/storefront-backend/pkg/pubsub"
)

func main() {
	boot := logger.New(logger.Options{ServiceName: "outbox-publisher"})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, boot)
	stop()
	if err != nil {
		boot.Error(context.Background(), "outbox publisher exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, boot *logger.Logger) error {
	rt, err := bootstrap.Start(ctx, bootstrap.Options{Service: "outbox-publisher"}, boot)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	cfg, logg := rt.Config, rt.Logger

	topics, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	rt.Defer("pubsub", topics.Close)

	resolver, err := registry.New(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	reg := prometheus.NewRegistry()
	relay, err := NewRelay(RelayParams{
		Outbox:      cfg.Outbox,
		Logger:      logg,
		DB:          rt.DB,
		Events:      outbox.NewRepository(rt.DB.DB()),
		DeadLetters: outbox.NewDLQRepository(rt.DB.DB()),
		Resolver:    resolver,
		Topics:      topics,
		Metrics:     metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		return fmt.Errorf("outbox relay: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "topic": cfg.PubSub.OrdersTopic})
	if cfg.Outbox.MetricsAddr != "" {
		serveMetrics(ctx, logg, cfg.Outbox.MetricsAddr, reg, rt)
	}

	logg.Info(ctx, "starting outbox relay")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("outbox relay: %w", err)
	}
	logg.Info(ctx, "outbox relay shut down")
	return nil
}

// serveMetrics exposes the relay counters until the runtime closes.
func serveMetrics(ctx context.Context, logg *logger.Logger, addr string, reg *prometheus.Registry, rt *bootstrap.Runtime) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "outbox metrics server stopped", err)
		}
	}()
	rt.Defer("metrics server", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
