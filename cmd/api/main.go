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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ayurkart/storefront-backend/api/routes"
	"github.com/ayurkart/storefront-backend/internal/admins"
	"github.com/ayurkart/storefront-backend/internal/cancellation"
	"github.com/ayurkart/storefront-backend/internal/deletion"
	"github.com/ayurkart/storefront-backend/internal/inventory"
	"github.com/ayurkart/storefront-backend/internal/orders"
	"github.com/ayurkart/storefront-backend/internal/refunds"
	"github.com/ayurkart/storefront-backend/pkg/bootstrap"
	"github.com/ayurkart/storefront-backend/pkg/env"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/metrics"
	"github.com/ayurkart/storefront-backend/pkg/outbox"
	"github.com/ayurkart/storefront-backend/pkg/redis"
	"github.com/ayurkart/storefront-backend/pkg/square"
)

const shutdownGrace = 15 * time.Second

func main() {
	boot := logger.New(logger.Options{ServiceName: "api"})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, boot)
	stop()
	if err != nil {
		boot.Error(context.Background(), "api exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, boot *logger.Logger) error {
	rt, err := bootstrap.Start(ctx, bootstrap.Options{Service: "api"}, boot)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	cfg, logg := rt.Config, rt.Logger

	var replay *redis.Client
	if cfg.FeatureFlags.IdempotentAPIs {
		if replay, err = redis.New(ctx, cfg.Redis, logg); err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.Defer("redis", replay.Close)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svcs, adminsRepo, err := wire(ctx, rt, metrics.NewWorkflowMetrics(registry))
	if err != nil {
		return err
	}

	addr := ":" + env.First(cfg.App.Port, "PORT")
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, rt.DB, replay, registry, adminsRepo, outbox.NewDLQRepository(rt.DB.DB()), svcs),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.App.RequestTimeout,
		WriteTimeout:      cfg.App.RequestTimeout + 5*time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// wire builds the order workflows over the shared database.
func wire(ctx context.Context, rt *bootstrap.Runtime, wm *metrics.WorkflowMetrics) (routes.Services, admins.Repository, error) {
	logg, conn := rt.Logger, rt.DB.DB()

	var gateway refunds.Gateway
	if rt.Config.Square.Enabled() {
		client, err := square.NewClient(ctx, rt.Config.Square, logg)
		if err != nil {
			return routes.Services{}, nil, fmt.Errorf("square client: %w", err)
		}
		gateway = client
	} else {
		logg.Warn(ctx, "square credentials missing, refunds disabled")
	}

	ordersRepo := orders.NewRepository(conn)
	adminsRepo := admins.NewRepository(conn)
	events := outbox.NewService(outbox.NewRepository(conn), logg)

	stock, err := inventory.NewService(inventory.NewRepository(conn), rt.DB)
	if err != nil {
		return routes.Services{}, nil, fmt.Errorf("inventory service: %w", err)
	}
	refundSvc, err := refunds.NewService(refunds.ServiceParams{
		Repository: ordersRepo,
		Tx:         rt.DB,
		Outbox:     events,
		Gateway:    gateway,
		Logger:     logg,
		Metrics:    wm,
	})
	if err != nil {
		return routes.Services{}, nil, fmt.Errorf("refund service: %w", err)
	}
	cancelSvc, err := cancellation.NewService(cancellation.ServiceParams{
		Repository: ordersRepo,
		Tx:         rt.DB,
		Outbox:     events,
		Inventory:  stock,
		Refunds:    refundSvc,
		Logger:     logg,
		Metrics:    wm,
	})
	if err != nil {
		return routes.Services{}, nil, fmt.Errorf("cancellation service: %w", err)
	}
	deleteSvc, err := deletion.NewService(deletion.ServiceParams{
		Orders:  ordersRepo,
		Admins:  adminsRepo,
		Tx:      rt.DB,
		Outbox:  events,
		Logger:  logg,
		Metrics: wm,
	})
	if err != nil {
		return routes.Services{}, nil, fmt.Errorf("deletion service: %w", err)
	}

	return routes.Services{
		Cancellation: cancelSvc,
		Deletion:     deleteSvc,
		Refunds:      refundSvc,
	}, adminsRepo, nil
}
