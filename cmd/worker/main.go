package main

import (
	"context"   // Cancellation
	"errors"    // Error matching
	"net/http"  // Metrics endpoint
	"os"        // Exit codes
	"os/signal" // Shutdown signals
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"clube_beneficios/internal/app"     // Shared start-up wiring
	"clube_beneficios/internal/config"  // Configuration
	"clube_beneficios/internal/events"  // Routing keys
	"clube_beneficios/internal/metrics" // Prometheus collectors
	"clube_beneficios/internal/mq"      // RabbitMQ consumer
	"clube_beneficios/internal/worker"  // Cashback worker

	"github.com/prometheus/client_golang/prometheus"          // Metrics registry
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics endpoint
	"github.com/sirupsen/logrus"                              // Logrus for structured logging
	"golang.org/x/sync/errgroup"                              // Consumer and metrics server
)

// Consumes purchase events and distributes their cashback
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	app.SetupLogger(cfg)
	if cfg.RabbitURL == "" {
		logrus.Fatal("RABBIT_URL is required to run the worker")
	}
	if err := run(cfg); err != nil {
		logrus.WithField("error", err.Error()).Error("Worker stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "clube")

	tenants, err := app.OpenTenants(cfg, m)
	if err != nil {
		return err
	}
	defer tenants.Close()
	split, err := app.Split(cfg)
	if err != nil {
		return err
	}
	rdb, err := app.OpenRedis(ctx, cfg) // Nil when caching is off
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		URL:                cfg.RabbitURL,
		Exchange:           cfg.RabbitExchange,
		Queue:              cfg.CashbackQueue,
		Keys:               []string{events.RKPurchaseCompleted},
		Prefetch:           1, // One purchase at a time per worker
		DeadLetterExchange: cfg.RabbitDLX,
	})
	if err != nil {
		return err
	}
	defer consumer.Close()
	deliveries, err := consumer.Deliveries(ctx, "cashback-worker")
	if err != nil {
		return err
	}

	w := worker.NewCashbackWorker(tenants.Resolver, split, m).WithCache(rdb)
	srv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("queue", cfg.CashbackQueue).Info("Cashback worker consuming")
		return w.Run(gctx, deliveries)
	})
	g.Go(func() error {
		tenants.Cache.Run(gctx, cfg.TenantSweep)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
