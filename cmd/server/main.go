package main

import (
	"context"   // Shutdown and background jobs
	"errors"    // Error matching
	"net/http"  // HTTP server
	"os"        // Exit codes
	"os/signal" // Shutdown signals
	"syscall"   // SIGTERM

	"clube_beneficios/internal/api"        // Custom package for API handlers
	"clube_beneficios/internal/app"        // Shared start-up wiring
	"clube_beneficios/internal/blockchain" // JSON-RPC client
	"clube_beneficios/internal/config"     // Custom package for configuration
	"clube_beneficios/internal/events"     // Broker messages
	"clube_beneficios/internal/mail"       // Email delivery
	"clube_beneficios/internal/metrics"    // Prometheus collectors
	"clube_beneficios/internal/mq"         // RabbitMQ publisher
	"clube_beneficios/internal/reconcile"  // Exchange order sync and cashback republish
	"clube_beneficios/internal/whatsapp"   // Cloud API client
	"clube_beneficios/internal/worker"     // Inline cashback worker

	"github.com/gin-gonic/gin"                                  // Gin web framework
	"github.com/prometheus/client_golang/prometheus"            // Metrics registry
	"github.com/prometheus/client_golang/prometheus/collectors" // Go runtime and process collectors
	"github.com/sirupsen/logrus"                                // Logrus for structured logging
	"golang.org/x/sync/errgroup"                                // HTTP server and pool sweeper run side by side
)

// Main function to set up and run the server
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	app.SetupLogger(cfg)
	logrus.WithField("config", cfg.String()).Info("Starting API server")

	if err := run(cfg); err != nil {
		logrus.WithField("error", err.Error()).Error("Server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "clube")

	tenants, err := app.OpenTenants(cfg, m)
	if err != nil {
		return err
	}
	defer tenants.Close()

	rdb, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	split, err := app.Split(cfg)
	if err != nil {
		return err
	}

	// Cashback goes through the broker when one is configured, otherwise it is distributed in-process
	var pub events.Publisher
	if cfg.RabbitURL != "" {
		p, err := mq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return err
		}
		defer p.Close()
		pub = p
	} else {
		logrus.Warn("RABBIT_URL not set, cashback is distributed inline")
		pub = worker.InlinePublisher{Worker: worker.NewCashbackWorker(tenants.Resolver, split, m).WithCache(rdb)}
	}

	var syncer *reconcile.Syncer
	if cfg.RPCURL != "" {
		syncer = reconcile.NewSyncer(blockchain.NewClient(cfg.RPCURL, cfg.RPCTimeout), m)
	}

	mailer, err := mail.New(mail.Options{
		Provider: cfg.MailProvider,
		APIKey:   cfg.MailAPIKey,
		From:     cfg.MailFrom,
		Timeout:  cfg.OutboundTimeout,
		Metrics:  m,
	})
	if err != nil {
		return err
	}
	dispatcher := mail.NewDispatcher(mailer, api.MailConcurrency)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.NewRouter(api.Deps{
		Tenants:             tenants.Resolver,
		Redis:               rdb,
		Publisher:           pub,
		Split:               split,
		Syncer:              syncer,
		Mailer:              dispatcher,
		WhatsApp:            whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppToken, cfg.WhatsAppPhoneID, cfg.OutboundTimeout),
		Metrics:             m,
		Gatherer:            reg,
		Tokens:              api.TokenIssuer{Secret: cfg.JWTSecret, TTL: cfg.JWTTTL},
		WhatsAppVerifyToken: cfg.WhatsAppVerifyToken,
		WhatsAppAppSecret:   cfg.WhatsAppAppSecret,
		TrustedProxies:      cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: router}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("port", cfg.AppPort).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		tenants.Cache.Run(gctx, cfg.TenantSweep)
		return nil
	})
	if cfg.CashbackRepublishInterval > 0 {
		republisher := reconcile.NewRepublisher(pub, cfg.CashbackRepublishAfter)
		g.Go(func() error {
			republisher.Run(gctx, tenants.Resolver, cfg.CashbackRepublishInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if werr := dispatcher.Wait(shutdownCtx); werr != nil {
			logrus.WithField("error", werr.Error()).Warn("Queued emails not finished before shutdown")
		}
		return err
	})
	return g.Wait()
}
