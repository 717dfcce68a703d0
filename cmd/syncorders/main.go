package main

import (
	"context"   // Cancellation
	"os"        // Exit codes
	"os/signal" // Shutdown signals
	"syscall"   // SIGTERM

	"clube_beneficios/internal/app"        // Shared start-up wiring
	"clube_beneficios/internal/blockchain" // JSON-RPC client
	"clube_beneficios/internal/config"     // Configuration
	"clube_beneficios/internal/domain"     // Modules
	"clube_beneficios/internal/reconcile"  // Exchange order sync

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Mirrors on-chain exchange order status into every club with investments enabled.
// Meant to run from cron; exits non-zero when any club could not be synced.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	app.SetupLogger(cfg)
	if cfg.RPCURL == "" {
		logrus.Fatal("RPC_URL is required to sync orders")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tenants, err := app.OpenTenants(cfg, nil)
	if err != nil {
		logrus.Fatalf("open databases: %v", err)
	}
	defer tenants.Close()

	rpc := blockchain.NewClient(cfg.RPCURL, cfg.RPCTimeout)
	head, err := rpc.BlockNumber(ctx)
	if err != nil {
		logrus.Fatalf("rpc unreachable: %v", err)
	}
	syncer := reconcile.NewSyncer(rpc, nil)

	clubs, err := tenants.Resolver.ActiveClubs(ctx)
	if err != nil {
		logrus.Fatalf("list clubs: %v", err)
	}
	var total reconcile.Result
	failedClubs := 0
	for i := range clubs {
		club := &clubs[i]
		if !club.ModuleEnabled(domain.ModuleInvestments) {
			continue
		}
		log := logrus.WithField("club", club.Slug)
		tdb, err := tenants.Cache.Get(club)
		if err != nil {
			failedClubs++
			log.WithField("error", err.Error()).Error("Failed to open club database")
			continue
		}
		res, err := syncer.SyncTenant(ctx, tdb)
		total.Add(res)
		if err != nil {
			failedClubs++
			log.WithField("error", err.Error()).Error("Order sync failed")
			continue
		}
		log.WithFields(logrus.Fields{"checked": res.Checked, "updated": res.Updated, "failed": res.Failed}).Info("Club synced")
	}

	logrus.WithFields(logrus.Fields{
		"block":        head,
		"clubs":        len(clubs),
		"failed_clubs": failedClubs,
		"checked":      total.Checked,
		"updated":      total.Updated,
		"failed":       total.Failed,
	}).Info("Order sync finished")
	if failedClubs > 0 {
		os.Exit(1)
	}
}
