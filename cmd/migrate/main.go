package main

import (
	"context" // Timeouts
	"time"    // Timeouts

	"clube_beneficios/internal/app"    // Shared start-up wiring
	"clube_beneficios/internal/config" // Custom import path (Config)
	"clube_beneficios/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration: master schema, every active club, then the first super admin
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	app.SetupLogger(cfg)

	tenants, err := app.OpenTenants(cfg, nil)
	if err != nil {
		logrus.Fatalf("open databases: %v", err)
	}
	defer tenants.Close()

	if err := db.MigrateMaster(tenants.Master); err != nil {
		logrus.Fatalf("migrate master: %v", err)
	}
	logrus.Info("Master schema migrated")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	clubs, err := tenants.Resolver.ActiveClubs(ctx)
	if err != nil {
		logrus.Fatalf("list clubs: %v", err)
	}
	failed := 0
	for i := range clubs {
		// Provision is idempotent: it opens the club database and applies the tenant schema
		if err := tenants.Resolver.Provision(ctx, &clubs[i]); err != nil {
			failed++
			logrus.WithFields(logrus.Fields{"club": clubs[i].Slug, "error": err.Error()}).Error("Failed to migrate club")
			continue
		}
		logrus.WithField("club", clubs[i].Slug).Info("Club schema migrated")
	}

	if cfg.SuperAdminEmail != "" {
		created, err := db.SeedSuperAdmin(tenants.Master, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
		if err != nil {
			logrus.Fatalf("seed super admin: %v", err)
		}
		if !created {
			logrus.WithField("email", cfg.SuperAdminEmail).Info("Super admin already exists")
		}
	}
	if failed > 0 {
		logrus.Fatalf("%d of %d clubs failed to migrate", failed, len(clubs))
	}
}
