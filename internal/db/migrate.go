package db

import (
	"errors"  // Error values
	"fmt"     // Error wrapping
	"strings" // String manipulation
	"time"    // Slow query threshold

	"clube_beneficios/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/driver/postgres"    // Postgres driver for GORM
	"gorm.io/driver/sqlite"      // SQLite driver for GORM (development and tests)
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger interface
)

// Open connects to a database with the given driver name
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	// Route GORM's own logging through logrus
	gormLogger := logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond, // Log queries slower than this
		LogLevel:                  logger.Warn,            // Only warnings and errors
		IgnoreRecordNotFoundError: true,                   // Not found is a normal outcome
	})
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// MigrateMaster creates the master schema (super admins, clubs and club admins)
func MigrateMaster(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(domain.MasterModels()...); err != nil {
		return fmt.Errorf("migrate master: %w", err)
	}
	return nil
}

// MigrateTenant creates the schema of one club database
func MigrateTenant(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.TenantModels()...); err != nil {
		return fmt.Errorf("migrate tenant: %w", err)
	}
	return nil
}

// SeedSuperAdmin creates the first super admin when none with that email exists
func SeedSuperAdmin(db *gorm.DB, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 8 {
		return false, errors.New("super admin email and a password of at least 8 characters are required")
	}
	var existing domain.SuperAdmin
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil // Already seeded
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	admin := domain.SuperAdmin{Email: email, Password: string(hash), Name: "Super Admin"}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	logrus.WithField("email", email).Info("Super admin seeded")
	return true, nil
}
