// Package testutil provides in-memory databases and tokens for package tests.
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"clube_beneficios/internal/db"
	"clube_beneficios/internal/domain"
	"clube_beneficios/internal/tenant"
	"clube_beneficios/internal/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Secret signs every token minted in tests
const Secret = "test-secret"

// memoryDSN returns a shared-cache in-memory sqlite DSN unique to the test
func memoryDSN(t *testing.T, suffix string) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return "file:" + name + "_" + suffix + "?mode=memory&cache=shared"
}

// OpenTenantDB opens an in-memory club database with the tenant schema applied.
// Caller does not need to close it; t.Cleanup does.
func OpenTenantDB(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, "tenant", db.MigrateTenant)
}

// OpenMasterDB opens an in-memory master database with the master schema applied
func OpenMasterDB(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, "master", db.MigrateMaster)
}

// TenantDSN returns the DSN OpenTenantDB-style databases use for a club slug
func TenantDSN(t *testing.T, slug string) string {
	return memoryDSN(t, "club_"+slug)
}

func open(t *testing.T, suffix string, migrate func(*gorm.DB) error) *gorm.DB {
	t.Helper()
	d, err := db.Open("sqlite", memoryDSN(t, suffix))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := migrate(d); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return d
}

// HashPassword hashes with the minimum cost to keep tests fast
func HashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

// CreateUser inserts a tenant user
func CreateUser(t *testing.T, tdb *gorm.DB, email, role string, referrerID *uint) *domain.User {
	t.Helper()
	u := &domain.User{
		Name:            strings.Split(email, "@")[0],
		Email:           email,
		Password:        HashPassword(t, "password123"),
		Role:            role,
		ReferrerID:      referrerID,
		CashbackBalance: decimal.Zero,
	}
	if err := tdb.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateProduct inserts an active product
func CreateProduct(t *testing.T, tdb *gorm.DB, merchantID uint, price, cashbackPct string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		MerchantID:  merchantID,
		Name:        "Product",
		Price:       decimal.RequireFromString(price),
		CashbackPct: decimal.RequireFromString(cashbackPct),
		Stock:       stock,
		Active:      true,
	}
	if err := tdb.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

// Token mints a bearer token for the given identity
func Token(t *testing.T, subjectID uint, role string, clubID uint, clubRole string) string {
	t.Helper()
	tok, err := utils.GenerateJWT(utils.Identity{SubjectID: subjectID, Role: role, ClubID: clubID, ClubRole: clubRole}, Secret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// NewResolver builds a resolver whose clubs live in in-memory sqlite databases
func NewResolver(t *testing.T, master *gorm.DB) *tenant.Resolver {
	t.Helper()
	cache := tenant.NewCache(func(club *domain.Club) (*gorm.DB, error) {
		return db.Open("sqlite", TenantDSN(t, club.Slug))
	}, time.Hour)
	t.Cleanup(cache.Close)
	return tenant.NewResolver(master, cache)
}

// CreateClub inserts an active club with every module enabled and provisions its database
func CreateClub(t *testing.T, r *tenant.Resolver, slug string) (*domain.Club, *gorm.DB) {
	t.Helper()
	club := &domain.Club{
		Name:                 strings.ToUpper(slug[:1]) + slug[1:],
		Slug:                 slug,
		Active:               true,
		CashbackEnabled:      true,
		InvestmentsEnabled:   true,
		WhatsAppEnabled:      true,
		NotificationsEnabled: true,
		PlatformFeePct:       decimal.RequireFromString("2.5"),
	}
	if err := r.Master().Create(club).Error; err != nil {
		t.Fatalf("create club: %v", err)
	}
	ctx := context.Background()
	if err := r.Provision(ctx, club); err != nil {
		t.Fatalf("provision club: %v", err)
	}
	_, tdb, err := r.ByID(ctx, club.ID)
	if err != nil {
		t.Fatalf("resolve club: %v", err)
	}
	return club, tdb
}
