package tenant

import (
	"context"
	"errors"
	"fmt"

	"clube_beneficios/internal/db"
	"clube_beneficios/internal/domain"

	"gorm.io/gorm"
)

// ErrClubNotFound is returned for unknown or inactive clubs
var ErrClubNotFound = errors.New("club not found")

// Resolver looks clubs up in the master database and hands out their tenant handles
type Resolver struct {
	master *gorm.DB
	cache  *Cache
}

// NewResolver creates a resolver over the master database and the connection cache
func NewResolver(master *gorm.DB, cache *Cache) *Resolver {
	return &Resolver{master: master, cache: cache}
}

// ByID resolves an active club by its ID
func (r *Resolver) ByID(ctx context.Context, clubID uint) (*domain.Club, *gorm.DB, error) {
	return r.resolve(ctx, "id = ?", clubID)
}

// BySlug resolves an active club by its slug
func (r *Resolver) BySlug(ctx context.Context, slug string) (*domain.Club, *gorm.DB, error) {
	return r.resolve(ctx, "slug = ?", slug)
}

func (r *Resolver) resolve(ctx context.Context, query string, arg any) (*domain.Club, *gorm.DB, error) {
	var club domain.Club
	err := r.master.WithContext(ctx).Where(query, arg).Where("active = ?", true).First(&club).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrClubNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup club: %w", err)
	}
	tdb, err := r.cache.Get(&club)
	if err != nil {
		return nil, nil, fmt.Errorf("open tenant %s: %w", club.Slug, err)
	}
	return &club, tdb.WithContext(ctx), nil
}

// ActiveClubs lists every active club
func (r *Resolver) ActiveClubs(ctx context.Context) ([]domain.Club, error) {
	var clubs []domain.Club
	if err := r.master.WithContext(ctx).Where("active = ?", true).Order("id").Find(&clubs).Error; err != nil {
		return nil, err
	}
	return clubs, nil
}

// Provision opens the database of a new club and creates its schema
func (r *Resolver) Provision(ctx context.Context, club *domain.Club) error {
	tdb, err := r.cache.Get(club)
	if err != nil {
		return fmt.Errorf("open tenant %s: %w", club.Slug, err)
	}
	return db.MigrateTenant(tdb.WithContext(ctx))
}

// Evict drops the cached handle of a club
func (r *Resolver) Evict(clubID uint) {
	r.cache.Evict(clubID)
}

// Master returns the master database handle
func (r *Resolver) Master() *gorm.DB {
	return r.master
}

// DSNOpener builds an Opener that prefers the club's own DatabaseURL and falls back to the template
func DSNOpener(open func(dsn string) (*gorm.DB, error), dsnFor func(slug string) string) Opener {
	return func(club *domain.Club) (*gorm.DB, error) {
		dsn := club.DatabaseURL
		if dsn == "" {
			dsn = dsnFor(club.Slug)
		}
		if dsn == "" {
			return nil, fmt.Errorf("no database configured for club %s", club.Slug)
		}
		return open(dsn)
	}
}
