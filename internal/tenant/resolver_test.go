package tenant

import (
	"context"
	"testing"
	"time"

	"clube_beneficios/internal/db"
	"clube_beneficios/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestResolver(t *testing.T) {
	master, err := db.Open("sqlite", "file:"+t.Name()+"_master?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.MigrateMaster(master))
	require.NoError(t, master.Create(&domain.Club{Name: "Acme", Slug: "acme", Active: true}).Error)
	require.NoError(t, master.Create(&domain.Club{Name: "Gone", Slug: "gone", Active: false}).Error)

	opener := DSNOpener(func(dsn string) (*gorm.DB, error) { return db.Open("sqlite", dsn) },
		func(slug string) string { return "file:" + t.Name() + "_" + slug + "?mode=memory&cache=shared" })
	r := NewResolver(master, NewCache(opener, time.Minute))
	ctx := context.Background()

	club, tdb, err := r.BySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", club.Name)
	assert.NotNil(t, tdb)

	_, _, err = r.ByID(ctx, club.ID)
	require.NoError(t, err)

	_, _, err = r.BySlug(ctx, "gone")
	assert.ErrorIs(t, err, ErrClubNotFound)
	_, _, err = r.ByID(ctx, 999)
	assert.ErrorIs(t, err, ErrClubNotFound)

	clubs, err := r.ActiveClubs(ctx)
	require.NoError(t, err)
	assert.Len(t, clubs, 1)
}

func TestDSNOpener_PrefersClubURL(t *testing.T) {
	var got string
	opener := DSNOpener(func(dsn string) (*gorm.DB, error) { got = dsn; return nil, nil },
		func(slug string) string { return "tmpl/" + slug })

	_, _ = opener(&domain.Club{Slug: "a", DatabaseURL: "own"})
	assert.Equal(t, "own", got)
	_, _ = opener(&domain.Club{Slug: "b"})
	assert.Equal(t, "tmpl/b", got)

	empty := DSNOpener(func(string) (*gorm.DB, error) { return nil, nil }, func(string) string { return "" })
	_, err := empty(&domain.Club{Slug: "c"})
	assert.Error(t, err)
}

func TestResolver_ProvisionAndEvict(t *testing.T) {
	master, err := db.Open("sqlite", "file:"+t.Name()+"_master?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.MigrateMaster(master))
	club := &domain.Club{Name: "New", Slug: "new", Active: true}
	require.NoError(t, master.Create(club).Error)

	opener := DSNOpener(func(dsn string) (*gorm.DB, error) { return db.Open("sqlite", dsn) },
		func(slug string) string { return "file:" + t.Name() + "_" + slug + "?mode=memory&cache=shared" })
	cache := NewCache(opener, time.Minute)
	r := NewResolver(master, cache)

	require.NoError(t, r.Provision(context.Background(), club))
	_, tdb, err := r.ByID(context.Background(), club.ID)
	require.NoError(t, err)
	assert.True(t, tdb.Migrator().HasTable(&domain.Purchase{}))

	assert.Equal(t, 1, cache.Len())
	r.Evict(club.ID)
	assert.Equal(t, 0, cache.Len())
	assert.False(t, cache.Evict(club.ID))
}
