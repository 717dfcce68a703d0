package db

import (
	"testing"

	"clube_beneficios/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestMigrateAndSeed(t *testing.T) {
	master, err := Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, MigrateMaster(master))
	require.NoError(t, MigrateTenant(master)) // Both schemas can live in one sqlite file

	created, err := SeedSuperAdmin(master, " Root@Example.com ", "password123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = SeedSuperAdmin(master, "root@example.com", "password123")
	require.NoError(t, err)
	assert.False(t, created, "second seed is a no-op")

	var count int64
	require.NoError(t, master.Model(&domain.SuperAdmin{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = SeedSuperAdmin(master, "x@example.com", "short")
	assert.Error(t, err)
}
