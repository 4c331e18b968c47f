package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/logger"
	"github.com/oggyb/muzz-connect/internal/repository/memory"
)

func TestOpenMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "memory"

	b, err := Open(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, b.DB)
	assert.IsType(t, &memory.ProfileStore{}, b.Repos.Profiles)
	assert.NoError(t, b.Close(context.Background()))
}

func TestOpenSQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = filepath.Join(t.TempDir(), "muzz.db")

	b, err := Open(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	require.NotNil(t, b.DB)
	assert.True(t, b.DB.Migrator().HasTable("decisions"))
	assert.True(t, b.DB.Migrator().HasTable("conversations"))
	assert.NoError(t, b.Close(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "oracle"

	_, err := Open(context.Background(), cfg, logger.Discard())
	assert.Error(t, err)
}

func TestSeedThroughProfileRepository(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	cfg.DB.Driver = "memory"
	b, err := Open(ctx, cfg, logger.Discard())
	require.NoError(t, err)

	first, err := b.Seed(ctx, 2)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	stored, err := b.Repos.Profiles.GetByEmail(ctx, first[0].Email)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, stored.ID)

	// seeding again replaces by email instead of failing on duplicates
	second, err := b.Seed(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestSeedSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = filepath.Join(t.TempDir(), "muzz.db")
	b, err := Open(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(ctx) })

	profiles, err := b.Seed(ctx, 2)
	require.NoError(t, err)

	var count int64
	require.NoError(t, b.DB.Table("profiles").Count(&count).Error)
	assert.Equal(t, int64(len(profiles)), count)
}
