package repository_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/repository/repotest"
)

// setupTestDB opens an isolated in-memory SQLite database with the schema migrated.
// One connection only: concurrent tests serialize through it like they would on a row lock.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormCfg := db.Config(logger.Silent)
	gormCfg.SkipDefaultTransaction = true
	database, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), gormCfg)
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

func TestGormRepositories(t *testing.T) {
	repotest.Run(t, func(t *testing.T) *repository.Set {
		return repository.NewGormSet(setupTestDB(t))
	})
}

func TestEnsureDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewDecisionRepository(dbase)

	pair := db.NewPair("u1", "u2")
	for i := 0; i < 3; i++ {
		_, err := repo.Ensure(ctx, db.NewPair("u2", "u1"))
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, dbase.Model(&db.Decision{}).Where("pair_key = ?", pair.Key).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMatchIDIsUnique(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)

	// bypassing GetOrCreate, the schema itself rejects a second conversation per match
	require.NoError(t, dbase.WithContext(ctx).Create(&db.Conversation{ID: "c1", MatchID: "m1", UserLo: "a", UserHi: "b"}).Error)
	err := dbase.WithContext(ctx).Create(&db.Conversation{ID: "c2", MatchID: "m1", UserLo: "a", UserHi: "b"}).Error
	assert.Error(t, err)
}

func TestFindNearbyBirthdateBoundaries(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProfileRepository(setupTestDB(t))

	today := repotest.Base
	turns18Today := repotest.Profile("eighteen", "female", 0, 0.01, 0)
	turns18Today.BirthDate = time.Date(2008, 3, 1, 23, 30, 0, 0, time.UTC)
	turns18Tomorrow := repotest.Profile("seventeen", "female", 0, 0.01, 0)
	turns18Tomorrow.BirthDate = time.Date(2008, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, p := range []*db.Profile{turns18Today, turns18Tomorrow} {
		require.NoError(t, repo.Save(ctx, p))
	}

	hits, err := repo.FindNearby(ctx, repository.NearbyQuery{
		RadiusKm: 10,
		Region:   "us-east",
		MinBirth: today.AddDate(-41, 0, 0).Truncate(24 * time.Hour),
		MaxBirth: today.AddDate(-18, 0, 0).Truncate(24 * time.Hour),
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "eighteen", hits[0].Profile.ID)
}
