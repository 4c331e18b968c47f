// Package servicetest wires an AppContext for service tests: in-memory or
// SQLite repositories, miniredis, built-in region rules and a fixed clock.
package servicetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/cache"
	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/events"
	applog "github.com/oggyb/muzz-connect/internal/logger"
	"github.com/oggyb/muzz-connect/internal/region"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/repository/memory"
	"github.com/oggyb/muzz-connect/internal/repository/repotest"
)

// Env is a ready AppContext plus handles tests poke at.
type Env struct {
	App      *app.AppContext
	Events   *events.Recorder
	Redis    *miniredis.Miniredis
	Profiles repository.ProfileRepository
}

// Backend builds a repository.Set for a test.
type Backend func(t *testing.T) *repository.Set

// Memory is the process-local backend.
func Memory(t *testing.T) *repository.Set {
	return memory.NewSet()
}

// SQLite opens a private in-memory SQLite database with the schema migrated.
func SQLite(t *testing.T) *repository.Set {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormCfg := db.Config(logger.Silent)
	gormCfg.SkipDefaultTransaction = true
	database, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return repository.NewGormSet(database)
}

// Backends lists every backend service tests should pass on.
var Backends = map[string]Backend{
	"memory": Memory,
	"sqlite": SQLite,
}

// New wires an Env over the given backend. The clock is fixed at repotest.Base.
func New(t *testing.T, backend Backend) *Env {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{}
	cfg.App.ENV = "test"
	cfg.Redis.Addr = mr.Addr()
	cfg.Translation.Enabled = true
	cfg.Translation.Timeout = time.Second

	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { rc.Close() })

	rules, err := region.Load("")
	require.NoError(t, err)

	repos := backend(t)
	recorder := &events.Recorder{}

	appCtx := app.New(cfg, repos, rc, applog.Discard())
	appCtx.Regions = rules
	appCtx.Publisher = recorder
	appCtx.Clock = func() time.Time { return repotest.Base }

	return &Env{App: appCtx, Events: recorder, Redis: mr, Profiles: repos.Profiles}
}

// Save stores profiles, failing the test on error.
func (e *Env) Save(t *testing.T, profiles ...*db.Profile) {
	t.Helper()
	for _, p := range profiles {
		require.NoError(t, e.Profiles.Save(context.Background(), p))
	}
}
