package app

import (
	"log/slog"
	"time"

	"github.com/oggyb/muzz-connect/internal/cache"
	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/events"
	"github.com/oggyb/muzz-connect/internal/region"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/translation"
)

// AppContext holds shared dependencies (repositories, Redis, policy, logger, etc.)
type AppContext struct {
	Config     *config.Config
	Repos      *repository.Set
	RedisCache *cache.RedisCache
	Regions    region.Provider
	Translator translation.Translator
	Publisher  events.Publisher
	Logger     *slog.Logger

	// Clock is overridable in tests. Always UTC.
	Clock func() time.Time
}

// New creates a new AppContext. Nil optional collaborators get safe defaults:
// built-in region rules, the noop translator and a log-only publisher.
func New(cfg *config.Config, repos *repository.Set, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &AppContext{
		Config:     cfg,
		Repos:      repos,
		RedisCache: rdb,
		Regions:    region.NewRules(region.Defaults, nil),
		Translator: translation.Noop{},
		Publisher:  events.NewLogPublisher(logger),
		Logger:     logger,
		Clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Now returns the current time from Clock.
func (a *AppContext) Now() time.Time {
	if a.Clock == nil {
		return time.Now().UTC()
	}
	return a.Clock().UTC()
}
