// Package storage picks the repository backend once, at startup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/repository/memory"
	"github.com/oggyb/muzz-connect/internal/repository/mongostore"
)

// Backend is the selected repository set plus the connections behind it.
type Backend struct {
	Repos *repository.Set
	// DB is nil for the memory driver.
	DB    *gorm.DB
	Mongo *mongo.Client
}

// Open builds the backend named by DB_DRIVER (mysql | sqlite | memory).
// With MONGODB_PROFILES set, profiles are served from MongoDB instead.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	b := &Backend{}

	switch cfg.DB.Driver {
	case "memory":
		b.Repos = memory.NewSet()
		log.Warn("using in-memory storage; data is lost on restart")
	case "mysql", "sqlite":
		database, err := db.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		b.DB = database
		b.Repos = repository.NewGormSet(database)
		log.Info("storage ready", "driver", cfg.DB.Driver)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	if cfg.Mongo.Profiles {
		client, err := mongostore.Connect(ctx, cfg)
		if err != nil {
			_ = b.Close(ctx)
			return nil, err
		}
		b.Mongo = client

		profiles := mongostore.NewProfileRepository(client.Database(cfg.Mongo.Database))
		if err := profiles.EnsureIndexes(ctx); err != nil {
			_ = b.Close(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		b.Repos.Profiles = profiles
		log.Info("profiles served from mongodb", "database", cfg.Mongo.Database)
	}

	return b, nil
}

// Seed loads demo profiles into whichever store serves profiles.
//
// Behavior:
//   - Profiles in SQL: the tables are reset and refilled (db.SeedProfiles).
//   - Otherwise (memory, MongoDB): profiles are saved through the profile
//     repository; a profile whose email is already stored keeps its id and is
//     replaced, so seeding twice does not duplicate anyone.
func (b *Backend) Seed(ctx context.Context, perCity int) ([]db.Profile, error) {
	if b.DB != nil && b.Mongo == nil {
		return db.SeedProfiles(b.DB, perCity)
	}

	profiles := db.DemoProfiles(perCity)
	for i := range profiles {
		p := &profiles[i]
		existing, err := b.Repos.Profiles.GetByEmail(ctx, p.Email)
		switch {
		case err == nil:
			p.ID = existing.ID
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("seed lookup %s: %w", p.Email, err)
		}
		if err := b.Repos.Profiles.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("seed profile %s: %w", p.Email, err)
		}
	}
	return profiles, nil
}

// Close releases every connection the backend opened.
func (b *Backend) Close(ctx context.Context) error {
	var firstErr error
	if b.Mongo != nil {
		if err := b.Mongo.Disconnect(ctx); err != nil {
			firstErr = err
		}
	}
	if b.DB != nil {
		if sqlDB, err := b.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
