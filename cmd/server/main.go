package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/cache"
	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/events"
	"github.com/oggyb/muzz-connect/internal/httpapi"
	"github.com/oggyb/muzz-connect/internal/logger"
	"github.com/oggyb/muzz-connect/internal/region"
	"github.com/oggyb/muzz-connect/internal/server"
	"github.com/oggyb/muzz-connect/internal/service/chat"
	"github.com/oggyb/muzz-connect/internal/service/discovery"
	"github.com/oggyb/muzz-connect/internal/service/match"
	"github.com/oggyb/muzz-connect/internal/storage"
	"github.com/oggyb/muzz-connect/internal/translation"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init storage
	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to init storage", "driver", cfg.DB.Driver, "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(context.Background()); err != nil {
			log.Warn("failed to close storage", "err", err)
		}
	}()

	// Init Redis; the services run without it, just uncached
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("redis unavailable, liked-you counts will not be cached", "addr", cfg.Redis.Addr, "err", err)
		_ = redisCache.Close()
		redisCache = nil
	}
	defer redisCache.Close()

	rules, err := region.Load(cfg.Region.RulesFile)
	if err != nil {
		log.Error("failed to load region rules", "file", cfg.Region.RulesFile, "err", err)
		os.Exit(1)
	}

	translator, err := translation.New(cfg)
	if err != nil {
		log.Error("failed to init translator", "provider", cfg.Translation.Provider, "err", err)
		os.Exit(1)
	}
	if err := translation.Warm(ctx, translator); err != nil {
		// SupportsLocales stays permissive; the provider rejects pairs itself
		log.Warn("failed to load translation languages", "provider", translator.Name(), "err", err)
	}

	appCtx := app.New(cfg, backend.Repos, redisCache, log)
	appCtx.Regions = rules
	appCtx.Translator = translator
	if cfg.Events.Publisher == "redis" && redisCache != nil {
		appCtx.Publisher = events.NewRedisPublisher(redisCache.Client)
	}

	if cfg.App.Seed {
		if profiles, err := backend.Seed(ctx, 10); err != nil {
			log.Error("failed to seed", "err", err)
		} else {
			log.Info("seeded demo profiles", "count", len(profiles))
		}
	}

	grpcServer := server.NewGRPCServer(log,
		discovery.NewRegistrar(appCtx),
		match.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx),
	)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(appCtx),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		if err := server.StartGRPCServer(cfg, grpcServer); err != nil {
			if groupCtx.Err() != nil {
				return nil
			}
			return err
		}
		return nil
	})

	group.Go(func() error {
		log.Info("starting HTTP gateway", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown error", "err", err)
		}
		grpcServer.GracefulStop()

		log.Info("graceful shutdown completed")
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}
