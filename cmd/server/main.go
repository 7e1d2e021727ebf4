package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/moviesandme/internal/config"
	"github.com/Clark-Hu/moviesandme/internal/favorites"
	httpserver "github.com/Clark-Hu/moviesandme/internal/http"
	"github.com/Clark-Hu/moviesandme/internal/repository"
	"github.com/Clark-Hu/moviesandme/internal/session"
	"github.com/Clark-Hu/moviesandme/internal/store"
	"github.com/Clark-Hu/moviesandme/internal/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[filmdetail-api] ", log.LstdFlags|log.Lshortfile)

	var (
		st   *store.Store
		favs favorites.Store = favorites.NewMemoryStore()
	)
	if cfg.UsesDatabase() {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		st, err = store.New(dbCtx, cfg.DBURL, store.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger,
		})
		if err != nil {
			cancel()
			log.Fatalf("connect database: %v", err)
		}
		if err := st.Migrate(dbCtx); err != nil {
			cancel()
			log.Fatalf("migrate database: %v", err)
		}
		cancel()
		defer st.Close()
		favs = repository.New(st).Favorites
	} else {
		logger.Println("DB_URL not set, favorites kept in memory")
	}

	client, err := tmdb.NewHTTPClient(cfg.TMDBURL, cfg.TMDBAPIKey, tmdb.ClientOptions{
		Language: cfg.TMDBLanguage,
		Timeout:  time.Duration(cfg.TMDBTimeoutSecs) * time.Second,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("init tmdb client: %v", err)
	}

	var cache tmdb.DetailCache
	if cfg.UsesRedis() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Printf("redis at %s unreachable, detail cache disabled: %v", cfg.RedisAddr, err)
			_ = rdb.Close()
		} else {
			logger.Printf("detail cache on redis %s", cfg.RedisAddr)
			cache = tmdb.NewRedisCache(rdb)
			defer rdb.Close()
		}
		cancel()
	}
	fetcher := tmdb.NewCachedFetcher(client, cache, time.Duration(cfg.DetailCacheTTLSecs)*time.Second, logger)

	registry := session.NewRegistry(session.Options{
		Favorites: favs,
		Fetcher:   fetcher,
		TTL:       time.Duration(cfg.ViewTTLSecs) * time.Second,
		Logger:    logger,
	})
	go registry.Run(ctx, time.Duration(cfg.ViewSweepSecs)*time.Second)

	server := httpserver.New(cfg, st, registry, tmdb.NewImageResolver(cfg.TMDBImageURL), logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
	registry.CloseAll()
}
