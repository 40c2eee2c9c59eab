package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"kitsusync/internal/cache"
	"kitsusync/internal/config"
	"kitsusync/internal/ingestion/kitsu"
	"kitsusync/internal/logging"
)

func main() {
	base := logging.Base()

	cfg, err := config.LoadConfig()
	if err != nil {
		base.Fatal().Err(err).Msg("Could not load config")
	}
	if err := cfg.Validate(); err != nil {
		base.Fatal().Err(err).Msg("Invalid config")
	}

	logging.Configure(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "kitsu-sync"})
	log := logging.WithComponent("main")

	// run owns every deferred close, so they all happen before a fatal exit
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Kitsu sync service failed")
	}
}

func run(cfg *config.Config) error {
	log := logging.WithComponent("main")
	log.Info().Msg("=== Kitsu Sync Service ===")

	// Connect to database
	gormLogLevel := gormlogger.Silent
	if cfg.IsDevelopment() {
		gormLogLevel = gormlogger.Warn
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	defer sqlDB.Close()

	store := kitsu.NewGormStore(db)
	if err := store.Migrate(); err != nil {
		return err
	}
	log.Info().Msg("Connected to database")

	// The slug cache is optional
	var slugCache kitsu.SlugCache
	animeCache, err := cache.NewAnimeCache(cache.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, running without slug cache")
	} else {
		defer animeCache.Close()
		slugCache = animeCache
	}

	clientLog := logging.WithComponent("kitsu-client")
	client := kitsu.NewClient(kitsu.ClientConfig{
		APIURL:      cfg.KitsuAPIURL,
		AccessToken: cfg.KitsuAccessToken,
		Logger:      &clientLog,
		RateLimiter: rate.NewLimiter(rate.Limit(2), cfg.RateConcurrency),
	})

	syncService := kitsu.NewSyncService(kitsu.SyncConfig{
		UserID:      cfg.KitsuUserID,
		Username:    cfg.KitsuUsername,
		BaseURL:     cfg.KitsuBaseURL,
		PageLimit:   cfg.PageLimit,
		WorkerCount: cfg.SyncWorkers,
	}, client, store, slugCache, logging.WithComponent("kitsu-sync"))

	logLinks(syncService)

	// Setup context with cancellation
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runSync(ctx, syncService)

	if cfg.SyncInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", cfg.SyncInterval).Msg("Kitsu sync service running. Press Ctrl+C to stop.")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Kitsu sync service stopped")
			return nil
		case <-ticker.C:
			runSync(ctx, syncService)
		}
	}
}

func logLinks(syncService *kitsu.SyncService) {
	links := syncService.SiteLinks()
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)

	log := logging.WithComponent("main")
	event := log.Info()
	for _, name := range names {
		event = event.Str(name, links[name])
	}
	event.Msg("Kitsu links")
}

func runSync(ctx context.Context, syncService *kitsu.SyncService) {
	log := logging.WithComponent("main")

	result, err := syncService.RunLibrarySync(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("Library sync cancelled")
	case err != nil:
		log.Error().Err(err).Msg("Library sync failed")
	default:
		log.Info().Str("run_id", result.RunID).Int("synced", result.Synced).Int("failed", result.Failed).Msg("Library sync finished")
	}
}
