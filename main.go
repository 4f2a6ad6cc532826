package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/cinemagoworker/config"
	"sjsage522/cinemagoworker/internal/crawler"
	"sjsage522/cinemagoworker/internal/pipeline"
	"sjsage522/cinemagoworker/logger"
	"sjsage522/cinemagoworker/services/cache"
	"sjsage522/cinemagoworker/services/publisher"
	"sjsage522/cinemagoworker/services/storage"
	"sjsage522/cinemagoworker/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Load and validate configuration
	cfg := config.LoadConfig()

	// Initialize logger first
	logger.InitWithFile(logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	log := logger.Default

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	loc, err := time.LoadLocation(cfg.SiteTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.SiteTimezone).Msg("Invalid site timezone")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("site", cfg.SiteURL).
		Str("publisher", cfg.Publisher).
		Msg("Starting application")

	if !cfg.IsProduction() {
		log.Debug().
			Int("concurrency", cfg.SpiderConcurrency).
			Dur("fetch_timeout", cfg.FetchTimeout).
			Dur("rate_limit_block", cfg.RateLimitBlock).
			Bool("auto_migrate", cfg.DBAutoMigrate).
			Msg("Development settings")
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal, finishing fetched pages")
		cancel()
	}()

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	c := crawler.CreateCrawler(&cfg, services.Cache)
	p := pipeline.Standard(services.Store, loc, nil)
	w := worker.NewWorker(c, p, services.Store, services.Publisher)

	report, err := w.Run(ctx)
	if err != nil {
		log.Error().Err(err).Str("run_id", report.RunID).Msg("Worker exited with error")
		services.Cleanup()
		os.Exit(1)
	}

	log.Info().Str("run_id", report.RunID).Msg("Worker exited normally")
}

// Services holds all the initialized services
type Services struct {
	Store     storage.Store
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
		s.Publisher = nil
	}
	if s.Store != nil {
		s.Store.Close()
		s.Store = nil
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	store, err := storage.Open(ctx, cfg.DatabaseURI, storage.Options{
		MaxConns:      cfg.DBMaxConns,
		RetryAttempts: cfg.DBRetryAttempts,
		RetryBackoff:  cfg.DBRetryBackoff,
	})
	if err != nil {
		return nil, err
	}
	services.Store = store
	logger.Info("Connected to %s database", store.Dialect())

	if cfg.DBAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			services.Cleanup()
			return nil, err
		}
		logger.Info("Database schema is up to date")
	}

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcache.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable, rate limit marker may not be shared: %v", cfg.MemcacheAddr, err)
		} else {
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
		services.Cache = memcache
	} else {
		services.Cache = cache.NewMemoryCache()
		logger.Info("Using in-process cache")
	}

	// Initialize publisher
	pub, err := publisher.New(cfg)
	if err != nil {
		services.Cleanup()
		return nil, err
	}
	services.Publisher = pub
	logger.Info("Publishing stored showtimes via %s", cfg.Publisher)

	return services, nil
}
