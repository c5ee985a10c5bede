package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sjsage522/specialsworker/config"
	"sjsage522/specialsworker/internal"
	"sjsage522/specialsworker/internal/crawler"
	"sjsage522/specialsworker/logger"
	"sjsage522/specialsworker/services/cache"
	"sjsage522/specialsworker/services/publisher"
	"sjsage522/specialsworker/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	cfg := config.LoadConfig()

	configFile := flag.String("config", cfg.ConfigFile, "path to the YAML options file")
	debug := flag.Bool("debug", cfg.Debug, "log every page fetch and skipped fragment")
	schedule := flag.String("schedule", cfg.Schedule, "cron expression; empty runs a single crawl")
	flag.Parse()

	cfg.ConfigFile = *configFile
	cfg.Debug = *debug
	cfg.Schedule = *schedule
	if cfg.Debug {
		logger.SetDebug(true)
	}

	missing, invalid, err := cfg.ApplyFile(cfg.ConfigFile)
	if err != nil {
		log.Debug().Err(err).Msg("Options file not applied, using defaults")
	}
	if len(missing) > 0 {
		log.Debug().Strs("missing", missing).Str("file", cfg.ConfigFile).Msg("Options file incomplete, using defaults for missing keys")
	}
	if len(invalid) > 0 {
		log.Debug().Strs("invalid", invalid).Str("file", cfg.ConfigFile).Msg("Options file has unusable values, using defaults for them")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("site", cfg.SiteURL).
		Int("max_pages", cfg.MaxPageNumber).
		Dur("page_delay", cfg.PageDelay).
		Dur("retry_delay", cfg.RetryDelay).
		Str("schedule", cfg.Schedule).
		Msg("Starting application")

	// Cancel on interrupt so an in-flight crawl stops between pages
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	reporters := crawler.MultiReporter{crawler.NewConsoleReporter(os.Stdout)}
	if services.Publisher != nil {
		reporters = append(reporters, crawler.NewPublishingReporter(services.Publisher))
	}

	driver, err := crawler.CreateDriver(cfg, internal.Dependencies{
		Cache:     services.Cache,
		Publisher: services.Publisher,
	}, reporters)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create crawl driver")
	}

	w := worker.NewWorker(ctx, driver, services.Publisher, cfg.Schedule)
	if err := w.Start(); err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("Shutting down gracefully...")
			return
		}
		log.Error().Err(err).Msg("Worker exited with error")
		services.Cleanup()
		os.Exit(1)
	}

	log.Info().Msg("Worker exited normally")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
		s.Publisher = nil
	}
}

// initializeServices connects the optional backing services. Memcached and Redis are
// both optional: without memcached rate limit blocks live in memory, without Redis
// deals are only printed.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcacheService.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable, using in-memory cache: %v", cfg.MemcacheAddr, err)
			services.Cache = cache.NewMemoryCache()
		} else {
			services.Cache = memcacheService
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	} else {
		services.Cache = cache.NewMemoryCache()
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			logger.Warn("Redis at %s unreachable, deals will not be published: %v", cfg.RedisAddr, err)
			redisPublisher.Close()
		} else {
			services.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services
}
