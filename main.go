package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/isdelr/tasks-be/internal/api"
	"github.com/isdelr/tasks-be/internal/audit"
	"github.com/isdelr/tasks-be/internal/auth"
	"github.com/isdelr/tasks-be/internal/config"
	"github.com/isdelr/tasks-be/internal/database"
	"github.com/isdelr/tasks-be/internal/logger"
	"github.com/isdelr/tasks-be/internal/monitoring"
	"github.com/isdelr/tasks-be/internal/ratelimit"
	"github.com/isdelr/tasks-be/internal/services"
	"github.com/isdelr/tasks-be/internal/websocket"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	codec, err := auth.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token codec")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub(log)
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db)
	recorder := audit.NewRecorder(log, eventService)
	userService := services.NewUserService(db, codec, services.UserOptions{
		TokenTTL:    cfg.TokenTTL,
		BcryptCost:  cfg.BcryptCost,
		AdminEmails: cfg.AdminEmails,
	})
	taskService := services.NewTaskService(db, hub)

	// Background jobs
	scheduler := monitoring.NewScheduler(log)
	limiter, redisClient := newLimiter(cfg, log, scheduler)
	if redisClient != nil {
		defer redisClient.Close()
	}

	stats, err := monitoring.NewStatCollector(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize stat collector")
	}
	if err := scheduler.PruneEvery("@every 1h", "security-event-retention", eventService, cfg.SecurityEventRetention); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule security event retention")
	}
	if err := scheduler.Every("@every 15s", "process-stats", func() { stats.Collect() }); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule stat collection")
	}
	scheduler.Run()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
		TokenTTL:       cfg.TokenTTL,

		TrustProxyHeaders: cfg.TrustProxyHeaders,

		Resolver:       auth.NewResolver(codec, userService, recorder),
		Users:          userService,
		Tasks:          taskService,
		Events:         eventService,
		Recorder:       recorder,
		Hub:            hub,
		Limiter:        limiter,
		DB:             db,
		Stats:          stats,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
}

// newLimiter builds the auth rate limiter. With REDIS_ADDR set the counters
// live in Redis; otherwise they are kept in memory and swept every minute.
func newLimiter(cfg *config.Config, log zerolog.Logger, scheduler *monitoring.Scheduler) (*ratelimit.Limiter, *redis.Client) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("Rate limiting backed by Redis")
		store := ratelimit.NewRedisStore(client, "tasks:ratelimit:")
		return ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow, log), client
	}

	store := ratelimit.NewMemoryStore()
	if err := scheduler.SweepEvery("@every 1m", "ratelimit-sweep", store); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule rate limit sweep")
	}
	return ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow, log), nil
}
