package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/auth"
	"github.com/sujalbistaa/allgood/internal/cache"
	"github.com/sujalbistaa/allgood/internal/config"
	"github.com/sujalbistaa/allgood/internal/db"
	"github.com/sujalbistaa/allgood/internal/geo"
	"github.com/sujalbistaa/allgood/internal/geocode"
	routes "github.com/sujalbistaa/allgood/internal/http"
	"github.com/sujalbistaa/allgood/internal/logging"
	"github.com/sujalbistaa/allgood/internal/metrics"
	"github.com/sujalbistaa/allgood/internal/moderation"
	"github.com/sujalbistaa/allgood/internal/service"
	"github.com/sujalbistaa/allgood/internal/store"
	"github.com/sujalbistaa/allgood/internal/ws"
)

func main() {
	// .env is optional; production sets the environment directly.
	envErr := godotenv.Load()

	conf, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: conf.Logger.Level, Dev: conf.Logger.Dev})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if envErr != nil {
		logger.Info("No .env file found, reading from environment")
	}

	if err := run(conf, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("Server exiting")
}

func run(conf *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Database
	database, err := db.Init(conf.Database, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	defer sqlDB.Close()

	logger.Info("Running database migrations...")
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Migrations complete.")

	// 2. WebSocket hub and user feed
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(logger)
	go hub.Run(hubCtx)
	users := ws.NewUserFeed()

	// 3. Collaborators
	m := metrics.New(conf.Metrics.Enabled)
	feedCache := cache.WithMetrics(cache.New(conf.Cache.Enabled, conf.Cache.SizeMB, conf.Cache.TTL, logger), m)
	issuer := auth.NewIssuer(conf.Auth.JWTSecret, conf.Auth.TokenTTL)

	var moderator service.Moderator = moderation.AllowAll{}
	if conf.Moderation.URL != "" {
		moderator = moderation.NewClient(conf.Moderation.URL, conf.Moderation.APIKey, conf.Moderation.Timeout)
	} else {
		logger.Warn("MODERATION_URL not set, all text is accepted")
	}

	var geocoder service.Geocoder = geocode.Disabled{}
	if conf.Geocoder.URL != "" {
		geocoder = geocode.NewClient(conf.Geocoder.URL, conf.Geocoder.UserAgent, conf.Geocoder.Timeout)
	} else {
		logger.Warn("GEOCODER_URL not set, posts will have no location string")
	}

	svc := service.New(service.Deps{
		Store:     store.New(database, store.NewIDGenerator(conf.Posts.SnowflakeNode)),
		Moderator: moderator,
		Geocoder:  geocoder,
		Events:    ws.NewNotifier(hub, users, logger),
		Tokens:    issuer,
		Fuzzer:    geo.NewFuzzer(nil),
		Metrics:   m,
		Clock:     clockwork.NewRealClock(),
		Log:       logger,
	}, service.Options{
		FuzzRadiusMeters: conf.Posts.FuzzRadiusMeters,
		DailyLimit:       conf.Posts.DailyLimit,
		Location:         conf.Location,
	})

	// 4. Router
	if !conf.Logger.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupRoutes(ctx, router, &routes.Env{
		Svc:    svc,
		Tokens: issuer,
		Hub:    hub,
		Users:  users,
		Cache:  feedCache,
		Log:    logger,
	}, routes.Options{
		CorsOrigin: conf.Server.CorsOrigin,
		AdminToken: conf.Server.AdminToken,
		Metrics:    m,
	})

	// 5. Server with graceful shutdown
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("app", conf.AppName), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	stopHub()
	return nil
}
