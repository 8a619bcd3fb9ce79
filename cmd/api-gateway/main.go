package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/noah-isme/coliving-calendar-api/api/swagger"
	"github.com/noah-isme/coliving-calendar-api/internal/handler"
	internalmiddleware "github.com/noah-isme/coliving-calendar-api/internal/middleware"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/internal/repository"
	"github.com/noah-isme/coliving-calendar-api/internal/service"
	"github.com/noah-isme/coliving-calendar-api/pkg/cache"
	"github.com/noah-isme/coliving-calendar-api/pkg/config"
	"github.com/noah-isme/coliving-calendar-api/pkg/database"
	"github.com/noah-isme/coliving-calendar-api/pkg/export"
	"github.com/noah-isme/coliving-calendar-api/pkg/feedtoken"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
	"github.com/noah-isme/coliving-calendar-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coliving-calendar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coliving-calendar-api/pkg/middleware/requestid"
	"github.com/noah-isme/coliving-calendar-api/pkg/storage"
)

// @title Coliving Calendar API
// @version 1.0.0
// @description iCalendar feeds and availability management for coliving apartments.
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("postgres unavailable", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Feeds.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, feed cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	apartmentRepo := repository.NewApartmentRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	exports, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("exports storage unavailable", zap.Error(err))
	}

	window := service.WindowPolicy{LookbackDays: cfg.Feeds.LookbackDays, HorizonDays: cfg.Feeds.HorizonDays}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, logr, service.CacheConfig{
		Enabled:    cfg.Feeds.CacheEnabled && redisClient != nil,
		DefaultTTL: cfg.Feeds.CacheTTL,
		Namespace:  "coliving",
	})
	builder := ical.NewBuilder(ical.Config{
		ProductID:       cfg.Calendar.ProductID,
		Timezone:        cfg.Calendar.Timezone,
		RefreshInterval: cfg.Calendar.RefreshInterval,
		UIDDomain:       cfg.Calendar.UIDDomain,
	})
	feedSvc := service.NewFeedService(apartmentRepo, availabilityRepo, bookingRepo, cacheSvc, builder, metricsSvc, logr, service.FeedConfig{
		Window:          window,
		CacheTTL:        cfg.Feeds.CacheTTL,
		SkipInvalid:     cfg.Feeds.SkipInvalid,
		DefaultTimezone: cfg.Calendar.Timezone,
	})
	availabilitySvc := service.NewAvailabilityService(apartmentRepo, availabilityRepo, feedSvc, window, validate, logr)
	feedTokenSvc := service.NewFeedTokenService(feedtoken.NewSigner(cfg.Feeds.TokenSecret, cfg.Feeds.TokenTTL), apartmentRepo, validate, logr, service.FeedTokenConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		APIPrefix:     cfg.APIPrefix,
	})
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, validate, logr, bcrypt.DefaultCost)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	reportSvc := service.NewReportService(availabilitySvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	warmer := service.NewFeedWarmer(feedSvc, apartmentRepo, exports, service.FeedWarmerConfig{
		Schedule:  cfg.Feeds.WarmSchedule,
		Workers:   cfg.Feeds.WarmWorkers,
		Retries:   cfg.Exports.Retries,
		Retention: cfg.Exports.Retention,
	}, logr)
	if err := warmer.Start(ctx); err != nil {
		logr.Fatal("feed warmer failed to start", zap.Error(err))
	}

	feedHandler := handler.NewFeedHandler(feedSvc, logr)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, reportSvc)
	feedTokenHandler := handler.NewFeedTokenHandler(feedTokenSvc)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeySvc)
	exportHandler := handler.NewExportHandler(exports)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": db,
		"redis":    handler.PingerFunc(cacheRepo.Ping),
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	feeds := api.Group("/feeds/apartments/:id")
	feeds.GET("/availability.ics", internalmiddleware.FeedAccess(feedTokenSvc, apiKeySvc, models.FeedModeAvailability), feedHandler.Availability)
	feeds.GET("/bookings.ics", internalmiddleware.FeedAccess(feedTokenSvc, apiKeySvc, models.FeedModeBookings), feedHandler.Bookings)
	feeds.GET("/calendar.ics", internalmiddleware.FeedAccess(feedTokenSvc, apiKeySvc, models.FeedModeCalendar), feedHandler.Calendar)

	admin := api.Group("/admin")
	admin.Use(internalmiddleware.JWT(authSvc), internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	apartments := admin.Group("/apartments/:id")
	apartments.GET("/availability", availabilityHandler.Ranges)
	apartments.GET("/availability/report", availabilityHandler.Report)
	apartments.POST("/blocks", availabilityHandler.Block)
	apartments.DELETE("/blocks", availabilityHandler.Unblock)
	apartments.POST("/feed-tokens", feedTokenHandler.Issue)

	admin.GET("/api-keys", apiKeyHandler.List)
	admin.POST("/api-keys", apiKeyHandler.Create)
	admin.DELETE("/api-keys/:id", apiKeyHandler.Revoke)
	admin.GET("/metrics/summary", metricsHandler.Summary)
	admin.GET("/exports", exportHandler.List)
	admin.GET("/exports/*path", exportHandler.Download)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	warmer.Stop()
}
