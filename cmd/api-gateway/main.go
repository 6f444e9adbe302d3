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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-grievance-api/api/swagger"
	"github.com/noah-isme/campus-grievance-api/internal/handler"
	"github.com/noah-isme/campus-grievance-api/internal/middleware"
	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/internal/repository"
	"github.com/noah-isme/campus-grievance-api/internal/service"
	"github.com/noah-isme/campus-grievance-api/pkg/cache"
	"github.com/noah-isme/campus-grievance-api/pkg/config"
	"github.com/noah-isme/campus-grievance-api/pkg/database"
	"github.com/noah-isme/campus-grievance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-grievance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-grievance-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-grievance-api/pkg/ratelimit"
	"github.com/noah-isme/campus-grievance-api/pkg/storage"
)

// @title Campus Grievance API
// @version 1.0.0
// @description Grievance lifecycle tracking for a multi-campus institution
// @BasePath /
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck
	pool := database.NewPool(db, cfg.Database)

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	pool.SetObserver(metrics.ObserveDBQuery)

	adminRepo := repository.NewAdminRepository(db)
	grievanceRepo := repository.NewGrievanceRepository(pool)
	trackingRepo := repository.NewTrackingRepository(pool)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	audit := service.NewAuditService(adminRepo, cfg.Audit, logr)
	audit.Start(ctx)
	defer audit.Stop()

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Tracking.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(adminRepo, audit, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	trackingSvc := service.NewTrackingService(trackingRepo, cacheSvc, audit, metrics, validate, logr)
	grievanceSvc := service.NewGrievanceService(grievanceRepo, audit, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	grievanceHandler := handler.NewGrievanceHandler(grievanceSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	trackingHandler := handler.NewTrackingHandler(trackingSvc, nil)
	if cfg.Exports.Enabled {
		store, err := storage.NewExportStore(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare exports directory", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(trackingSvc, store, signer, audit, logr)
		trackingHandler = handler.NewTrackingHandler(trackingSvc, exportSvc)
	}

	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, "tracking", cfg.Tracking.RateLimitBurst, time.Minute)
	} else {
		bucket := ratelimit.NewTokenBucket(cfg.Tracking.RateLimitBurst, cfg.Tracking.RateLimitRefill)
		bucket.Start(ctx)
		defer bucket.Stop()
		limiter = bucket
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := pool.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "pool": pool.Status()})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	// Filing is proxied from the student portal, which authenticates
	// students upstream.
	api.POST("/grievances", grievanceHandler.Create)

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc), middleware.AnyAdmin())
	{
		admin.GET("/grievances", grievanceHandler.List)
		admin.GET("/grievances/:id",
			middleware.Audit(audit, models.AuditActionGrievanceView, "grievance"),
			grievanceHandler.Get)

		admin.GET("/tracking/:grievanceId", trackingHandler.History)
		admin.GET("/tracking/:grievanceId/status", trackingHandler.Status)
		admin.GET("/tracking/:grievanceId/export", trackingHandler.Export)

		// Tracking writes emit their own audit entries from the service,
		// so only rate limiting wraps them here.
		writes := admin.Group("")
		writes.Use(middleware.RateLimit(limiter, logr))
		{
			writes.POST("/tracking", trackingHandler.Create)
			writes.POST("/tracking/:grievanceId/redirect", trackingHandler.Redirect)
		}
	}
	api.GET("/exports/download", trackingHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("forced shutdown", "error", err)
	}
}
