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
	"go.uber.org/zap"

	"github.com/noah-isme/warga-api/internal/handler"
	"github.com/noah-isme/warga-api/internal/repository"
	"github.com/noah-isme/warga-api/internal/service"
	"github.com/noah-isme/warga-api/pkg/cache"
	"github.com/noah-isme/warga-api/pkg/config"
	"github.com/noah-isme/warga-api/pkg/database"
	"github.com/noah-isme/warga-api/pkg/logger"
)

// @title Warga API
// @version 1.0.0
// @description Resident registry with change request review and audit trail
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	location, err := time.LoadLocation(cfg.Export.Location)
	if err != nil {
		logr.Warn("unknown export location, using UTC", zap.String("location", cfg.Export.Location), zap.Error(err))
		location = time.UTC
	}

	residentRepo := repository.NewResidentRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	txManager := database.NewTxManager(db)

	checks := map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)}

	metricsSvc := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient)
		cacheRepo = redisRepo
		checks["redis"] = redisRepo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled && cacheRepo != nil)
	validate := service.NewValidator()

	auditSvc := service.NewAuditService(auditRepo, metricsSvc, logr, service.WithAuditLocation(location))
	residentSvc := service.NewResidentService(residentRepo, userRepo, auditSvc, txManager, cacheSvc, validate, logr)
	changeRequestSvc := service.NewChangeRequestService(
		changeRequestRepo, residentRepo, auditSvc, txManager, cacheSvc, metricsSvc, validate, logr,
		service.WithChangeRequestPageSize(cfg.ChangeRequest.PageSize),
	)
	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	dashboardSvc := service.NewDashboardService(analyticsRepo, changeRequestRepo, cacheSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
		Location: location,
	})
	exportSvc := service.NewExportService(residentRepo, nil, nil, logr, service.ExportConfig{
		PDFTitle: cfg.Export.PDFTitle,
		Location: location,
	})

	r := newRouter(cfg, logr, metricsSvc, authSvc, routeHandlers{
		auth:          handler.NewAuthHandler(authSvc),
		residents:     handler.NewResidentHandler(residentSvc, exportSvc),
		changeRequest: handler.NewChangeRequestHandler(changeRequestSvc),
		audit:         handler.NewAuditHandler(auditSvc),
		dashboard:     handler.NewDashboardHandler(dashboardSvc),
		metrics:       handler.NewMetricsHandler(metricsSvc, checks, logr),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
