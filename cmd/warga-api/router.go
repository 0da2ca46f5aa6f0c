package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/warga-api/api/swagger"
	"github.com/noah-isme/warga-api/internal/handler"
	"github.com/noah-isme/warga-api/internal/middleware"
	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/internal/service"
	"github.com/noah-isme/warga-api/pkg/config"
	"github.com/noah-isme/warga-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/warga-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/warga-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth          *handler.AuthHandler
	residents     *handler.ResidentHandler
	changeRequest *handler.ChangeRequestHandler
	audit         *handler.AuditHandler
	dashboard     *handler.DashboardHandler
	metrics       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, tokens middleware.TokenValidator, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.ResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)

	api.GET("/public/stats", h.dashboard.PublicStats)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.POST("/auth/logout", h.auth.Logout)
	secured.GET("/auth/me", h.auth.Me)

	admin := middleware.RequireRoles(models.RoleAdmin)
	warga := middleware.RequireRoles(models.RoleWarga)

	residents := secured.Group("/warga")
	residents.GET("", admin, h.residents.List)
	residents.POST("", admin, h.residents.Create)
	residents.GET("/me", warga, h.residents.Mine)
	residents.GET("/me/pdf", warga, h.residents.MyPDF)
	residents.GET("/export", admin, h.residents.Export)
	residents.GET("/:id", h.residents.Get)
	residents.PUT("/:id", admin, h.residents.Update)
	residents.DELETE("/:id", admin, h.residents.Delete)
	residents.GET("/:id/pdf", h.residents.PDF)

	requests := secured.Group("/pengajuan")
	requests.GET("", h.changeRequest.List)
	requests.POST("", warga, h.changeRequest.Submit)
	requests.GET("/:id", h.changeRequest.Get)
	requests.POST("/:id/approve", admin, h.changeRequest.Approve)
	requests.POST("/:id/reject", admin, h.changeRequest.Reject)

	secured.GET("/activity-logs", admin, h.audit.List)

	dashboard := secured.Group("/dashboard", admin)
	dashboard.GET("", h.dashboard.Summary)
	dashboard.GET("/analytics", h.dashboard.Analytics)

	return r
}
