package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/warga-api/internal/middleware"
	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context) (*models.AdminSummary, bool, error)
	Analytics(ctx context.Context) (*models.Analytics, bool, error)
	PublicStats(ctx context.Context) (*models.PublicStats, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, hit, err := h.service.Summary(c.Request.Context())
	h.render(c, summary, hit, err)
}

// Analytics godoc
// @Summary Dashboard charts
// @Tags Dashboard
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/analytics [get]
func (h *DashboardHandler) Analytics(c *gin.Context) {
	analytics, hit, err := h.service.Analytics(c.Request.Context())
	h.render(c, analytics, hit, err)
}

// PublicStats godoc
// @Summary Public landing statistics
// @Tags Public
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /public/stats [get]
func (h *DashboardHandler) PublicStats(c *gin.Context) {
	stats, hit, err := h.service.PublicStats(c.Request.Context())
	h.render(c, stats, hit, err)
}

func (h *DashboardHandler) render(c *gin.Context, data interface{}, hit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, data, nil, middleware.RenderMeta(c))
}
