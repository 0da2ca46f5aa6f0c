package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, q dto.AuditQuery) (*dto.AuditList, error)
}

// AuditHandler exposes the activity log.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List activity logs
// @Tags Activity Log
// @Security BearerAuth
// @Produce json
// @Param user_id query string false "Actor user ID"
// @Param action query string false "Action"
// @Param model_type query string false "Model type, or all"
// @Param date_from query string false "YYYY-MM-DD inclusive"
// @Param date_to query string false "YYYY-MM-DD inclusive"
// @Param search query string false "Search description"
// @Param page query int false "Page"
// @Success 200 {object} response.Envelope
// @Router /activity-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var q dto.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}
	list, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list.Items, list.Pagination, map[string]interface{}{
		"actions":     list.Actions,
		"model_types": list.ModelTypes,
	})
}
