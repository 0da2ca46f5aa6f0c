package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/pkg/response"
)

type changeRequestService interface {
	Submit(ctx context.Context, actor models.Actor, req dto.SubmitChangeRequest) (*models.ChangeRequest, error)
	List(ctx context.Context, actor models.Actor, q dto.ChangeRequestQuery) (*dto.ChangeRequestList, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.ChangeRequest, error)
	Approve(ctx context.Context, actor models.Actor, id, note string) (*models.ChangeRequest, error)
	Reject(ctx context.Context, actor models.Actor, id, note string) (*models.ChangeRequest, error)
}

// ChangeRequestHandler exposes the pengajuan workflow.
type ChangeRequestHandler struct {
	service changeRequestService
}

// NewChangeRequestHandler constructs the handler.
func NewChangeRequestHandler(svc changeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{service: svc}
}

// List godoc
// @Summary List change requests
// @Description Administrators see every request with per-status counts; warga see their own.
// @Tags Pengajuan
// @Security BearerAuth
// @Produce json
// @Param status query string false "pending, approved, rejected or all"
// @Param search query string false "Search resident name or NIK"
// @Param page query int false "Page"
// @Success 200 {object} response.Envelope
// @Router /pengajuan [get]
func (h *ChangeRequestHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var q dto.ChangeRequestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}
	list, err := h.service.List(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if list.Counts != nil {
		meta = map[string]interface{}{"counts": list.Counts}
	}
	response.JSON(c, http.StatusOK, list.Items, list.Pagination, meta)
}

// Submit godoc
// @Summary Submit a change request
// @Tags Pengajuan
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.SubmitChangeRequest true "Proposed changes"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pengajuan [post]
func (h *ChangeRequestHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	cr, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cr)
}

// Get godoc
// @Summary Get a change request
// @Tags Pengajuan
// @Security BearerAuth
// @Produce json
// @Param id path string true "Pengajuan ID"
// @Success 200 {object} response.Envelope
// @Router /pengajuan/{id} [get]
func (h *ChangeRequestHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	cr, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cr, nil)
}

// Approve godoc
// @Summary Approve a change request
// @Tags Pengajuan
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Pengajuan ID"
// @Param payload body dto.ReviewChangeRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pengajuan/{id}/approve [post]
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	h.review(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a change request
// @Tags Pengajuan
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Pengajuan ID"
// @Param payload body dto.ReviewChangeRequest true "Reason for rejection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pengajuan/{id}/reject [post]
func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	h.review(c, h.service.Reject)
}

func (h *ChangeRequestHandler) review(c *gin.Context, resolve func(ctx context.Context, actor models.Actor, id, note string) (*models.ChangeRequest, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReviewChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, bindError(err))
		return
	}
	cr, err := resolve(c.Request.Context(), actor, c.Param("id"), req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cr, nil)
}
