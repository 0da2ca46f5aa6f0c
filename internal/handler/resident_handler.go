package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/warga-api/internal/dto"
	"github.com/noah-isme/warga-api/internal/models"
	"github.com/noah-isme/warga-api/internal/service"
	"github.com/noah-isme/warga-api/pkg/response"
)

type residentService interface {
	List(ctx context.Context, q dto.ResidentQuery) ([]models.Resident, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Resident, error)
	Mine(ctx context.Context, actor models.Actor) (*models.Resident, error)
	Create(ctx context.Context, actor models.Actor, req dto.ResidentRequest) (*models.Resident, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.ResidentRequest) (*models.Resident, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

type residentExporter interface {
	ResidentsCSV(ctx context.Context) (*service.ExportFile, error)
	ResidentPDF(ctx context.Context, actor models.Actor, id string) (*service.ExportFile, error)
	MyPDF(ctx context.Context, actor models.Actor) (*service.ExportFile, error)
}

// ResidentHandler exposes warga endpoints.
type ResidentHandler struct {
	service  residentService
	exporter residentExporter
}

// NewResidentHandler constructs the handler.
func NewResidentHandler(svc residentService, exporter residentExporter) *ResidentHandler {
	return &ResidentHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List warga
// @Tags Warga
// @Security BearerAuth
// @Produce json
// @Param search query string false "Search NIK, name or address"
// @Param rt query string false "RT"
// @Param rw query string false "RW"
// @Param page query int false "Page"
// @Success 200 {object} response.Envelope
// @Router /warga [get]
func (h *ResidentHandler) List(c *gin.Context) {
	var q dto.ResidentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}
	residents, pagination, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, residents, pagination)
}

// Create godoc
// @Summary Register warga
// @Tags Warga
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.ResidentRequest true "Warga payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /warga [post]
func (h *ResidentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ResidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	resident, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resident)
}

// Get godoc
// @Summary Get warga
// @Tags Warga
// @Security BearerAuth
// @Produce json
// @Param id path string true "Warga ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /warga/{id} [get]
func (h *ResidentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	resident, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resident, nil)
}

// Mine godoc
// @Summary Get my warga record
// @Tags Warga
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /warga/me [get]
func (h *ResidentHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	resident, err := h.service.Mine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resident, nil)
}

// Update godoc
// @Summary Update warga
// @Tags Warga
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Warga ID"
// @Param payload body dto.ResidentRequest true "Warga payload"
// @Success 200 {object} response.Envelope
// @Router /warga/{id} [put]
func (h *ResidentHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ResidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	resident, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resident, nil)
}

// Delete godoc
// @Summary Delete warga
// @Tags Warga
// @Security BearerAuth
// @Param id path string true "Warga ID"
// @Success 204
// @Router /warga/{id} [delete]
func (h *ResidentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export warga as CSV
// @Tags Warga
// @Security BearerAuth
// @Produce text/csv
// @Success 200 {file} file
// @Router /warga/export [get]
func (h *ResidentHandler) Export(c *gin.Context) {
	file, err := h.exporter.ResidentsCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}

// PDF godoc
// @Summary Download a warga profile as PDF
// @Tags Warga
// @Security BearerAuth
// @Produce application/pdf
// @Param id path string true "Warga ID"
// @Success 200 {file} file
// @Router /warga/{id}/pdf [get]
func (h *ResidentHandler) PDF(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.exporter.ResidentPDF(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}

// MyPDF godoc
// @Summary Download my warga profile as PDF
// @Tags Warga
// @Security BearerAuth
// @Produce application/pdf
// @Success 200 {file} file
// @Router /warga/me/pdf [get]
func (h *ResidentHandler) MyPDF(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.exporter.MyPDF(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}
