package dto

import "github.com/noah-isme/warga-api/internal/models"

// SubmitChangeRequest is the body a WARGA posts to propose edits to their record.
type SubmitChangeRequest struct {
	Changes map[string]string `json:"data_perubahan"`
	Reason  string            `json:"alasan"`
}

// ReviewChangeRequest carries the administrator's note for approve or reject.
type ReviewChangeRequest struct {
	Note string `json:"catatan_admin"`
}

// ChangeRequestQuery mirrors supported listing filters.
type ChangeRequestQuery struct {
	Status string `form:"status"`
	Search string `form:"search"`
	Page   int    `form:"page"`
}

// ChangeRequestList is a page of change requests plus per-status counts.
type ChangeRequestList struct {
	Items      []models.ChangeRequest
	Pagination *models.Pagination
	Counts     map[models.ChangeRequestStatus]int
}
