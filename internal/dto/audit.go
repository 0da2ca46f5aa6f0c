package dto

import "github.com/noah-isme/warga-api/internal/models"

// AuditQuery mirrors the activity log listing filters. Dates use DateLayout.
type AuditQuery struct {
	UserID    string `form:"user_id"`
	Action    string `form:"action"`
	ModelType string `form:"model_type"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
}

// AuditList is a page of activity log entries plus filter options.
type AuditList struct {
	Items      []models.AuditLog
	Pagination *models.Pagination
	Actions    []string
	ModelTypes []string
}
